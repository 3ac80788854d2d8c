// Package console is the operator trigger surface: it reads commands from a
// local input stream, out of band from participant traffic, and drives the
// session's start/advance transitions.
package console

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Controls is the slice of the session the operator may touch.
type Controls interface {
	Start() error
	Advance() error
}

type Controller struct {
	session Controls
	in      io.Reader
	log     zerolog.Logger
}

func NewController(session Controls, in io.Reader, logger zerolog.Logger) *Controller {
	return &Controller{
		session: session,
		in:      in,
		log:     logger.With().Str("component", "console").Logger(),
	}
}

// Run consumes commands until the input ends, "quit" is entered, or the
// context is cancelled. Precondition violations are reported and the loop
// keeps going; nothing an operator types can take the server down.
func (c *Controller) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch cmd := strings.TrimSpace(strings.ToLower(scanner.Text())); cmd {
		case "":
			continue
		case "start":
			if err := c.session.Start(); err != nil {
				c.log.Warn().Err(err).Msg("start rejected")
				continue
			}
			c.log.Info().Msg("session started")
		case "next", "advance":
			if err := c.session.Advance(); err != nil {
				c.log.Warn().Err(err).Msg("advance rejected")
				continue
			}
			c.log.Info().Msg("advanced")
		case "quit", "exit":
			c.log.Info().Msg("console closed")
			return
		default:
			c.log.Warn().Str("command", cmd).Msg("unknown command (try start, next, quit)")
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn().Err(err).Msg("console input error")
	}
}
