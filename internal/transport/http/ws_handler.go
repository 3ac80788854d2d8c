// Package http exposes the quiz session over gorilla websockets.
package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quizcast-service/internal/app"
	"quizcast-service/internal/protocol"
)

// WSHandler upgrades connections and wires each one into the session: the
// first message must be a join, everything after is routed as answer
// submissions, and the connection closing unregisters the participant.
type WSHandler struct {
	session  *app.Session
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(session *app.Session, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		session: session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger.With().Str("component", "ws").Logger(),
	}
}

// ServeWS handles one participant connection for its whole lifetime.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket connections only", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws upgrade failed")
		return
	}
	client := newWSClient(conn, h.log)
	defer client.Close()

	// The first message must be a join; anything else is rejected and the
	// connection dropped before it can touch the session.
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	msg, err := protocol.DecodeInbound(raw)
	if err != nil {
		h.sendError(client, err.Error())
		return
	}
	join, ok := msg.(protocol.Join)
	if !ok {
		h.sendError(client, "join first")
		return
	}

	id := h.session.Join(join.Name, client)
	defer h.session.Leave(client)
	log := h.log.With().Str("participant", id.String()).Logger()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("connection closed")
			return
		}
		msg, err := protocol.DecodeInbound(raw)
		if err != nil {
			// Malformed input is local to this sender; the session is
			// untouched.
			h.sendError(client, err.Error())
			continue
		}
		switch m := msg.(type) {
		case protocol.Answer:
			h.session.SubmitAnswer(client, m.Answer)
		case protocol.Join:
			h.sendError(client, "already joined")
		}
	}
}

func (h *WSHandler) sendError(client *wsClient, message string) {
	data, err := protocol.Encode(protocol.Error(message))
	if err != nil {
		h.log.Error().Err(err).Msg("encode error message")
		return
	}
	if err := client.Send(data); err != nil {
		h.log.Warn().Err(err).Msg("deliver error message")
	}
}
