package http

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	errClientClosed = errors.New("client closed")
	errSendFull     = errors.New("send buffer full")
)

// writeWait bounds a single websocket write so a stalled peer cannot wedge
// the writer goroutine.
const writeWait = 10 * time.Second

// wsClient adapts a websocket connection into the session's Handle. Writes
// go through a buffered channel drained by a single writer goroutine, so
// Send never blocks the session and a slow participant only loses their own
// messages.
type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	pumpDone chan struct{}
	once     sync.Once
	log      zerolog.Logger
}

func newWSClient(conn *websocket.Conn, logger zerolog.Logger) *wsClient {
	c := &wsClient{
		conn:     conn,
		send:     make(chan []byte, 16),
		done:     make(chan struct{}),
		pumpDone: make(chan struct{}),
		log:      logger,
	}
	go c.writePump()
	return c
}

func (c *wsClient) writePump() {
	defer close(c.pumpDone)
	for {
		select {
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.log.Warn().Err(err).Msg("ws write error")
				return
			}
		case <-c.done:
			// Flush anything enqueued before the close so terminal error
			// messages still reach the participant.
			for {
				select {
				case msg := <-c.send:
					if err := c.write(msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *wsClient) write(msg []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Send enqueues a message for the writer goroutine. It reports, without
// blocking, when the client is gone or its buffer is full.
func (c *wsClient) Send(data []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendFull
	}
}

// Close stops the writer after it has flushed pending messages, then closes
// the connection.
func (c *wsClient) Close() error {
	c.once.Do(func() { close(c.done) })
	<-c.pumpDone
	return c.conn.Close()
}
