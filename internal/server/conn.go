package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsConn adapts a websocket to room.Conn. Outbound frames go through a
// bounded queue drained by writePump; Send never blocks.
type wsConn struct {
	id  string
	ws  *websocket.Conn
	log zerolog.Logger
	opt TransportOptions

	send    chan []byte
	closing chan struct{}

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string
}

func newWSConn(ws *websocket.Conn, opt TransportOptions, log zerolog.Logger) *wsConn {
	id := uuid.NewString()
	return &wsConn{
		id:      id,
		ws:      ws,
		log:     log.With().Str("conn_id", id).Logger(),
		opt:     opt,
		send:    make(chan []byte, opt.SendBuffer),
		closing: make(chan struct{}),
	}
}

func (c *wsConn) ID() string {
	return c.id
}

// Send enqueues data for the write pump. It returns false once the connection
// is closing or when the queue is full.
func (c *wsConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		c.log.Warn().Int("queued", len(c.send)).Msg("send queue full, dropping frame")
		return false
	}
}

// Close asks the write pump to send a close frame and tear the socket down.
// Only the first call's code is used.
func (c *wsConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.closing)
}

// readPump delivers inbound text frames to handle until the peer goes away,
// the read deadline passes or the socket is closed.
func (c *wsConn) readPump(handle func([]byte)) {
	c.ws.SetReadLimit(c.opt.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opt.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opt.PongTimeout))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		if mt != websocket.TextMessage {
			c.log.Debug().Int("message_type", mt).Msg("ignoring non-text frame")
			continue
		}
		handle(data)
	}
}

// writePump drains the send queue and keeps the peer alive with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.opt.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opt.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("websocket write")
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opt.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("websocket ping")
				return
			}

		case <-c.closing:
			c.flush()
			c.mu.Lock()
			frame := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			c.mu.Unlock()

			_ = c.ws.WriteControl(websocket.CloseMessage, frame, time.Now().Add(c.opt.WriteTimeout))
			return
		}
	}
}

// flush writes whatever is already queued so replies sent just before a
// close still reach the peer.
func (c *wsConn) flush() {
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opt.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
