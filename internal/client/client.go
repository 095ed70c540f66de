// Package client is a reconnecting websocket client for the drawing protocol.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/scribble/internal/core/protocol"
	"github.com/hay-kot/scribble/pkg/randid"
)

const (
	defaultRoom         = "default"
	defaultPingInterval = 5 * time.Second
	defaultQueueSize    = 256
	writeTimeout        = 10 * time.Second
)

// Handler receives every decoded server message.
type Handler func(msg protocol.Message)

// Options configures a Client.
type Options struct {
	URL    string
	RoomID string
	// UserID defaults to a random "user_..." id that is kept across
	// reconnects.
	UserID       string
	Policy       Policy
	PingInterval time.Duration
	// QueueSize bounds messages held while offline. The oldest is dropped
	// when full.
	QueueSize int
	Dialer    *websocket.Dialer
	Header    http.Header
	Logger    zerolog.Logger
	// OnState is called after every state change.
	OnState func(State)
	Now     func() time.Time
}

// Client keeps one room membership alive across reconnects.
type Client struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	machine *Machine
	ws      *websocket.Conn
	queue   [][]byte
	latency time.Duration
	userID  string
	roomID  string

	peers mapset.Set[string]
}

// New creates a disconnected client.
func New(opts Options) *Client {
	if opts.RoomID == "" {
		opts.RoomID = defaultRoom
	}
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.UserID == "" {
		opts.UserID = randid.Stamped("user", opts.Now(), 9)
	}

	return &Client{
		opts:    opts,
		log:     opts.Logger.With().Str("component", "client").Str("url", opts.URL).Logger(),
		machine: NewMachine(opts.Policy),
		userID:  opts.UserID,
		roomID:  opts.RoomID,
		peers:   mapset.NewSet[string](),
	}
}

// Run connects and keeps reconnecting until ctx is cancelled or the retry
// policy gives up. Cancellation returns nil.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	if handle == nil {
		handle = func(protocol.Message) {}
	}

	c.transition(func(m *Machine) error { return m.Connect() })
	defer c.transition(func(m *Machine) error { m.Stop(); return nil })

	for {
		err := c.connectOnce(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Debug().Err(err).Msg("connection lost")

		var (
			delay time.Duration
			ok    bool
		)
		c.transition(func(m *Machine) error {
			delay, ok = m.Failed()
			return nil
		})
		if !ok {
			return fmt.Errorf("%w: %v", ErrGaveUp, err)
		}

		c.log.Info().Dur("delay", delay).Int("attempt", c.Attempts()).Msg("reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		c.transition(func(m *Machine) error { return m.Retry() })
	}
}

// connectOnce dials, joins and serves one connection until it drops.
func (c *Client) connectOnce(ctx context.Context, handle Handler) error {
	ws, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	if err := c.open(ws); err != nil {
		_ = ws.Close()
		return err
	}
	c.transition(func(m *Machine) error { return m.Opened() })
	c.log.Info().Str("room", c.RoomID()).Str("user", c.UserID()).Msg("connected")

	err = c.serve(ctx, ws, handle)

	c.mu.Lock()
	c.ws = nil
	c.mu.Unlock()
	_ = ws.Close()
	return err
}

// open sends join followed by anything queued while offline. The server
// ignores drawing messages from a connection that has not joined yet.
func (c *Client) open(ws *websocket.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	join, err := protocol.Encode(protocol.Join{
		UserID:    c.userID,
		RoomID:    c.roomID,
		Timestamp: c.opts.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := write(ws, join); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	for len(c.queue) > 0 {
		if err := write(ws, c.queue[0]); err != nil {
			return fmt.Errorf("flush queue: %w", err)
		}
		c.queue = c.queue[1:]
	}

	c.ws = ws
	return nil
}

func (c *Client) serve(ctx context.Context, ws *websocket.Conn, handle Handler) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				c.mu.Lock()
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				c.mu.Unlock()
				_ = ws.Close()
				return
			case <-ticker.C:
				if err := c.Send(protocol.Ping{Timestamp: c.opts.Now().UnixMilli()}); err != nil {
					c.log.Debug().Err(err).Msg("ping")
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("decode server message")
			continue
		}
		if c.track(msg) {
			handle(msg)
		}
	}
}

// track updates presence and latency from msg. It reports whether msg should
// reach the handler.
func (c *Client) track(msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.Joined:
		c.mu.Lock()
		c.userID = m.UserID
		c.roomID = m.RoomID
		c.mu.Unlock()

		c.peers.Clear()
		for _, u := range m.Users {
			c.peers.Add(u.UserID)
		}
	case protocol.UserJoined:
		c.peers.Add(m.UserID)
	case protocol.UserLeft:
		c.peers.Remove(m.UserID)
	case protocol.Draw:
		// Own strokes are already drawn locally.
		return m.UserID != c.UserID()
	case protocol.Pong:
		if m.Timestamp > 0 {
			c.mu.Lock()
			c.latency = c.opts.Now().Sub(time.UnixMilli(m.Timestamp))
			c.mu.Unlock()
		}
	case protocol.Error:
		c.log.Warn().Str("error", m.Message).Msg("server error")
	}
	return true
}

// Send writes msg now when connected and queues it otherwise.
func (c *Client) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws != nil {
		err := write(c.ws, data)
		if err == nil {
			return nil
		}
		c.log.Debug().Err(err).Msg("write failed, queueing")
	}

	if len(c.queue) >= c.opts.QueueSize {
		c.queue = c.queue[1:]
		c.log.Warn().Int("size", c.opts.QueueSize).Msg("offline queue full, dropped oldest message")
	}
	c.queue = append(c.queue, data)
	return nil
}

// Draw sends one stroke segment.
func (c *Client) Draw(fromX, fromY, toX, toY float64, color string, width float64) error {
	return c.Send(protocol.Draw{
		FromX: fromX, FromY: fromY, ToX: toX, ToY: toY,
		Color: color, Width: width, Tool: "brush",
		Timestamp: c.opts.Now().UnixMilli(),
	})
}

func (c *Client) Cursor(x, y float64) error {
	return c.Send(protocol.Cursor{X: x, Y: y, Timestamp: c.opts.Now().UnixMilli()})
}

func (c *Client) Undo() error  { return c.Send(protocol.Undo{Timestamp: c.opts.Now().UnixMilli()}) }
func (c *Client) Redo() error  { return c.Send(protocol.Redo{Timestamp: c.opts.Now().UnixMilli()}) }
func (c *Client) Clear() error { return c.Send(protocol.Clear{Timestamp: c.opts.Now().UnixMilli()}) }
func (c *Client) Sync() error  { return c.Send(protocol.SyncRequest{}) }

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State()
}

// Attempts returns the number of consecutive failed attempts.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Attempts()
}

// Peers returns the other users in the room, sorted.
func (c *Client) Peers() []string {
	peers := c.peers.ToSlice()
	sort.Strings(peers)
	return peers
}

// Latency returns the last measured ping round trip.
func (c *Client) Latency() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latency
}

func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Queued returns the number of messages waiting for a connection.
func (c *Client) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Client) transition(fn func(m *Machine) error) {
	c.mu.Lock()
	before := c.machine.State()
	err := fn(c.machine)
	after := c.machine.State()
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Msg("invalid state transition")
		return
	}
	if before != after && c.opts.OnState != nil {
		c.opts.OnState(after)
	}
}

func write(ws *websocket.Conn, data []byte) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
