// Package session drives one client connection through the drawing protocol:
// it decodes inbound frames, applies them to the joined room and fans the
// results out.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/scribble/internal/core/history"
	"github.com/hay-kot/scribble/internal/core/protocol"
	"github.com/hay-kot/scribble/internal/core/room"
)

// State represents the lifecycle state of a session.
type State string

const (
	StateConnected State = "connected"
	StateJoined    State = "joined"
	StateClosed    State = "closed"
)

// History operation names reported to Metrics.
const (
	OpRecord = "record"
	OpUndo   = "undo"
	OpRedo   = "redo"
	OpClear  = "clear"
)

// Metrics receives per-message counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	MessageReceived(t protocol.Type)
	ProtocolError()
	Delivered(d room.Delivery)
	HistoryOperation(op string)
}

type nopMetrics struct{}

func (nopMetrics) MessageReceived(protocol.Type) {}
func (nopMetrics) ProtocolError()                {}
func (nopMetrics) Delivered(room.Delivery)       {}
func (nopMetrics) HistoryOperation(string)       {}

// Options configures a Session.
type Options struct {
	Logger  zerolog.Logger
	Metrics Metrics
	// Now is used to stamp outbound messages that arrived without a
	// timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Session is the server side of one connection. Handle and Close may be called
// from different goroutines.
type Session struct {
	conn     room.Conn
	registry *room.Registry
	metrics  Metrics
	now      func() time.Time
	base     zerolog.Logger

	mu     sync.Mutex
	log    zerolog.Logger
	state  State
	userID string
	roomID string
	room   *room.Room
}

// New creates a session in the Connected state.
func New(conn room.Conn, registry *room.Registry, opts Options) *Session {
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	base := opts.Logger.With().Str("conn_id", conn.ID()).Logger()
	return &Session{
		conn:     conn,
		registry: registry,
		metrics:  opts.Metrics,
		now:      opts.Now,
		base:     base,
		log:      base,
		state:    StateConnected,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the joined user id, or "" before joining.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// RoomID returns the joined room id, or "" before joining.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Handle processes one inbound frame. Protocol failures are answered with an
// error message and never change session state.
func (s *Session) Handle(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		s.fail(err)
		return
	}
	s.metrics.MessageReceived(msg.Type())

	switch m := msg.(type) {
	case protocol.Join:
		s.handleJoin(m)
	case protocol.Ping:
		s.reply(protocol.Pong{Timestamp: m.Timestamp})
	case protocol.Draw:
		s.whenJoined(func() { s.handleDraw(m) })
	case protocol.Cursor:
		s.whenJoined(func() { s.handleCursor(m) })
	case protocol.Undo:
		s.whenJoined(func() { s.handleUndo(m) })
	case protocol.Redo:
		s.whenJoined(func() { s.handleRedo(m) })
	case protocol.Clear:
		s.whenJoined(func() { s.handleClear(m) })
	case protocol.SyncRequest:
		s.whenJoined(func() { s.handleSync(m) })
	case protocol.Joined, protocol.UserJoined, protocol.UserLeft,
		protocol.CanvasSync, protocol.Pong, protocol.Error:
		s.fail(fmt.Errorf("%w: %s is server-only", protocol.ErrInvalid, m.Type()))
	default:
		s.fail(fmt.Errorf("%w %q", protocol.ErrUnknownType, msg.Type()))
	}
}

// Close leaves the joined room, if any, and moves the session to Closed. It is
// safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	if s.state == StateJoined {
		s.leave()
	}
	s.state = StateClosed
	s.log.Debug().Msg("session closed")
}

func (s *Session) whenJoined(fn func()) {
	if s.state != StateJoined {
		s.log.Debug().Msg("ignoring message before join")
		return
	}
	fn()
}

func (s *Session) handleJoin(m protocol.Join) {
	// A client that reconnects or switches rooms sends join again.
	if s.state == StateJoined {
		s.leave()
	}

	ts := s.stamp(m.Timestamp)
	rm, err := s.registry.Join(m.RoomID, m.UserID, s.conn, func(tx *room.Tx) {
		var others []protocol.Participant
		for _, p := range tx.Participants() {
			if p.UserID == m.UserID {
				continue
			}
			others = append(others, protocol.Participant{UserID: p.UserID, Cursor: p.Cursor})
		}
		if others == nil {
			others = []protocol.Participant{}
		}

		tx.Send(m.UserID, protocol.Joined{
			UserID:      m.UserID,
			RoomID:      m.RoomID,
			Users:       others,
			CanvasState: tx.History().Snapshot(),
		})
		s.metrics.Delivered(tx.Broadcast(protocol.UserJoined{UserID: m.UserID, Timestamp: ts}, m.UserID))
	})
	if err != nil {
		s.log.Error().Err(err).Str("room_id", m.RoomID).Msg("join room")
		s.reply(protocol.Error{Message: "join failed"})
		return
	}

	s.state = StateJoined
	s.userID = m.UserID
	s.roomID = m.RoomID
	s.room = rm
	s.log = s.base.With().Str("user_id", m.UserID).Str("room_id", m.RoomID).Logger()
	s.log.Debug().Msg("joined")
}

func (s *Session) handleDraw(m protocol.Draw) {
	s.update(func(tx *room.Tx) {
		res := tx.History().Record(m.Action(s.userID))

		out := m
		out.UserID = s.userID
		out.SequenceID = res.SequenceID
		out.Timestamp = s.stamp(m.Timestamp)
		s.metrics.Delivered(tx.Broadcast(out, s.userID))
	})
	s.metrics.HistoryOperation(OpRecord)
}

func (s *Session) handleCursor(m protocol.Cursor) {
	s.update(func(tx *room.Tx) {
		tx.SetCursor(s.userID, history.Point{X: m.X, Y: m.Y})

		out := m
		out.UserID = s.userID
		out.Timestamp = s.stamp(m.Timestamp)
		s.metrics.Delivered(tx.Broadcast(out, s.userID))
	})
}

func (s *Session) handleUndo(m protocol.Undo) {
	s.update(func(tx *room.Tx) {
		res := tx.History().Undo()
		s.metrics.Delivered(tx.BroadcastAll(protocol.Undo{
			UserID:      s.userID,
			HistoryStep: protocol.StepOf(res),
			Timestamp:   s.stamp(m.Timestamp),
		}))
	})
	s.metrics.HistoryOperation(OpUndo)
}

func (s *Session) handleRedo(m protocol.Redo) {
	s.update(func(tx *room.Tx) {
		res := tx.History().Redo()
		s.metrics.Delivered(tx.BroadcastAll(protocol.Redo{
			UserID:      s.userID,
			HistoryStep: protocol.StepOf(res),
			Timestamp:   s.stamp(m.Timestamp),
		}))
	})
	s.metrics.HistoryOperation(OpRedo)
}

func (s *Session) handleClear(m protocol.Clear) {
	s.update(func(tx *room.Tx) {
		res := tx.History().Clear(s.userID)
		s.metrics.Delivered(tx.BroadcastAll(protocol.Clear{
			UserID:       s.userID,
			SequenceID:   res.SequenceID,
			Cursor:       res.Cursor,
			TotalActions: res.TotalActions,
			Timestamp:    s.stamp(m.Timestamp),
		}))
	})
	s.metrics.HistoryOperation(OpClear)
}

func (s *Session) handleSync(m protocol.SyncRequest) {
	s.update(func(tx *room.Tx) {
		tx.Send(s.userID, protocol.CanvasSync{
			CanvasState: tx.History().Snapshot(),
			Timestamp:   s.stamp(m.Timestamp),
		})
	})
}

// update applies fn to the joined room. A room that has gone away is a no-op.
func (s *Session) update(fn func(tx *room.Tx)) {
	if s.room == nil {
		return
	}
	if err := s.room.Update(fn); err != nil {
		if errors.Is(err, room.ErrRoomClosed) {
			s.log.Debug().Msg("room closed, dropping message")
			return
		}
		s.log.Error().Err(err).Msg("update room")
	}
}

func (s *Session) leave() {
	s.registry.Leave(s.roomID, s.userID, s.conn)
	s.log.Debug().Msg("left room")

	s.room = nil
	s.userID = ""
	s.roomID = ""
	s.state = StateConnected
	s.log = s.base
}

func (s *Session) fail(err error) {
	s.metrics.ProtocolError()
	s.log.Debug().Err(err).Msg("protocol error")
	s.reply(protocol.Error{Message: err.Error()})
}

func (s *Session) reply(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("encode reply")
		return
	}
	if !s.conn.Send(data) {
		s.log.Debug().Str("type", string(msg.Type())).Msg("reply dropped")
	}
}

func (s *Session) stamp(ts int64) int64 {
	if ts != 0 {
		return ts
	}
	return s.now().UnixMilli()
}
