// Package room holds the in-memory room state: participants, the shared
// action history, and fan-out to connected transports.
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/scribble/internal/core/history"
	"github.com/hay-kot/scribble/internal/core/protocol"
)

// ErrRoomClosed is returned when operating on a room that has been removed
// from its registry.
var ErrRoomClosed = errors.New("room closed")

// Conn is the outbound half of a participant's transport. The room never owns
// or closes a Conn; it only sends to it and compares it.
type Conn interface {
	// ID uniquely identifies the underlying connection.
	ID() string
	// Send enqueues data without blocking. It returns false when the
	// connection is closed or its queue is full; the data is dropped.
	Send(data []byte) bool
}

// Participant is one connected user in a room.
type Participant struct {
	UserID   string        `json:"userId"`
	Cursor   history.Point `json:"cursor"`
	JoinedAt time.Time     `json:"joinedAt"`

	conn Conn
}

// Conn returns the participant's transport handle.
func (p Participant) Conn() Conn {
	return p.conn
}

// Delivery counts the outcome of a fan-out.
type Delivery struct {
	Sent    int
	Dropped int
}

// Info is a read-only summary of a room.
type Info struct {
	RoomID    string        `json:"roomId"`
	CreatedAt time.Time     `json:"createdAt"`
	UserCount int           `json:"userCount"`
	Users     []Participant `json:"users"`
	History   history.Info  `json:"history"`
}

// Room owns a participant set and one action history. All access goes through
// the room mutex, so operations on one room are applied in a single order and
// broadcast in that same order.
type Room struct {
	id        string
	createdAt time.Time
	log       zerolog.Logger

	mu           sync.Mutex
	closed       bool
	order        []string
	participants map[string]*Participant
	history      *history.History
}

func newRoom(id string, h *history.History, log zerolog.Logger) *Room {
	return &Room{
		id:           id,
		createdAt:    time.Now(),
		log:          log,
		participants: make(map[string]*Participant),
		history:      h,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// CreatedAt returns when the room was created.
func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// Update runs fn with exclusive access to the room. Mutations and the
// broadcasts describing them should happen inside the same Update so that
// commit order and delivery order match. fn must not block and must not call
// back into the room or its registry.
func (r *Room) Update(fn func(tx *Tx)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}

	fn(&Tx{r: r})
	return nil
}

// AddParticipant inserts or replaces the participant for userID. Re-adding an
// existing user swaps in the new connection and keeps its position in the
// listing.
func (r *Room) AddParticipant(userID string, conn Conn) error {
	return r.Update(func(tx *Tx) {
		tx.Add(userID, conn)
	})
}

// RemoveParticipant removes userID if present. It does not consult the
// registry: removing the last participant leaves an empty room registered
// and no user-left is sent. Sessions leave through Registry.Leave, which
// announces the departure and deletes the room once it is empty.
func (r *Room) RemoveParticipant(userID string) {
	_ = r.Update(func(tx *Tx) {
		tx.Remove(userID)
	})
}

// Broadcast sends msg to every participant except exclude.
func (r *Room) Broadcast(msg protocol.Message, exclude string) Delivery {
	var d Delivery
	_ = r.Update(func(tx *Tx) {
		d = tx.Broadcast(msg, exclude)
	})
	return d
}

// BroadcastAll sends msg to every participant, including the actor.
func (r *Room) BroadcastAll(msg protocol.Message) Delivery {
	return r.Broadcast(msg, "")
}

// Participants lists participants in join order.
func (r *Room) Participants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

// Count returns the number of participants.
func (r *Room) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// Closed reports whether the room has been removed from its registry.
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Info returns a summary of the room.
func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Info{
		RoomID:    r.id,
		CreatedAt: r.createdAt,
		UserCount: len(r.participants),
		Users:     r.listLocked(),
		History:   r.history.Info(),
	}
}

// Snapshot returns the visible history prefix.
func (r *Room) Snapshot() history.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Snapshot()
}

// close marks the room closed and returns the participants it held.
func (r *Room) close() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	return r.listLocked()
}

func (r *Room) listLocked() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}

// Tx is exclusive access to a room for the duration of Room.Update.
// A Tx must not be retained after Update returns.
type Tx struct {
	r *Room
}

// RoomID returns the room identifier.
func (tx *Tx) RoomID() string {
	return tx.r.id
}

// History returns the room's action history.
func (tx *Tx) History() *history.History {
	return tx.r.history
}

// Add inserts or replaces a participant and reports whether it replaced one.
func (tx *Tx) Add(userID string, conn Conn) bool {
	r := tx.r
	if p, ok := r.participants[userID]; ok {
		p.conn = conn
		return true
	}

	r.participants[userID] = &Participant{
		UserID:   userID,
		JoinedAt: time.Now(),
		conn:     conn,
	}
	r.order = append(r.order, userID)
	return false
}

// Remove deletes a participant and reports whether it was present.
func (tx *Tx) Remove(userID string) bool {
	r := tx.r
	if _, ok := r.participants[userID]; !ok {
		return false
	}

	delete(r.participants, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Participant returns the participant for userID.
func (tx *Tx) Participant(userID string) (Participant, bool) {
	p, ok := tx.r.participants[userID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// SetCursor stores the last reported pointer position for userID.
func (tx *Tx) SetCursor(userID string, pos history.Point) {
	if p, ok := tx.r.participants[userID]; ok {
		p.Cursor = pos
	}
}

// Participants lists participants in join order.
func (tx *Tx) Participants() []Participant {
	return tx.r.listLocked()
}

// Len returns the number of participants.
func (tx *Tx) Len() int {
	return len(tx.r.participants)
}

// Send delivers msg to a single participant.
func (tx *Tx) Send(userID string, msg protocol.Message) bool {
	p, ok := tx.r.participants[userID]
	if !ok {
		return false
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		tx.r.log.Error().Err(err).Str("type", string(msg.Type())).Msg("encode message")
		return false
	}
	return p.conn.Send(data)
}

// Broadcast encodes msg once and sends it to every participant except
// exclude. Closed or backlogged connections are skipped; their own close
// handling removes them.
func (tx *Tx) Broadcast(msg protocol.Message, exclude string) Delivery {
	var d Delivery

	data, err := protocol.Encode(msg)
	if err != nil {
		tx.r.log.Error().Err(err).Str("type", string(msg.Type())).Msg("encode broadcast")
		return d
	}

	for _, id := range tx.r.order {
		if exclude != "" && id == exclude {
			continue
		}
		if tx.r.participants[id].conn.Send(data) {
			d.Sent++
		} else {
			d.Dropped++
		}
	}

	if d.Dropped > 0 {
		tx.r.log.Debug().
			Str("type", string(msg.Type())).
			Int("sent", d.Sent).
			Int("dropped", d.Dropped).
			Msg("broadcast skipped recipients")
	}
	return d
}

// BroadcastAll sends msg to every participant.
func (tx *Tx) BroadcastAll(msg protocol.Message) Delivery {
	return tx.Broadcast(msg, "")
}

func (tx *Tx) close() {
	tx.r.closed = true
}
