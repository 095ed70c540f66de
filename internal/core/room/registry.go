package room

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/scribble/internal/core/history"
	"github.com/hay-kot/scribble/internal/core/protocol"
)

// ErrRegistryClosed is returned when joining after Close.
var ErrRegistryClosed = errors.New("registry closed")

// EventKind names a room lifecycle event.
type EventKind string

const (
	EventRoomCreated EventKind = "room-created"
	EventRoomDeleted EventKind = "room-deleted"
	EventJoined      EventKind = "participant-joined"
	EventLeft        EventKind = "participant-left"
)

// Event describes a room lifecycle change.
type Event struct {
	Kind         EventKind
	RoomID       string
	UserID       string
	Participants int
	At           time.Time
}

// Observer receives lifecycle events. Observe is called synchronously after
// the change is committed and must not call back into the registry.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Observers fans an event out to several observers in order.
type Observers []Observer

func (o Observers) Observe(ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ev)
		}
	}
}

// Stats summarizes every live room.
type Stats struct {
	ActiveRooms      int    `json:"activeRooms"`
	TotalConnections int    `json:"totalConnections"`
	Rooms            []Info `json:"rooms"`
}

// Options configures a Registry.
type Options struct {
	// Capacity bounds each room's history. Zero uses history.DefaultCapacity.
	Capacity int
	Observer Observer
	Logger   zerolog.Logger
}

// Registry maps room ids to live rooms. Rooms are created on first join and
// deleted as soon as their last participant leaves.
type Registry struct {
	capacity int
	seq      *history.Sequence
	observer Observer
	log      zerolog.Logger

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Capacity < 1 {
		opts.Capacity = history.DefaultCapacity
	}

	return &Registry{
		capacity: opts.Capacity,
		seq:      &history.Sequence{},
		observer: opts.Observer,
		log:      opts.Logger,
		rooms:    make(map[string]*Room),
	}
}

// GetOrCreate returns the live room for id, creating it if needed. A room
// that was closed but not yet unlinked is replaced. After Close it returns
// ErrRegistryClosed.
func (g *Registry) GetOrCreate(id string) (*Room, bool, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, false, ErrRegistryClosed
	}
	rm, ok := g.rooms[id]
	if ok && !rm.Closed() {
		g.mu.Unlock()
		return rm, false, nil
	}

	rm = newRoom(id, history.New(g.capacity, g.seq), g.log.With().Str("room", id).Logger())
	g.rooms[id] = rm
	g.mu.Unlock()

	g.log.Info().Str("room", id).Msg("room created")
	g.emit(EventRoomCreated, id, "", 0)
	return rm, true, nil
}

// Get returns the live room for id.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[id]
	return rm, ok
}

// Delete removes and closes the room for id. It reports whether a room was
// removed.
func (g *Registry) Delete(id string) bool {
	g.mu.Lock()
	rm, ok := g.rooms[id]
	if ok {
		delete(g.rooms, id)
	}
	g.mu.Unlock()

	if !ok {
		return false
	}

	g.evict(rm)
	g.log.Info().Str("room", id).Msg("room deleted")
	return true
}

// Join adds userID to the room, creating the room if needed, and runs fn in
// the same critical section so the caller can reply and announce before any
// later operation on the room is applied. A user id already present has its
// connection replaced and no EventJoined is emitted.
func (g *Registry) Join(roomID, userID string, conn Conn, fn func(tx *Tx)) (*Room, error) {
	for {
		rm, _, err := g.GetOrCreate(roomID)
		if err != nil {
			return nil, err
		}

		var (
			count    int
			replaced bool
		)
		err = rm.Update(func(tx *Tx) {
			replaced = tx.Add(userID, conn)
			if fn != nil {
				fn(tx)
			}
			count = tx.Len()
		})
		if errors.Is(err, ErrRoomClosed) {
			// Lost a race with the last participant leaving.
			continue
		}
		if err != nil {
			return nil, err
		}

		if replaced {
			// Same participant on a new connection; membership is unchanged.
			g.log.Info().Str("room", roomID).Str("user", userID).Msg("participant reconnected")
			return rm, nil
		}

		g.log.Info().Str("room", roomID).Str("user", userID).Int("participants", count).Msg("participant joined")
		g.emit(EventJoined, roomID, userID, count)
		return rm, nil
	}
}

// Leave removes userID from the room when its current connection is conn,
// announces the departure to the others and deletes the room once empty. A nil
// conn matches any connection. Leave reports whether a participant was
// removed.
func (g *Registry) Leave(roomID, userID string, conn Conn) bool {
	rm, ok := g.Get(roomID)
	if !ok {
		return false
	}

	var removed, empty bool
	var count int
	_ = rm.Update(func(tx *Tx) {
		p, ok := tx.Participant(userID)
		if !ok || (conn != nil && p.conn != conn) {
			return
		}

		tx.Remove(userID)
		removed = true
		count = tx.Len()

		if count == 0 {
			tx.close()
			empty = true
			return
		}
		tx.Broadcast(protocol.UserLeft{UserID: userID}, "")
	})

	if !removed {
		return false
	}

	g.log.Info().Str("room", roomID).Str("user", userID).Int("participants", count).Msg("participant left")
	g.emit(EventLeft, roomID, userID, count)

	if empty {
		g.mu.Lock()
		if g.rooms[roomID] == rm {
			delete(g.rooms, roomID)
		}
		g.mu.Unlock()

		g.log.Info().Str("room", roomID).Msg("room deleted")
		g.emit(EventRoomDeleted, roomID, "", 0)
	}
	return true
}

// Len returns the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Stats returns a summary of every live room, ordered by room id.
func (g *Registry) Stats() Stats {
	g.mu.Lock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, rm := range g.rooms {
		rooms = append(rooms, rm)
	}
	g.mu.Unlock()

	stats := Stats{Rooms: make([]Info, 0, len(rooms))}
	for _, rm := range rooms {
		info := rm.Info()
		stats.ActiveRooms++
		stats.TotalConnections += info.UserCount
		stats.Rooms = append(stats.Rooms, info)
	}

	sort.Slice(stats.Rooms, func(i, j int) bool {
		return stats.Rooms[i].RoomID < stats.Rooms[j].RoomID
	})
	return stats
}

// Close removes every room and returns the connections that were still
// attached so the caller can close them. Later joins fail with
// ErrRegistryClosed.
func (g *Registry) Close() []Conn {
	g.mu.Lock()
	g.closed = true
	rooms := g.rooms
	g.rooms = make(map[string]*Room)
	g.mu.Unlock()

	var conns []Conn
	for _, rm := range rooms {
		for _, p := range g.evict(rm) {
			conns = append(conns, p.conn)
		}
	}
	return conns
}

// evict closes a room that is already unlinked and reports its remaining
// participants as having left.
func (g *Registry) evict(rm *Room) []Participant {
	ps := rm.close()
	for i, p := range ps {
		g.emit(EventLeft, rm.id, p.UserID, len(ps)-i-1)
	}
	g.emit(EventRoomDeleted, rm.id, "", 0)
	return ps
}

func (g *Registry) emit(kind EventKind, roomID, userID string, n int) {
	if g.observer == nil {
		return
	}
	g.observer.Observe(Event{
		Kind:         kind,
		RoomID:       roomID,
		UserID:       userID,
		Participants: n,
		At:           time.Now(),
	})
}
