// Package activity records room lifecycle events (rooms created and deleted,
// participants joining and leaving). Drawing data is never recorded.
package activity

import (
	"errors"
	"time"

	"github.com/hay-kot/scribble/internal/core/room"
)

// ErrDisabled is returned when the activity log is turned off in config.
var ErrDisabled = errors.New("activity log disabled")

// Type represents the type of lifecycle activity.
type Type string

const (
	TypeRoomCreated Type = "room_created"
	TypeRoomDeleted Type = "room_deleted"
	TypeJoined      Type = "joined"
	TypeLeft        Type = "left"
)

// Activity represents a single lifecycle event.
type Activity struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	RoomID       string    `json:"room_id"`
	UserID       string    `json:"user_id,omitempty"`
	Participants int       `json:"participants"`
	Timestamp    time.Time `json:"timestamp"`
}

// Store defines persistence operations for activity events.
type Store interface {
	// Record records an activity event.
	Record(a Activity) error
	// List returns recent activity events, newest first.
	// Limit of 0 returns all events.
	List(limit int) ([]Activity, error)
	// ListSince returns activity events since the given time, newest first.
	ListSince(since time.Time, limit int) ([]Activity, error)
}

// FromEvent converts a room lifecycle event.
func FromEvent(ev room.Event) Activity {
	return Activity{
		Type:         typeOf(ev.Kind),
		RoomID:       ev.RoomID,
		UserID:       ev.UserID,
		Participants: ev.Participants,
		Timestamp:    ev.At,
	}
}

func typeOf(kind room.EventKind) Type {
	switch kind {
	case room.EventRoomCreated:
		return TypeRoomCreated
	case room.EventRoomDeleted:
		return TypeRoomDeleted
	case room.EventJoined:
		return TypeJoined
	case room.EventLeft:
		return TypeLeft
	default:
		return Type(kind)
	}
}

// FilterRoom returns the activities for roomID, preserving order.
func FilterRoom(items []Activity, roomID string) []Activity {
	if roomID == "" {
		return items
	}

	out := make([]Activity, 0, len(items))
	for _, a := range items {
		if a.RoomID == roomID {
			out = append(out, a)
		}
	}
	return out
}
