// Package protocol defines the wire vocabulary exchanged between drawing
// clients and the server.
package protocol

import "github.com/hay-kot/scribble/internal/core/history"

// Type is the "type" discriminator carried by every message.
type Type string

const (
	TypeJoin        Type = "join"
	TypeJoined      Type = "joined"
	TypeUserJoined  Type = "user-joined"
	TypeUserLeft    Type = "user-left"
	TypeDraw        Type = "draw"
	TypeCursor      Type = "cursor"
	TypeUndo        Type = "undo"
	TypeRedo        Type = "redo"
	TypeClear       Type = "clear"
	TypeSyncRequest Type = "sync-request"
	TypeCanvasSync  Type = "canvas-sync"
	TypePing        Type = "ping"
	TypePong        Type = "pong"
	TypeError       Type = "error"
)

// Message is implemented only by the message types in this package.
type Message interface {
	Type() Type
	message()
}

// Participant describes another user present in a room.
type Participant struct {
	UserID string        `json:"userId"`
	Cursor history.Point `json:"cursor"`
}

// HistoryStep reports the shared history position after undo or redo.
type HistoryStep struct {
	Success      bool `json:"success"`
	Cursor       int  `json:"cursor"`
	TotalActions int  `json:"totalActions"`
}

// Join asks to enter a room. Rooms are created on first join.
type Join struct {
	UserID    string `json:"userId" validate:"ident"`
	RoomID    string `json:"roomId" validate:"ident"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Joined is the reply to Join, sent only to the joining connection.
type Joined struct {
	UserID      string           `json:"userId"`
	RoomID      string           `json:"roomId"`
	Users       []Participant    `json:"users"`
	CanvasState history.Snapshot `json:"canvasState"`
}

// UserJoined announces a new participant to the rest of the room.
type UserJoined struct {
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// UserLeft announces that a participant disconnected.
type UserLeft struct {
	UserID string `json:"userId"`
}

// Draw is one stroke segment. Inbound, UserID and SequenceID are ignored; the
// server fills them from the session and the history.
type Draw struct {
	UserID     string  `json:"userId,omitempty"`
	FromX      float64 `json:"fromX"`
	FromY      float64 `json:"fromY"`
	ToX        float64 `json:"toX"`
	ToY        float64 `json:"toY"`
	Color      string  `json:"color,omitempty" validate:"max=32"`
	Width      float64 `json:"width" validate:"gte=0,lte=512"`
	Tool       string  `json:"tool,omitempty" validate:"max=32"`
	SequenceID uint64  `json:"sequenceId,omitempty"`
	Timestamp  int64   `json:"timestamp,omitempty"`
}

// Cursor is an ephemeral pointer position. It is never recorded in history.
type Cursor struct {
	UserID    string  `json:"userId,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// Undo requests (inbound) or reports (outbound) a shared undo.
type Undo struct {
	UserID string `json:"userId,omitempty"`
	HistoryStep
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Redo requests (inbound) or reports (outbound) a shared redo.
type Redo struct {
	UserID string `json:"userId,omitempty"`
	HistoryStep
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Clear requests (inbound) or reports (outbound) a canvas clear.
type Clear struct {
	UserID       string `json:"userId,omitempty"`
	SequenceID   uint64 `json:"sequenceId,omitempty"`
	Cursor       int    `json:"cursor"`
	TotalActions int    `json:"totalActions"`
	Timestamp    int64  `json:"timestamp,omitempty"`
}

// SyncRequest asks for the current visible action sequence.
type SyncRequest struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

// CanvasSync answers SyncRequest.
type CanvasSync struct {
	CanvasState history.Snapshot `json:"canvasState"`
	Timestamp   int64            `json:"timestamp,omitempty"`
}

type Ping struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

type Pong struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Error reports a protocol failure to the sender.
type Error struct {
	Message string `json:"error"`
}

func (Join) Type() Type        { return TypeJoin }
func (Joined) Type() Type      { return TypeJoined }
func (UserJoined) Type() Type  { return TypeUserJoined }
func (UserLeft) Type() Type    { return TypeUserLeft }
func (Draw) Type() Type        { return TypeDraw }
func (Cursor) Type() Type      { return TypeCursor }
func (Undo) Type() Type        { return TypeUndo }
func (Redo) Type() Type        { return TypeRedo }
func (Clear) Type() Type       { return TypeClear }
func (SyncRequest) Type() Type { return TypeSyncRequest }
func (CanvasSync) Type() Type  { return TypeCanvasSync }
func (Ping) Type() Type        { return TypePing }
func (Pong) Type() Type        { return TypePong }
func (Error) Type() Type       { return TypeError }

func (Join) message()        {}
func (Joined) message()      {}
func (UserJoined) message()  {}
func (UserLeft) message()    {}
func (Draw) message()        {}
func (Cursor) message()      {}
func (Undo) message()        {}
func (Redo) message()        {}
func (Clear) message()       {}
func (SyncRequest) message() {}
func (CanvasSync) message()  {}
func (Ping) message()        {}
func (Pong) message()        {}
func (Error) message()       {}

// Action converts a draw message into a stroke action authored by authorID.
func (d Draw) Action(authorID string) history.Action {
	return history.Action{
		Kind:     history.KindStroke,
		AuthorID: authorID,
		From:     history.Point{X: d.FromX, Y: d.FromY},
		To:       history.Point{X: d.ToX, Y: d.ToY},
		Color:    d.Color,
		Width:    d.Width,
		Tool:     d.Tool,
	}
}

// StepOf converts a history result into a HistoryStep.
func StepOf(res history.Result) HistoryStep {
	return HistoryStep{
		Success:      res.Success,
		Cursor:       res.Cursor,
		TotalActions: res.TotalActions,
	}
}
