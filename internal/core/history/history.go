// Package history implements the per-room action log with a movable cursor
// supporting linear undo and redo.
package history

import (
	"sync/atomic"
	"time"
)

// DefaultCapacity is the number of actions retained when no capacity is given.
const DefaultCapacity = 100

// Kind identifies the type of a recorded action.
type Kind string

const (
	KindStroke Kind = "stroke"
	KindClear  Kind = "clear"
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Action is one atomic drawing instruction. Actions are immutable once recorded.
type Action struct {
	Kind       Kind      `json:"kind"`
	SequenceID uint64    `json:"sequenceId"`
	AuthorID   string    `json:"authorId,omitempty"`
	From       Point     `json:"from"`
	To         Point     `json:"to"`
	Color      string    `json:"color,omitempty"`
	Width      float64   `json:"width,omitempty"`
	Tool       string    `json:"tool,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Result describes the history position after a mutation.
type Result struct {
	SequenceID   uint64 `json:"sequenceId,omitempty"`
	Success      bool   `json:"success"`
	Cursor       int    `json:"cursor"`
	TotalActions int    `json:"totalActions"`
}

// Snapshot is the visible prefix of the log, actions[0..cursor].
type Snapshot struct {
	Actions      []Action `json:"actions"`
	Cursor       int      `json:"cursor"`
	TotalActions int      `json:"totalActions"`
}

// Info is a diagnostic summary of a history.
type Info struct {
	TotalActions int       `json:"totalActions"`
	Cursor       int       `json:"cursor"`
	Capacity     int       `json:"capacity"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Sequence hands out strictly increasing sequence ids. A single Sequence may be
// shared by many histories.
type Sequence struct {
	n atomic.Uint64
}

// Next returns the next id, starting at 1.
func (s *Sequence) Next() uint64 {
	return s.n.Add(1)
}

// History is an ordered action log with a cursor marking the last active action.
//
// History is not safe for concurrent use; the owning room serializes access.
type History struct {
	actions   []Action
	cursor    int
	capacity  int
	seq       *Sequence
	createdAt time.Time
	now       func() time.Time
}

// New creates an empty history. A capacity below 1 uses DefaultCapacity and a
// nil seq gives the history its own counter.
func New(capacity int, seq *Sequence) *History {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if seq == nil {
		seq = &Sequence{}
	}
	return &History{
		cursor:    -1,
		capacity:  capacity,
		seq:       seq,
		createdAt: time.Now(),
		now:       time.Now,
	}
}

// Record discards any undone actions, appends action and moves the cursor to it.
// The action's SequenceID is always assigned here; RecordedAt is set when zero.
func (h *History) Record(action Action) Result {
	if action.Kind == "" {
		action.Kind = KindStroke
	}
	return h.push(action)
}

// Clear records a clear action using the same truncate-then-append rule as Record.
func (h *History) Clear(authorID string) Result {
	return h.push(Action{Kind: KindClear, AuthorID: authorID})
}

// Undo moves the cursor back one action. It reports Success false when the
// cursor is already at the first action or the history is empty.
func (h *History) Undo() Result {
	if h.cursor > 0 {
		h.cursor--
		return h.result(true)
	}
	return h.result(false)
}

// Redo moves the cursor forward one action if an undone action exists.
func (h *History) Redo() Result {
	if h.cursor < len(h.actions)-1 {
		h.cursor++
		return h.result(true)
	}
	return h.result(false)
}

// Snapshot returns a copy of the visible actions, sufficient to rebuild the canvas
// by replaying them in order.
func (h *History) Snapshot() Snapshot {
	actions := make([]Action, h.cursor+1)
	copy(actions, h.actions[:h.cursor+1])
	return Snapshot{
		Actions:      actions,
		Cursor:       h.cursor,
		TotalActions: len(h.actions),
	}
}

// All returns a copy of every stored action, including undone ones.
func (h *History) All() []Action {
	actions := make([]Action, len(h.actions))
	copy(actions, h.actions)
	return actions
}

// At returns the action at index i.
func (h *History) At(i int) (Action, bool) {
	if i < 0 || i >= len(h.actions) {
		return Action{}, false
	}
	return h.actions[i], true
}

// Cursor returns the index of the last active action, -1 when empty.
func (h *History) Cursor() int {
	return h.cursor
}

// Len returns the number of stored actions.
func (h *History) Len() int {
	return len(h.actions)
}

// CanUndo reports whether Undo would succeed.
func (h *History) CanUndo() bool {
	return h.cursor > 0
}

// CanRedo reports whether Redo would succeed.
func (h *History) CanRedo() bool {
	return h.cursor < len(h.actions)-1
}

// Info returns a diagnostic summary.
func (h *History) Info() Info {
	return Info{
		TotalActions: len(h.actions),
		Cursor:       h.cursor,
		Capacity:     h.capacity,
		CreatedAt:    h.createdAt,
	}
}

func (h *History) push(action Action) Result {
	// Drop the redo future before appending.
	if h.cursor < len(h.actions)-1 {
		h.actions = h.actions[:h.cursor+1]
	}

	action.SequenceID = h.seq.Next()
	if action.RecordedAt.IsZero() {
		action.RecordedAt = h.now()
	}

	h.actions = append(h.actions, action)
	h.cursor++

	if len(h.actions) > h.capacity {
		h.actions[0] = Action{}
		h.actions = h.actions[1:]
		h.cursor--
	}

	res := h.result(true)
	res.SequenceID = action.SequenceID
	return res
}

func (h *History) result(success bool) Result {
	return Result{
		Success:      success,
		Cursor:       h.cursor,
		TotalActions: len(h.actions),
	}
}
