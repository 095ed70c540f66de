package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/scribble/internal/core/history"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Message
	}{
		{
			name:  "join",
			input: `{"type":"join","userId":"u1","roomId":"r1","timestamp":5}`,
			want:  Join{UserID: "u1", RoomID: "r1", Timestamp: 5},
		},
		{
			name:  "draw",
			input: `{"type":"draw","userId":"ignored","fromX":1,"fromY":2,"toX":3,"toY":4,"color":"#ff0000","width":5,"tool":"brush"}`,
			want:  Draw{UserID: "ignored", FromX: 1, FromY: 2, ToX: 3, ToY: 4, Color: "#ff0000", Width: 5, Tool: "brush"},
		},
		{
			name:  "cursor",
			input: `{"type":"cursor","x":10.5,"y":-3}`,
			want:  Cursor{X: 10.5, Y: -3},
		},
		{
			name:  "undo without fields",
			input: `{"type":"undo"}`,
			want:  Undo{},
		},
		{
			name:  "outbound undo",
			input: `{"type":"undo","userId":"u1","success":true,"cursor":2,"totalActions":4}`,
			want:  Undo{UserID: "u1", HistoryStep: HistoryStep{Success: true, Cursor: 2, TotalActions: 4}},
		},
		{
			name:  "sync request",
			input: `{"type":"sync-request","timestamp":9}`,
			want:  SyncRequest{Timestamp: 9},
		},
		{
			name:  "ping",
			input: `{"type":"ping"}`,
			want:  Ping{},
		},
		{
			name:  "error",
			input: `{"type":"error","error":"boom"}`,
			want:  Error{Message: "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"not json", `{not json`, ErrMalformed},
		{"array", `[1,2]`, ErrMalformed},
		{"missing type", `{"userId":"u1"}`, ErrMalformed},
		{"null", `null`, ErrMalformed},
		{"wrong field type", `{"type":"draw","fromX":"left"}`, ErrMalformed},
		{"unknown type", `{"type":"teleport"}`, ErrUnknownType},
		{"join missing room", `{"type":"join","userId":"u1"}`, ErrInvalid},
		{"join bad user", `{"type":"join","userId":"a b","roomId":"r1"}`, ErrInvalid},
		{"negative width", `{"type":"draw","width":-1}`, ErrInvalid},
		{"long color", `{"type":"draw","color":"` + strings.Repeat("x", 40) + `"}`, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_InvalidNamesJSONField(t *testing.T) {
	_, err := Decode([]byte(`{"type":"join","userId":"u1"}`))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "roomId")
}

func TestEncode_TypeFirst(t *testing.T) {
	data, err := Encode(UserLeft{UserID: "u1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-left","userId":"u1"}`, string(data))
	assert.True(t, strings.HasPrefix(string(data), `{"type":"user-left",`))
}

func TestEncode_EmptyBody(t *testing.T) {
	data, err := Encode(Pong{})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"pong"}`, string(data))
}

func TestEncode_UndoKeepsFalseSuccess(t *testing.T) {
	data, err := Encode(Undo{UserID: "u1", HistoryStep: HistoryStep{Success: false, Cursor: 0, TotalActions: 1}})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, false, raw["success"])
	assert.Equal(t, 0.0, raw["cursor"])
}

func TestEncode_JoinedCanvasState(t *testing.T) {
	msg := Joined{
		UserID: "b",
		RoomID: "r1",
		Users:  []Participant{{UserID: "a"}},
		CanvasState: history.Snapshot{
			Actions: []history.Action{{
				Kind:       history.KindStroke,
				SequenceID: 1,
				AuthorID:   "a",
				To:         history.Point{X: 10, Y: 10},
			}},
			Cursor:       0,
			TotalActions: 1,
		},
	}

	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	joined, ok := got.(Joined)
	require.True(t, ok)
	require.Len(t, joined.CanvasState.Actions, 1)
	assert.Equal(t, uint64(1), joined.CanvasState.Actions[0].SequenceID)
	assert.Equal(t, 10.0, joined.CanvasState.Actions[0].To.X)
	assert.Equal(t, 0, joined.CanvasState.Cursor)
}

func TestTypes_EveryTypeDecodes(t *testing.T) {
	valid := map[Type]string{
		TypeJoin: `,"userId":"u","roomId":"r"`,
	}

	for _, typ := range Types() {
		t.Run(string(typ), func(t *testing.T) {
			msg, err := Decode([]byte(`{"type":"` + string(typ) + `"` + valid[typ] + `}`))
			require.NoError(t, err)
			assert.Equal(t, typ, msg.Type())
		})
	}
}

func TestInboundTypes(t *testing.T) {
	types := InboundTypes()
	assert.Contains(t, types, TypeJoin)
	assert.Contains(t, types, TypeSyncRequest)
	assert.NotContains(t, types, TypeJoined)

	types[0] = "mutated"
	assert.Equal(t, TypeJoin, InboundTypes()[0])
}

func TestDraw_Action(t *testing.T) {
	d := Draw{UserID: "spoofed", FromX: 0, FromY: 0, ToX: 10, ToY: 10, Color: "#000", Width: 3, Tool: "eraser"}

	a := d.Action("real")
	assert.Equal(t, history.KindStroke, a.Kind)
	assert.Equal(t, "real", a.AuthorID)
	assert.Equal(t, history.Point{X: 10, Y: 10}, a.To)
	assert.Equal(t, "eraser", a.Tool)
}
