package client

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/scribble/internal/core/protocol"
	"github.com/hay-kot/scribble/internal/core/room"
	"github.com/hay-kot/scribble/internal/server"
)

func startServer(t *testing.T) string {
	t.Helper()
	reg := room.NewRegistry(room.Options{Logger: zerolog.Nop()})
	s := server.New(reg, server.Options{
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: time.Second,
		Transport: server.TransportOptions{
			SendBuffer:      64,
			WriteTimeout:    time.Second,
			PongTimeout:     5 * time.Second,
			PingInterval:    4 * time.Second,
			MaxMessageBytes: 64 * 1024,
		},
	}, nil, zerolog.Nop())

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return wsURL(ts)
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

type inbox chan protocol.Message

func (in inbox) handle(msg protocol.Message) { in <- msg }

func (in inbox) next(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case msg := <-in:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func waitFor[T protocol.Message](t *testing.T, in inbox) T {
	t.Helper()
	for {
		if m, ok := in.next(t).(T); ok {
			return m
		}
	}
}

func run(t *testing.T, c *Client) inbox {
	t.Helper()
	in := make(inbox, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, in.handle)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return in
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func TestClient_JoinAndExchange(t *testing.T) {
	url := startServer(t)

	a := New(Options{URL: url, RoomID: "studio", UserID: "alice", Logger: zerolog.Nop()})
	inA := run(t, a)
	joined := waitFor[protocol.Joined](t, inA)
	assert.Equal(t, "studio", joined.RoomID)
	assert.Empty(t, a.Peers())

	b := New(Options{URL: url, RoomID: "studio", UserID: "bob", Logger: zerolog.Nop()})
	inB := run(t, b)
	joinedB := waitFor[protocol.Joined](t, inB)
	require.Len(t, joinedB.Users, 1)
	assert.Equal(t, []string{"alice"}, b.Peers())

	assert.Equal(t, "bob", waitFor[protocol.UserJoined](t, inA).UserID)
	assert.Equal(t, []string{"bob"}, a.Peers())

	require.NoError(t, b.Draw(1, 2, 3, 4, "#ff0000", 2))
	draw := waitFor[protocol.Draw](t, inA)
	assert.Equal(t, "bob", draw.UserID)
	assert.Equal(t, 3.0, draw.ToX)

	// A single action sits at cursor 0 and cannot be undone.
	require.NoError(t, a.Undo())
	undo := waitFor[protocol.Undo](t, inB)
	assert.False(t, undo.Success)
	assert.Equal(t, 0, undo.Cursor)

	require.NoError(t, b.Draw(3, 4, 5, 6, "#ff0000", 2))
	waitFor[protocol.Draw](t, inA)

	require.NoError(t, a.Undo())
	undo = waitFor[protocol.Undo](t, inB)
	assert.True(t, undo.Success)
	assert.Equal(t, 0, undo.Cursor)
	assert.Equal(t, 2, undo.TotalActions)
	assert.Equal(t, "alice", undo.UserID)
	assert.Equal(t, StateConnected, a.State())
}

func TestClient_FlushesQueueAfterJoin(t *testing.T) {
	url := startServer(t)

	watcher := New(Options{URL: url, RoomID: "r1", UserID: "watcher", Logger: zerolog.Nop()})
	inW := run(t, watcher)
	waitFor[protocol.Joined](t, inW)

	c := New(Options{URL: url, RoomID: "r1", UserID: "late", Logger: zerolog.Nop()})
	require.NoError(t, c.Draw(0, 0, 9, 9, "#000", 1))
	require.NoError(t, c.Cursor(9, 9))
	assert.Equal(t, 2, c.Queued())

	run(t, c)

	assert.Equal(t, "late", waitFor[protocol.UserJoined](t, inW).UserID)
	draw := waitFor[protocol.Draw](t, inW)
	assert.Equal(t, "late", draw.UserID)
	assert.Equal(t, 9.0, draw.ToY)
	assert.Equal(t, "late", waitFor[protocol.Cursor](t, inW).UserID)
	assert.Equal(t, 0, c.Queued())
}

func TestClient_QueueDropsOldest(t *testing.T) {
	c := New(Options{URL: "ws://unused", QueueSize: 2, Logger: zerolog.Nop()})
	require.NoError(t, c.Cursor(1, 1))
	require.NoError(t, c.Cursor(2, 2))
	require.NoError(t, c.Cursor(3, 3))

	require.Equal(t, 2, c.Queued())
	msg, err := protocol.Decode(c.queue[0])
	require.NoError(t, err)
	assert.Equal(t, 2.0, msg.(protocol.Cursor).X)
}

func TestClient_Reconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close() //nolint:errcheck

		n := conns.Add(1)
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection right after join.
			return
		}

		msg, _ := protocol.Decode(data)
		join := msg.(protocol.Join)
		reply, _ := protocol.Encode(protocol.Joined{UserID: join.UserID, RoomID: join.RoomID, Users: []protocol.Participant{}})
		_ = ws.WriteMessage(websocket.TextMessage, reply)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)

	states := &stateLog{}
	c := New(Options{
		URL:     wsURL(ts),
		UserID:  "alice",
		Policy:  Policy{Base: 10 * time.Millisecond, MaxAttempts: 3},
		OnState: states.record,
		Logger:  zerolog.Nop(),
	})
	in := run(t, c)

	joined := waitFor[protocol.Joined](t, in)
	assert.Equal(t, "alice", joined.UserID)
	assert.Equal(t, int32(2), conns.Load())
	assert.Equal(t, 0, c.Attempts())

	assert.Equal(t, []State{
		StateConnecting,
		StateConnected,
		StateReconnecting,
		StateConnecting,
		StateConnected,
	}, states.get())
}

func TestClient_GivesUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	states := &stateLog{}
	c := New(Options{
		URL:     "ws://" + addr + "/ws",
		Policy:  Policy{Base: time.Millisecond, MaxAttempts: 2},
		OnState: states.record,
		Logger:  zerolog.Nop(),
	})

	err = c.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, []State{
		StateConnecting,
		StateReconnecting,
		StateConnecting,
		StateReconnecting,
		StateConnecting,
		StateDisconnected,
	}, states.get())
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	url := startServer(t)
	c := New(Options{URL: url, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	in := make(inbox, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx, in.handle) }()

	waitFor[protocol.Joined](t, in)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_Track(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	c := New(Options{UserID: "me", Now: func() time.Time { return now }, Logger: zerolog.Nop()})

	c.track(protocol.Joined{UserID: "me", RoomID: "r", Users: []protocol.Participant{{UserID: "a"}, {UserID: "b"}}})
	assert.Equal(t, []string{"a", "b"}, c.Peers())

	c.track(protocol.UserJoined{UserID: "c"})
	c.track(protocol.UserLeft{UserID: "a"})
	assert.Equal(t, []string{"b", "c"}, c.Peers())

	assert.False(t, c.track(protocol.Draw{UserID: "me"}))
	assert.True(t, c.track(protocol.Draw{UserID: "b"}))

	c.track(protocol.Pong{Timestamp: now.Add(-25 * time.Millisecond).UnixMilli()})
	assert.Equal(t, 25*time.Millisecond, c.Latency())
}

func TestNew_Defaults(t *testing.T) {
	c := New(Options{})
	assert.True(t, strings.HasPrefix(c.UserID(), "user_"))
	assert.Equal(t, "default", c.RoomID())
	assert.Equal(t, StateDisconnected, c.State())
}
