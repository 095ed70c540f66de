package jsonfile

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/scribble/internal/core/activity"
)

func TestActivityStore_RecordAndList(t *testing.T) {
	store := NewActivityStore(t.TempDir())

	for _, user := range []string{"a", "b", "c"} {
		require.NoError(t, store.Record(activity.Activity{
			Type:   activity.TypeJoined,
			RoomID: "r1",
			UserID: user,
		}))
	}

	got, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].UserID, "newest first")
	assert.Equal(t, "a", got[2].UserID)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())

	limited, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestActivityStore_ListEmpty(t *testing.T) {
	store := NewActivityStore(t.TempDir())

	got, err := store.List(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestActivityStore_Retention(t *testing.T) {
	store := NewActivityStore(t.TempDir()).WithMaxEntries(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(activity.Activity{Type: activity.TypeJoined, Participants: i}))
	}

	got, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 4, got[0].Participants)
	assert.Equal(t, 2, got[2].Participants)
}

func TestActivityStore_ListSince(t *testing.T) {
	store := NewActivityStore(t.TempDir())
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Record(activity.Activity{
			Type:      activity.TypeLeft,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := store.ListSince(base.Add(90*time.Second), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base.Add(3*time.Minute), got[0].Timestamp)
}

func TestActivityStore_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	store := NewActivityStore(dir)
	require.NoError(t, store.Record(activity.Activity{Type: activity.TypeRoomCreated, RoomID: "r1"}))

	f, err := os.OpenFile(store.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	got, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RoomID)
}

func TestActivityStore_ConcurrentRecord(t *testing.T) {
	store := NewActivityStore(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Record(activity.Activity{Type: activity.TypeJoined}))
		}()
	}
	wg.Wait()

	got, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}
