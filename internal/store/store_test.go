package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/occupancy-counter/internal/counting"
	"github.com/ironsheep/occupancy-counter/internal/geometry"
	"github.com/ironsheep/occupancy-counter/internal/timeutil"
)

func setupTestStore(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	s, err := Open(filepath.Join(t.TempDir(), "events.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func entry(room string, track int) counting.CrossingEvent {
	return counting.CrossingEvent{
		BoundaryID: room,
		Direction:  geometry.DirectionDown,
		Kind:       counting.KindEntry,
		TrackID:    track,
		Frame:      track * 10,
		VideoTime:  time.Duration(track) * 333 * time.Millisecond,
		Occupancy:  1,
	}
}

func exit(room string, track int) counting.CrossingEvent {
	ev := entry(room, track)
	ev.Direction = geometry.DirectionUp
	ev.Kind = counting.KindExit
	ev.Occupancy = 0
	return ev
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s, _ := setupTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Applying again is a no-op.
	require.NoError(t, s.MigrateUp())
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), entry("a", 1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	events, err := s.Events(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecord_RollingEntryCount(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	rec, err := s.Record(ctx, entry("a", 1))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.EntryCountLastHour)

	clock.Advance(20 * time.Minute)
	rec, err = s.Record(ctx, entry("a", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.EntryCountLastHour)

	rec, err = s.Record(ctx, exit("a", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.EntryCountLastHour, "exits report the count without adding to it")

	rec, err = s.Record(ctx, entry("b", 3))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.EntryCountLastHour, "counts are per room")

	// The first entry falls out of the window.
	clock.Advance(45 * time.Minute)
	n, err := s.EntriesLastHour(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	clock.Advance(time.Hour)
	n, err = s.EntriesLastHour(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEvents_RoundTrip(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.HandleEvent(ctx, entry("a", 4)))
	require.NoError(t, s.HandleEvent(ctx, exit("b", 5)))

	all, err := s.Events(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].RoomID, "newest first")

	got, err := s.Events(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EventRecord{
		ID:                 1,
		RoomID:             "a",
		TrackID:            4,
		Direction:          geometry.DirectionDown,
		Kind:               counting.KindEntry,
		Occupancy:          1,
		EntryCountLastHour: 1,
		Frame:              40,
		VideoTime:          1332 * time.Millisecond,
		RecordedAt:         time.UnixMilli(clock.Now().UnixMilli()),
	}, got[0])

	limited, err := s.Events(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordRefresh(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRefresh(ctx, RefreshRecord{
		Frame:      30,
		Source:     "auto-detect",
		Candidates: 3,
		Accepted:   2,
		Adopted:    true,
		Signature:  "room_1:0,300,640,300:down:6",
		Reasons:    map[string]int{"accepted_edge": 2, "too_narrow": 1},
	}))
	require.NoError(t, s.RecordRefresh(ctx, RefreshRecord{Frame: 60, Source: "auto-detect", Locked: true}))

	got, err := s.Refreshes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Adopted)
	assert.Equal(t, 2, got[0].Reasons["accepted_edge"])
	assert.True(t, got[1].Locked)
	assert.Empty(t, got[1].Reasons)
}
