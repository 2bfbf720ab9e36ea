package timeutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClock_AfterAdvances(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMockClock(start)

	got := <-c.After(1500 * time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), got)
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, c.Sleeps())

	c.Advance(time.Minute)
	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSleep(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))

	require.NoError(t, Sleep(context.Background(), c, time.Second))
	require.NoError(t, Sleep(context.Background(), c, 0))
	assert.Equal(t, []time.Duration{time.Second}, c.Sleeps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, RealClock{}, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, c, 0), context.Canceled)
}

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	assert.False(t, c.Now().Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}
