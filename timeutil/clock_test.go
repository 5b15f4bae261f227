package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, time.Duration(0), c.Since(start))

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, start.Add(1500*time.Millisecond), c.Now())
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))

	moved := start.Add(time.Hour)
	c.Set(moved)
	assert.Equal(t, moved, c.Now())
}

func TestManualClockSetBackwards(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	c.Advance(time.Minute)

	c.Set(start.Add(-time.Minute))
	assert.Equal(t, start.Add(-time.Minute), c.Now())
	assert.Equal(t, -time.Minute, c.Since(start), "Since reflects the backwards move")
}

func TestRealClockMovesForward(t *testing.T) {
	c := NewRealClock()
	before := c.Now()
	time.Sleep(5 * time.Millisecond)
	assert.True(t, c.Since(before) > 0)
}

func TestCoarseClock(t *testing.T) {
	c := NewCoarseClock(time.Millisecond)
	defer c.Stop()

	first := c.Now()
	assert.False(t, first.IsZero())

	// The cached reading must catch up with real time within a few refresh
	// intervals.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Now().After(first) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("coarse clock never advanced")
}

func TestCoarseClockStopFreezesReading(t *testing.T) {
	c := NewCoarseClock(time.Millisecond)
	c.Stop()

	frozen := c.Now()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, frozen, c.Now(), "no refreshes after Stop")

	// Stop waits for the refresh goroutine; a second reading taken here
	// cannot race a late store.
	assert.True(t, c.Since(frozen) == 0)
}

func TestCoarseClockStalenessBound(t *testing.T) {
	c := NewCoarseClock(time.Millisecond)
	defer c.Stop()

	time.Sleep(20 * time.Millisecond)
	lag := time.Since(c.Now())
	assert.Less(t, lag, 250*time.Millisecond, "cached reading stays close to real time")
}
