package iolimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerClosesWindowsOnRoll(t *testing.T) {
	start := time.Now()
	s := NewThroughputSampler(time.Second, 8)

	s.Record(100, start)
	s.Record(200, start.Add(500*time.Millisecond))
	assert.Empty(t, s.Snapshot(8), "open window must not be visible")

	s.Roll(start.Add(time.Second))
	snap := s.Snapshot(8)
	require.Len(t, snap, 1)
	assert.Equal(t, int64(300), snap[0].BytesAdmitted)
	assert.Equal(t, start, snap[0].WindowStart)
}

func TestSamplerIdleWindowsAreZero(t *testing.T) {
	start := time.Now()
	s := NewThroughputSampler(time.Second, 8)

	s.Record(1000, start)
	// Three seconds of silence close three windows, two of them empty.
	s.Roll(start.Add(3 * time.Second))
	snap := s.Snapshot(8)
	require.Len(t, snap, 3)
	assert.Equal(t, int64(1000), snap[0].BytesAdmitted)
	assert.Equal(t, int64(0), snap[1].BytesAdmitted)
	assert.Equal(t, int64(0), snap[2].BytesAdmitted)
}

func TestSamplerRingKeepsMostRecent(t *testing.T) {
	start := time.Now()
	s := NewThroughputSampler(time.Second, 3)

	for i := 0; i < 5; i++ {
		s.Record(int64(i+1)*100, start.Add(time.Duration(i)*time.Second))
	}
	s.Roll(start.Add(5 * time.Second))

	snap := s.Snapshot(10)
	require.Len(t, snap, 3)
	assert.Equal(t, int64(300), snap[0].BytesAdmitted)
	assert.Equal(t, int64(400), snap[1].BytesAdmitted)
	assert.Equal(t, int64(500), snap[2].BytesAdmitted)
}

func TestSamplerStats(t *testing.T) {
	start := time.Now()
	s := NewThroughputSampler(time.Second, 8)

	_, _, n := s.Stats(5)
	assert.Equal(t, 0, n, "no closed windows yet")

	for i := 0; i < 4; i++ {
		s.Record(1000, start.Add(time.Duration(i)*time.Second))
	}
	s.Roll(start.Add(4 * time.Second))

	mean, cv, n := s.Stats(4)
	assert.Equal(t, 4, n)
	assert.InDelta(t, 1000.0, mean, 0.01)
	assert.InDelta(t, 0.0, cv, 0.01, "identical windows have no dispersion")

	// A half-second window length doubles the per-second mean.
	s2 := NewThroughputSampler(500*time.Millisecond, 8)
	s2.Record(500, start)
	s2.Roll(start.Add(500 * time.Millisecond))
	mean, _, n = s2.Stats(1)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 1000.0, mean, 0.01)
}
