package iolimit

import (
	"math"
	"sync"
	"time"
)

// ThroughputSample is one closed observation window.
type ThroughputSample struct {
	WindowStart   time.Time
	WindowEnd     time.Time
	BytesAdmitted int64
}

// ThroughputSampler accumulates admitted bytes into fixed-size time windows
// and keeps the most recent windows in a ring. The auto-tune controller
// reads mean throughput and dispersion from it; idle windows close as
// zero-byte samples so quiet periods drag the mean down instead of
// vanishing.
type ThroughputSampler struct {
	mu          sync.Mutex
	window      time.Duration
	samples     []ThroughputSample
	next        int
	count       int
	windowStart time.Time
	current     int64
	started     bool
}

// NewThroughputSampler creates a sampler with the given window length and
// ring capacity.
func NewThroughputSampler(window time.Duration, ringSize int) *ThroughputSampler {
	if ringSize < 1 {
		ringSize = 1
	}
	return &ThroughputSampler{
		window:  window,
		samples: make([]ThroughputSample, ringSize),
	}
}

// Record adds admitted bytes at the given instant, closing any windows that
// have fully elapsed since the last call.
func (s *ThroughputSampler) Record(bytes int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollLocked(now)
	s.current += bytes
}

// Roll closes elapsed windows without recording anything. The controller
// calls it before reading so an idle limiter still produces zero samples.
func (s *ThroughputSampler) Roll(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollLocked(now)
}

func (s *ThroughputSampler) rollLocked(now time.Time) {
	if !s.started {
		s.started = true
		s.windowStart = now
		return
	}
	for now.Sub(s.windowStart) >= s.window {
		s.samples[s.next] = ThroughputSample{
			WindowStart:   s.windowStart,
			WindowEnd:     s.windowStart.Add(s.window),
			BytesAdmitted: s.current,
		}
		s.next = (s.next + 1) % len(s.samples)
		if s.count < len(s.samples) {
			s.count++
		}
		s.windowStart = s.windowStart.Add(s.window)
		s.current = 0
	}
}

// Snapshot returns up to n of the most recent closed windows, oldest first.
func (s *ThroughputSampler) Snapshot(n int) []ThroughputSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.count {
		n = s.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]ThroughputSample, 0, n)
	start := (s.next - n + len(s.samples)) % len(s.samples)
	for i := 0; i < n; i++ {
		out = append(out, s.samples[(start+i)%len(s.samples)])
	}
	return out
}

// Stats returns the mean throughput in bytes per second across the n most
// recent closed windows plus the coefficient of variation of the per-window
// byte counts. samples is how many windows actually contributed; zero means
// nothing has been observed yet.
func (s *ThroughputSampler) Stats(n int) (meanBytesPerSec float64, cv float64, samples int) {
	snap := s.Snapshot(n)
	if len(snap) == 0 {
		return 0, 0, 0
	}
	var sum float64
	for _, sm := range snap {
		sum += float64(sm.BytesAdmitted)
	}
	mean := sum / float64(len(snap))
	var variance float64
	for _, sm := range snap {
		d := float64(sm.BytesAdmitted) - mean
		variance += d * d
	}
	variance /= float64(len(snap))
	if mean > 0 {
		cv = math.Sqrt(variance) / mean
	}
	return mean / s.window.Seconds(), cv, len(snap)
}
