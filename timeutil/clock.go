// Package timeutil provides clock abstractions and monotonic time helpers
// shared by the storage engine's utility layer. Components that schedule or
// meter work against wall time take a Clock instead of calling time.Now()
// directly, so their behavior can be driven deterministically in tests.
package timeutil

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock abstracts time so time-dependent components work with both real and
// manual time sources.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// RealClock delegates to the standard time package.
type RealClock struct{}

// NewRealClock returns a Clock backed by the system clock.
func NewRealClock() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// ManualClock is a controllable clock for deterministic tests. Time only
// moves when Advance or Set is called.
//
// Thread-safe for concurrent use.
type ManualClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewManualClock creates a ManualClock starting at the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{current: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Since returns the manual duration elapsed since t.
func (c *ManualClock) Since(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Sub(t)
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set moves the clock to t. Moving backwards is allowed; consumers that
// require monotonic behavior must guard against it themselves.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// CoarseClock publishes a cached wall-clock reading refreshed on a fixed
// interval by a background goroutine. Hot paths that tolerate a few
// milliseconds of staleness read it with a single atomic load instead of a
// full clock syscall.
type CoarseClock struct {
	nanos  atomic.Int64
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCoarseClock starts a CoarseClock refreshing every interval.
// Call Stop when done to release the background goroutine.
func NewCoarseClock(interval time.Duration) *CoarseClock {
	c := &CoarseClock{
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	c.nanos.Store(time.Now().UnixNano())
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *CoarseClock) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ticker.C:
			c.nanos.Store(time.Now().UnixNano())
		case <-c.stopCh:
			return
		}
	}
}

// Now returns the most recently published time. The result lags real time
// by at most one refresh interval.
func (c *CoarseClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load())
}

// Since returns the duration elapsed since t according to the cached time.
func (c *CoarseClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Stop halts the refresh goroutine. Now keeps returning the last published
// value after Stop.
func (c *CoarseClock) Stop() {
	c.ticker.Stop()
	close(c.stopCh)
	c.wg.Wait()
}
