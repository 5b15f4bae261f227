package iolimit

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/ratelimit"
)

// IngestPacer spaces replication ingest operations evenly in time, ahead of
// the byte-level admission the RateLimiter does. Pacing by operation count
// smooths the arrival pattern so ingest bursts reach the limiter as a
// steady trickle instead of a thundering herd.
//
// The underlying leaky-bucket limiter sits behind an atomic pointer so the
// pace can be retargeted without stalling admitters.
type IngestPacer struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewIngestPacer creates a pacer admitting opsPerSec operations per second.
func NewIngestPacer(opsPerSec int) (*IngestPacer, error) {
	p := &IngestPacer{}
	if err := p.Retarget(opsPerSec); err != nil {
		return nil, err
	}
	return p, nil
}

// Admit blocks until the next operation slot and returns its scheduled
// time.
func (p *IngestPacer) Admit() {
	(*p.limiter.Load()).Take()
}

// Retarget swaps in a new pace. Operations already blocked in Admit finish
// under the old pace; subsequent calls use the new one.
func (p *IngestPacer) Retarget(opsPerSec int) error {
	if opsPerSec <= 0 {
		return fmt.Errorf("%w: pacer rate must be positive, got %d", ErrConfigRejected, opsPerSec)
	}
	l := ratelimit.New(opsPerSec)
	p.limiter.Store(&l)
	return nil
}
