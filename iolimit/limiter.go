package iolimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linchenxuan/kvutil/log"
	"github.com/linchenxuan/kvutil/timeutil"
	"github.com/linchenxuan/kvutil/worker"
)

// ErrInvalidRequest is returned by Acquire for non-positive byte counts or
// out-of-range direction/priority values.
var ErrInvalidRequest = errors.New("iolimit: invalid admission request")

// shard is the per-(direction, priority) slot: one bucket, one FIFO of
// waiters, and resolution counters. The mutex covers all fields.
type shard struct {
	mu     sync.Mutex
	bucket tokenBucket
	queue  waitQueue

	grantedBytes      int64
	grantedRequests   int64
	timedOutRequests  int64
	cancelledRequests int64
}

// RateLimiter admits byte-level I/O under per-direction ceilings split
// across priorities. Admission is immediate when the matching bucket covers
// the request and its queue is empty; otherwise the caller parks until the
// timer-driven dispatch cycle grants it, its deadline passes, or its
// context is cancelled.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	cfg   atomic.Pointer[Config]
	clock timeutil.Clock
	sink  MetricsSink

	shards   [numDirections][numPriorities]shard
	samplers [numDirections]*ThroughputSampler
	seq      atomic.Uint64
	stopped  atomic.Bool

	// reloadMu serializes snapshot swaps so overlapping reloads cannot
	// interleave their read-modify-write cycles.
	reloadMu sync.Mutex

	dispatchWorker *worker.Worker[struct{}]
	dispatchSched  *worker.Scheduler[struct{}]
	tuneWorker     *worker.Worker[struct{}]
	tuner          *AutoTuneController
}

// Option customizes a RateLimiter at construction time.
type Option func(*RateLimiter)

// WithClock substitutes the time source; tests drive the limiter with a
// manual clock and explicit dispatch cycles.
func WithClock(c timeutil.Clock) Option {
	return func(l *RateLimiter) { l.clock = c }
}

// WithMetricsSink substitutes the resolution sink. The default forwards to
// the process metrics facade.
func WithMetricsSink(s MetricsSink) Option {
	return func(l *RateLimiter) { l.sink = s }
}

// NewRateLimiter builds a limiter from the given snapshot. The limiter is
// inert until Start; Acquire still works before Start, but queued requests
// are only served by explicit dispatch cycles.
func NewRateLimiter(cfg *Config, opts ...Option) (*RateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &RateLimiter{
		clock: timeutil.NewRealClock(),
		sink:  facadeSink{},
	}
	for _, o := range opts {
		o(l)
	}
	snap := cfg.clone()
	l.cfg.Store(snap)

	now := l.clock.Now()
	for dir := 0; dir < numDirections; dir++ {
		for pri := 0; pri < numPriorities; pri++ {
			l.shards[dir][pri].bucket = newTokenBucket(now, snap.bucketCapacity(Direction(dir), Priority(pri)))
		}
		l.samplers[dir] = NewThroughputSampler(time.Second, 64)
	}

	l.dispatchWorker = worker.NewWorker[struct{}]("iolimit.dispatch", 16)
	l.dispatchSched = l.dispatchWorker.Scheduler()
	l.tuneWorker = worker.NewWorker[struct{}]("iolimit.autotune", 1)
	l.tuner = newAutoTuneController(l)
	return l, nil
}

// Start launches the dispatch and auto-tune workers.
func (l *RateLimiter) Start() {
	l.dispatchWorker.Start(&dispatchRunner{l: l})
	l.tuneWorker.Start(&tuneRunner{c: l.tuner})
}

// Stop halts the workers and unblocks every parked caller with
// OutcomeCancelled. After Stop, Acquire resolves immediately as
// OutcomeCancelled instead of parking with no dispatcher to serve it.
// Idempotent.
func (l *RateLimiter) Stop() {
	if !l.stopped.CompareAndSwap(false, true) {
		return
	}
	l.dispatchWorker.Stop()
	l.tuneWorker.Stop()
	for dir := 0; dir < numDirections; dir++ {
		for pri := 0; pri < numPriorities; pri++ {
			s := &l.shards[dir][pri]
			s.mu.Lock()
			for s.queue.len() > 0 {
				w := s.queue.pop()
				if w.resolve(OutcomeCancelled) {
					s.cancelledRequests++
					l.sink.OnCancelled(Direction(dir), Priority(pri), w.billed)
				} else {
					putWaiter(w)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Acquire requests admission for bytes of I/O in the given direction and
// priority. It blocks until the request is granted, the context deadline
// passes, or ctx is cancelled, and reports which of the three happened.
// Requests larger than the bucket capacity are billed at capacity so they
// remain admittable.
//
// The error is non-nil only for invalid arguments; deadline expiry and
// cancellation are ordinary outcomes, not errors.
func (l *RateLimiter) Acquire(ctx context.Context, dir Direction, pri Priority, bytes int64) (Outcome, error) {
	if bytes <= 0 || dir < 0 || dir >= numDirections || pri < 0 || pri >= numPriorities {
		return OutcomeCancelled, fmt.Errorf("%w: dir=%d pri=%d bytes=%d", ErrInvalidRequest, dir, pri, bytes)
	}
	cfg := l.cfg.Load()
	if cfg.Mode == ModeDisabled {
		l.sink.OnGranted(dir, pri, bytes, 0)
		return OutcomeGranted, nil
	}

	now := l.clock.Now()
	capacity := cfg.bucketCapacity(dir, pri)
	billed := bytes
	if billed > capacity {
		billed = capacity
	}
	deadline, _ := ctx.Deadline()

	s := &l.shards[dir][pri]
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		s.mu.Lock()
		s.cancelledRequests++
		s.mu.Unlock()
		l.sink.OnCancelled(dir, pri, billed)
		return OutcomeCancelled, nil
	}
	if (!deadline.IsZero() && !now.Before(deadline)) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.mu.Lock()
		s.timedOutRequests++
		s.mu.Unlock()
		l.sink.OnTimedOut(dir, pri, billed)
		return OutcomeTimedOut, nil
	}

	// Fast path: nobody queued ahead and the bucket covers the request.
	// The opportunistic refill is idempotent, so it never double-credits
	// against the dispatch cycle.
	s.mu.Lock()
	if l.stopped.Load() {
		// Stop sets the flag before its drain sweep takes this lock, so a
		// waiter pushed here would either be drained or never pushed at all.
		s.cancelledRequests++
		s.mu.Unlock()
		l.sink.OnCancelled(dir, pri, billed)
		return OutcomeCancelled, nil
	}
	if s.queue.len() == 0 {
		s.bucket.refill(now, cfg.bucketRate(dir, pri), capacity)
		if s.bucket.tryConsume(billed) {
			s.grantedBytes += billed
			s.grantedRequests++
			s.mu.Unlock()
			l.samplers[dir].Record(billed, now)
			l.sink.OnGranted(dir, pri, billed, 0)
			return OutcomeGranted, nil
		}
	}
	w := newWaiter(dir, pri, billed, now, deadline, l.seq.Add(1))
	s.queue.push(w)
	s.mu.Unlock()
	l.wakeDispatch()

	select {
	case o := <-w.result:
		putWaiter(w)
		return o, nil
	case <-ctx.Done():
		desired := OutcomeCancelled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			desired = OutcomeTimedOut
		}
		if !w.resolve(desired) {
			// Lost the race: the dispatcher resolved first and already did
			// the accounting. The outcome is sitting in the channel.
			o := <-w.result
			putWaiter(w)
			return o, nil
		}
		// Won the race. The waiter stays queued until the dispatcher sweeps
		// it, and the dispatcher recycles it then.
		s.mu.Lock()
		if desired == OutcomeTimedOut {
			s.timedOutRequests++
		} else {
			s.cancelledRequests++
		}
		s.mu.Unlock()
		if desired == OutcomeTimedOut {
			l.sink.OnTimedOut(dir, pri, billed)
		} else {
			l.sink.OnCancelled(dir, pri, billed)
		}
		return desired, nil
	}
}

// wakeDispatch nudges the dispatch worker outside its timer so a fresh
// enqueue does not always wait a full refill period. Best effort.
func (l *RateLimiter) wakeDispatch() {
	_ = l.dispatchSched.Schedule(struct{}{})
}

// resolution is sink work deferred until the shard locks are released.
type resolution struct {
	pri     Priority
	outcome Outcome
	billed  int64
	wait    time.Duration
}

// tick runs one dispatch cycle: sweep cancelled waiters, expire deadlines,
// refill every bucket, then grant in priority order with aged requests
// served first. Exported behavior is timer-driven; tests call it directly
// with a manual clock.
func (l *RateLimiter) tick(now time.Time) {
	cfg := l.cfg.Load()
	if cfg.Mode == ModeDisabled {
		l.drainDisabled(now)
		return
	}
	for dir := 0; dir < numDirections; dir++ {
		l.dispatchDirection(cfg, Direction(dir), now)
	}
}

func (l *RateLimiter) dispatchDirection(cfg *Config, dir Direction, now time.Time) {
	var notes []resolution
	var spare int64

	// Sweep and refill every priority slot. Per-bucket overflow above
	// capacity becomes the direction's spare budget for this pass.
	for pri := 0; pri < numPriorities; pri++ {
		s := &l.shards[dir][pri]
		s.mu.Lock()
		s.queue.compact()
		for _, w := range s.queue.expire(now) {
			s.timedOutRequests++
			notes = append(notes, resolution{pri: Priority(pri), outcome: OutcomeTimedOut, billed: w.billed})
		}
		spare += s.bucket.refill(now, cfg.bucketRate(dir, Priority(pri)), cfg.bucketCapacity(dir, Priority(pri)))
		s.mu.Unlock()
	}

	// Aged pass: requests waiting past the aging threshold are served in
	// arrival order regardless of priority, drawing on spare budget. This
	// bounds starvation of low-priority work under sustained contention.
	for {
		best := l.oldestAgedHead(cfg, dir, now)
		if best == nil {
			break
		}
		s := &l.shards[dir][best.priority]
		s.mu.Lock()
		ok := l.grantLocked(cfg, dir, best.priority, s, best, &spare, now)
		if ok {
			s.queue.pop()
			notes = append(notes, resolution{
				pri: best.priority, outcome: OutcomeGranted,
				billed: best.billed, wait: now.Sub(best.enqueuedAt),
			})
		}
		s.mu.Unlock()
		if !ok {
			break
		}
	}

	// Normal pass: high to low priority, FIFO within each queue.
	for pri := numPriorities - 1; pri >= 0; pri-- {
		s := &l.shards[dir][pri]
		s.mu.Lock()
		for {
			w := l.pendingHeadLocked(s)
			if w == nil || !l.grantLocked(cfg, dir, Priority(pri), s, w, &spare, now) {
				break
			}
			s.queue.pop()
			notes = append(notes, resolution{
				pri: Priority(pri), outcome: OutcomeGranted,
				billed: w.billed, wait: now.Sub(w.enqueuedAt),
			})
		}
		s.mu.Unlock()
	}

	var admitted int64
	for _, n := range notes {
		switch n.outcome {
		case OutcomeGranted:
			admitted += n.billed
			l.sink.OnGranted(dir, n.pri, n.billed, n.wait)
		case OutcomeTimedOut:
			l.sink.OnTimedOut(dir, n.pri, n.billed)
		}
	}
	if admitted > 0 {
		l.samplers[dir].Record(admitted, now)
	}
}

// pendingHeadLocked returns the first still-pending waiter, recycling any
// caller-resolved ones sitting ahead of it. Requires s.mu.
func (l *RateLimiter) pendingHeadLocked(s *shard) *waiter {
	for {
		w := s.queue.head()
		if w == nil {
			return nil
		}
		if w.state.Load() == waiterPending {
			return w
		}
		s.queue.pop()
		putWaiter(w)
	}
}

// oldestAgedHead finds the oldest queue head in the direction whose wait
// exceeds the aging threshold. Only the dispatcher pops, so the returned
// head stays the head until this pass handles it.
func (l *RateLimiter) oldestAgedHead(cfg *Config, dir Direction, now time.Time) *waiter {
	var best *waiter
	for pri := 0; pri < numPriorities; pri++ {
		s := &l.shards[dir][pri]
		s.mu.Lock()
		w := l.pendingHeadLocked(s)
		s.mu.Unlock()
		if w == nil || now.Sub(w.enqueuedAt) < cfg.AgingThreshold {
			continue
		}
		if best == nil || w.enqueuedAt.Before(best.enqueuedAt) ||
			(w.enqueuedAt.Equal(best.enqueuedAt) && w.seq < best.seq) {
			best = w
		}
	}
	return best
}

// grantLocked admits w from its shard's bucket, topped up by the shared
// spare budget. When the bucket alone cannot cover a head request that has
// already waited a full refill period, the request is granted into debt as
// long as the shortfall fits within one tick's credit; the negative balance
// then blocks the slot until repaid. Requires s.mu; reports false if the
// waiter cannot be granted or was resolved concurrently.
func (l *RateLimiter) grantLocked(cfg *Config, dir Direction, pri Priority, s *shard, w *waiter, spare *int64, now time.Time) bool {
	need := w.billed
	bal := s.bucket.balance
	if bal < 0 {
		return false
	}
	fromBucket := bal
	if fromBucket > need {
		fromBucket = need
	}
	fromSpare := need - fromBucket
	debt := false
	if fromSpare > *spare {
		if now.Sub(w.enqueuedAt) >= cfg.RefillPeriod && bal+cfg.tickCredit(dir, pri) >= need {
			debt = true
		} else {
			return false
		}
	}
	if !w.resolve(OutcomeGranted) {
		return false
	}
	if debt {
		s.bucket.forceConsume(need)
	} else {
		s.bucket.forceConsume(fromBucket)
		*spare -= fromSpare
	}
	s.grantedBytes += need
	s.grantedRequests++
	return true
}

// drainDisabled releases every parked waiter immediately; entered when a
// reload flips the limiter to ModeDisabled with requests still queued.
func (l *RateLimiter) drainDisabled(now time.Time) {
	for dir := 0; dir < numDirections; dir++ {
		for pri := 0; pri < numPriorities; pri++ {
			s := &l.shards[dir][pri]
			var notes []resolution
			s.mu.Lock()
			for {
				w := l.pendingHeadLocked(s)
				if w == nil {
					break
				}
				s.queue.pop()
				if w.resolve(OutcomeGranted) {
					s.grantedBytes += w.billed
					s.grantedRequests++
					notes = append(notes, resolution{
						pri: Priority(pri), outcome: OutcomeGranted,
						billed: w.billed, wait: now.Sub(w.enqueuedAt),
					})
				} else {
					putWaiter(w)
				}
			}
			s.mu.Unlock()
			for _, n := range notes {
				l.sink.OnGranted(Direction(dir), n.pri, n.billed, n.wait)
			}
		}
	}
}

// ApplyConfig validates cfg and installs it as the new snapshot in one
// atomic swap. Queued requests survive; the next dispatch cycle serves them
// under the new rates. On validation failure nothing changes.
func (l *RateLimiter) ApplyConfig(cfg *Config) error {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()
	return l.installLocked(cfg.clone())
}

// SetMode switches enforcement mode, keeping every other setting.
func (l *RateLimiter) SetMode(m Mode) error {
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()
	cfg := l.cfg.Load().clone()
	cfg.Mode = m
	return l.installLocked(cfg)
}

// installLocked requires reloadMu. cfg must be a private copy.
func (l *RateLimiter) installLocked(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("iolimit config rejected")
		return err
	}
	old := l.cfg.Load()
	l.cfg.Store(cfg)
	for dir := 0; dir < numDirections; dir++ {
		if old.ceiling(Direction(dir)) != cfg.ceiling(Direction(dir)) || old.Mode != cfg.Mode {
			l.sink.OnCeilingUpdate(Direction(dir), cfg.ceiling(Direction(dir)))
		}
	}
	log.Info().
		Str("mode", cfg.Mode.String()).
		Int64("readBytesPerSec", cfg.ReadBytesPerSec).
		Int64("writeBytesPerSec", cfg.WriteBytesPerSec).
		Msg("iolimit config installed")
	if cfg.Mode == ModeDisabled && old.Mode != ModeDisabled {
		l.wakeDispatch()
	}
	return nil
}

// SectionType returns the decode target for the limiter's configuration
// section.
func (l *RateLimiter) SectionType() any {
	return &LimitUpdate{}
}

// Reload applies a decoded configuration section. Zero-valued fields keep
// their current setting; an invalid merge leaves the snapshot untouched.
func (l *RateLimiter) Reload(section any) error {
	u, ok := section.(*LimitUpdate)
	if !ok {
		return fmt.Errorf("%w: unexpected section type %T", ErrConfigRejected, section)
	}
	l.reloadMu.Lock()
	defer l.reloadMu.Unlock()
	merged, err := u.apply(l.cfg.Load())
	if err != nil {
		log.Warn().Err(err).Msg("iolimit config rejected")
		return err
	}
	return l.installLocked(merged)
}

// PriorityStats is the resolution tally of one (direction, priority) slot.
type PriorityStats struct {
	GrantedBytes      int64
	GrantedRequests   int64
	TimedOutRequests  int64
	CancelledRequests int64
	QueueDepth        int
	BucketBalance     int64
}

// DirectionStats aggregates one direction.
type DirectionStats struct {
	EffectiveCeilingBytesPerSec int64
	Priorities                  [numPriorities]PriorityStats
}

// Statistics is a point-in-time snapshot of limiter state, indexed by
// Direction and Priority.
type Statistics struct {
	Mode       Mode
	Directions [numDirections]DirectionStats
}

// Statistics captures the current counters, queue depths, and effective
// ceilings.
func (l *RateLimiter) Statistics() Statistics {
	cfg := l.cfg.Load()
	st := Statistics{Mode: cfg.Mode}
	for dir := 0; dir < numDirections; dir++ {
		st.Directions[dir].EffectiveCeilingBytesPerSec = cfg.ceiling(Direction(dir))
		for pri := 0; pri < numPriorities; pri++ {
			s := &l.shards[dir][pri]
			s.mu.Lock()
			st.Directions[dir].Priorities[pri] = PriorityStats{
				GrantedBytes:      s.grantedBytes,
				GrantedRequests:   s.grantedRequests,
				TimedOutRequests:  s.timedOutRequests,
				CancelledRequests: s.cancelledRequests,
				QueueDepth:        s.queue.len(),
				BucketBalance:     s.bucket.balance,
			}
			s.mu.Unlock()
		}
	}
	return st
}

// dispatchRunner drives the dispatch cycle on the worker goroutine; tasks
// scheduled by wakeDispatch and the periodic timer both funnel into tick.
type dispatchRunner struct {
	l *RateLimiter
}

func (r *dispatchRunner) Run(struct{}) {
	r.l.tick(r.l.clock.Now())
}

func (r *dispatchRunner) OnTimeout() {
	r.l.tick(r.l.clock.Now())
}

func (r *dispatchRunner) TimerInterval() time.Duration {
	return r.l.cfg.Load().RefillPeriod
}
