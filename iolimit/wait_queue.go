package iolimit

import (
	"sync/atomic"
	"time"

	"github.com/linchenxuan/kvutil/utils/pool"
)

const (
	waiterPending int32 = iota
	waiterGranted
	waiterTimedOut
	waiterCancelled
)

// waiter is one parked admission request. Exactly one of the dispatcher
// (grant or deadline expiry) and the caller (context cancellation) resolves
// it; the loser of the CAS race leaves the waiter alone. The result channel
// is buffered so the winner never blocks.
//
// Waiters are pooled. A waiter may be returned to the pool only by the side
// that is guaranteed to be the last toucher: the caller after it has read
// the outcome, or the dispatcher when it removes an already-cancelled
// waiter from the queue.
type waiter struct {
	direction  Direction
	priority   Priority
	billed     int64 // bytes charged on grant, capped at bucket capacity
	enqueuedAt time.Time
	deadline   time.Time // zero means no deadline
	seq        uint64

	state  atomic.Int32
	result chan Outcome
}

var waiterPool = pool.NewPool("iolimit.waiter", func() *waiter {
	return &waiter{result: make(chan Outcome, 1)}
})

func newWaiter(dir Direction, pri Priority, billed int64, now, deadline time.Time, seq uint64) *waiter {
	w := waiterPool.Get()
	w.direction = dir
	w.priority = pri
	w.billed = billed
	w.enqueuedAt = now
	w.deadline = deadline
	w.seq = seq
	w.state.Store(waiterPending)
	return w
}

func putWaiter(w *waiter) {
	// Drain a stale outcome so a reused waiter never sees a phantom result.
	select {
	case <-w.result:
	default:
	}
	waiterPool.Put(w)
}

// resolve moves the waiter from pending to the terminal state for o and
// delivers the outcome. It reports false when another resolver won.
func (w *waiter) resolve(o Outcome) bool {
	var target int32
	switch o {
	case OutcomeGranted:
		target = waiterGranted
	case OutcomeTimedOut:
		target = waiterTimedOut
	default:
		target = waiterCancelled
	}
	if !w.state.CompareAndSwap(waiterPending, target) {
		return false
	}
	w.result <- o
	return true
}

// done reports whether the waiter has been resolved by either side.
func (w *waiter) done() bool {
	return w.state.Load() != waiterPending
}

// expired reports whether the waiter carries a deadline that has passed.
func (w *waiter) expired(now time.Time) bool {
	return !w.deadline.IsZero() && !now.Before(w.deadline)
}

// waitQueue is the FIFO of pending waiters for one (direction, priority)
// slot. Arrival order equals age order, so the oldest waiters (and with
// them any aged ones) always sit at the front. Callers synchronize
// externally.
type waitQueue struct {
	items []*waiter
}

func (q *waitQueue) push(w *waiter) {
	q.items = append(q.items, w)
}

func (q *waitQueue) len() int {
	return len(q.items)
}

func (q *waitQueue) head() *waiter {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *waitQueue) pop() *waiter {
	w := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return w
}

// compact lazily removes waiters their callers already resolved (cancelled
// or deadline-expired on the caller side). The dispatcher is the last
// toucher of such a waiter, so compact recycles them. Returns how many were
// removed.
func (q *waitQueue) compact() int {
	kept := q.items[:0]
	removed := 0
	for _, w := range q.items {
		if w.done() {
			putWaiter(w)
			removed++
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	if len(q.items) == 0 {
		q.items = nil
	}
	return removed
}

// expire resolves every pending waiter whose deadline has passed and
// removes it from the queue. The resolved waiters are returned for
// accounting; their callers reclaim them after reading the outcome.
func (q *waitQueue) expire(now time.Time) []*waiter {
	var out []*waiter
	kept := q.items[:0]
	for _, w := range q.items {
		if w.expired(now) && w.resolve(OutcomeTimedOut) {
			out = append(out, w)
			continue
		}
		kept = append(kept, w)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	if len(q.items) == 0 {
		q.items = nil
	}
	return out
}
