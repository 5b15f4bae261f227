package iolimit

import "time"

// tokenBucket tracks the byte credit of one (direction, priority) slot.
// Rate and capacity are not stored here; they are read from the current
// Config snapshot on every refill so a reload retargets queued work without
// touching the buckets. The balance may go negative after a debt grant and
// must climb back above zero before the slot admits again.
//
// All methods require external synchronization.
type tokenBucket struct {
	balance    int64
	lastRefill time.Time
}

// newTokenBucket seeds the bucket at half capacity so a fresh limiter
// neither admits a full burst instantly nor stalls every request behind the
// first refill.
func newTokenBucket(now time.Time, capacity int64) tokenBucket {
	return tokenBucket{balance: capacity / 2, lastRefill: now}
}

// refill credits the bucket for the wall time elapsed since the last refill
// and clamps the balance at capacity. The clamped surplus is returned so the
// dispatcher can offer it to other priorities as spare budget. Refill is
// idempotent for a given timestamp: a second call with the same now adds
// nothing.
func (b *tokenBucket) refill(now time.Time, rate, capacity int64) (overflow int64) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return 0
	}
	b.lastRefill = now
	b.balance += int64(elapsed.Seconds() * float64(rate))
	if b.balance > capacity {
		overflow = b.balance - capacity
		b.balance = capacity
	}
	return overflow
}

// tryConsume debits n bytes if the full amount is covered.
func (b *tokenBucket) tryConsume(n int64) bool {
	if b.balance < n {
		return false
	}
	b.balance -= n
	return true
}

// forceConsume debits n bytes unconditionally; the balance may go negative.
func (b *tokenBucket) forceConsume(n int64) {
	b.balance -= n
}
