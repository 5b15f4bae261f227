package iolimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketRefillIsIdempotent(t *testing.T) {
	start := time.Now()
	b := newTokenBucket(start, 1000)
	assert.Equal(t, int64(500), b.balance)

	now := start.Add(100 * time.Millisecond)
	b.refill(now, 1000, 1000)
	assert.Equal(t, int64(600), b.balance)

	// Same timestamp again must add nothing.
	b.refill(now, 1000, 1000)
	assert.Equal(t, int64(600), b.balance)

	// Going backwards must add nothing either.
	b.refill(now.Add(-50*time.Millisecond), 1000, 1000)
	assert.Equal(t, int64(600), b.balance)
}

func TestTokenBucketClampReturnsOverflow(t *testing.T) {
	start := time.Now()
	b := newTokenBucket(start, 1000)

	overflow := b.refill(start.Add(2*time.Second), 1000, 1000)
	assert.Equal(t, int64(1000), b.balance)
	assert.Equal(t, int64(1500), overflow)

	// A full bucket yields pure overflow on the next refill.
	overflow = b.refill(start.Add(3*time.Second), 1000, 1000)
	assert.Equal(t, int64(1000), b.balance)
	assert.Equal(t, int64(1000), overflow)
}

func TestTokenBucketTryConsume(t *testing.T) {
	b := newTokenBucket(time.Now(), 200)
	assert.True(t, b.tryConsume(100))
	assert.Equal(t, int64(0), b.balance)
	assert.False(t, b.tryConsume(1))
	assert.Equal(t, int64(0), b.balance)
}

func TestTokenBucketDebtRepaysBeforeBalanceGrows(t *testing.T) {
	start := time.Now()
	b := newTokenBucket(start, 1000)
	b.forceConsume(800) // balance -300

	assert.Equal(t, int64(-300), b.balance)
	b.refill(start.Add(100*time.Millisecond), 1000, 1000)
	assert.Equal(t, int64(-200), b.balance)
	b.refill(start.Add(400*time.Millisecond), 1000, 1000)
	assert.Equal(t, int64(100), b.balance)
}
