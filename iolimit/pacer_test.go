package iolimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestPacerRejectsNonPositiveRate(t *testing.T) {
	_, err := NewIngestPacer(0)
	assert.ErrorIs(t, err, ErrConfigRejected)

	p, err := NewIngestPacer(100)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Retarget(-5), ErrConfigRejected)
}

func TestIngestPacerSpacesOperations(t *testing.T) {
	p, err := NewIngestPacer(1000)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 5; i++ {
		p.Admit()
	}
	// Five admissions at 1000 ops/s cannot complete much faster than the
	// leaky bucket allows.
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
}

func TestIngestPacerRetarget(t *testing.T) {
	p, err := NewIngestPacer(10)
	require.NoError(t, err)
	require.NoError(t, p.Retarget(1_000_000))

	start := time.Now()
	for i := 0; i < 100; i++ {
		p.Admit()
	}
	assert.Less(t, time.Since(start), time.Second, "retargeted pace applies to subsequent admissions")
}
