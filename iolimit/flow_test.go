package iolimit

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPassesThroughWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModeDisabled
	l, _ := newTestLimiter(t, cfg)

	r := NewReader(context.Background(), strings.NewReader("hello world"), l, PriorityHigh)
	buf := make([]byte, 5)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestReaderAdmitsUnderStaticCeiling(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())

	r := NewReader(context.Background(), strings.NewReader("payload"), l, PriorityMedium)
	buf := make([]byte, 7)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	st := l.Statistics().Directions[DirectionRead].Priorities[PriorityMedium]
	assert.Equal(t, int64(7), st.GrantedBytes)
}

func TestReaderTimesOutPastDeadline(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	r := NewReader(ctx, strings.NewReader("payload"), l, PriorityLow)
	_, err := r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrAdmissionTimedOut)
}

func TestReaderEmptyBufferSkipsAdmission(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())

	r := NewReader(context.Background(), strings.NewReader("x"), l, PriorityLow)
	n, err := r.Read(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	st := l.Statistics().Directions[DirectionRead].Priorities[PriorityLow]
	assert.Equal(t, int64(0), st.GrantedRequests)
}

func TestWriterAdmitsAndWrites(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())

	var sink bytes.Buffer
	w := NewWriter(context.Background(), &sink, l, PriorityHigh)
	n, err := w.Write([]byte("record"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "record", sink.String())

	st := l.Statistics().Directions[DirectionWrite].Priorities[PriorityHigh]
	assert.Equal(t, int64(6), st.GrantedBytes)
}

func TestWriterCancelledContext(t *testing.T) {
	l, _ := newTestLimiter(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sink bytes.Buffer
	w := NewWriter(ctx, &sink, l, PriorityLow)
	_, err := w.Write([]byte("record"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sink.Len(), "cancelled write must not reach the stream")
}
