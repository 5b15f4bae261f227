package iolimit

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrAdmissionTimedOut is returned by the flow wrappers when a read or
	// write could not be admitted before its deadline.
	ErrAdmissionTimedOut = errors.New("iolimit: admission timed out")
	// ErrAdmissionCancelled is returned when admission was withdrawn for a
	// reason other than the wrapper's own context, such as limiter
	// shutdown.
	ErrAdmissionCancelled = errors.New("iolimit: admission cancelled")
)

// Reader wraps an io.Reader so every Read is admitted by the limiter
// before touching the underlying stream. Admission is billed up front for
// the full buffer size; short reads slightly over-reserve, which keeps the
// wrapper on the safe side of the ceiling.
type Reader struct {
	ctx context.Context
	r   io.Reader
	l   *RateLimiter
	pri Priority
}

// NewReader returns a throttled reader. The context governs admission waits
// for every subsequent Read.
func NewReader(ctx context.Context, r io.Reader, l *RateLimiter, pri Priority) *Reader {
	return &Reader{ctx: ctx, r: r, l: l, pri: pri}
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return r.r.Read(p)
	}
	outcome, err := r.l.Acquire(r.ctx, DirectionRead, r.pri, int64(len(p)))
	if err != nil {
		return 0, err
	}
	switch outcome {
	case OutcomeGranted:
		return r.r.Read(p)
	case OutcomeTimedOut:
		return 0, ErrAdmissionTimedOut
	default:
		if cause := context.Cause(r.ctx); cause != nil {
			return 0, cause
		}
		return 0, ErrAdmissionCancelled
	}
}

// Writer wraps an io.Writer with write-side admission. Billing is up front
// for the full buffer, mirroring Reader.
type Writer struct {
	ctx context.Context
	w   io.Writer
	l   *RateLimiter
	pri Priority
}

// NewWriter returns a throttled writer.
func NewWriter(ctx context.Context, w io.Writer, l *RateLimiter, pri Priority) *Writer {
	return &Writer{ctx: ctx, w: w, l: l, pri: pri}
}

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return w.w.Write(p)
	}
	outcome, err := w.l.Acquire(w.ctx, DirectionWrite, w.pri, int64(len(p)))
	if err != nil {
		return 0, err
	}
	switch outcome {
	case OutcomeGranted:
		return w.w.Write(p)
	case OutcomeTimedOut:
		return 0, ErrAdmissionTimedOut
	default:
		if cause := context.Cause(w.ctx); cause != nil {
			return 0, cause
		}
		return 0, ErrAdmissionCancelled
	}
}
