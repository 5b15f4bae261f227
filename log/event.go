package log

import (
	"bytes"
	"time"
)

// LogEvent represents a single structured logging event. It provides a
// fluent API for adding key-value pairs and handles the complete lifecycle
// of a log message from creation to output.
//
// A nil *LogEvent is valid: every method returns immediately, so events
// below the configured level cost almost nothing.
type LogEvent struct {
	buf    *bytes.Buffer // Buffer accumulating the formatted log data
	logger Logger        // Parent logger for routing and pooling
	level  Level         // Severity level of the event
}

// newEvent creates a new LogEvent instance with a pre-allocated buffer.
// It is used by the logger's object pool to obtain reusable event objects.
func newEvent(l Logger) *LogEvent {
	e := &LogEvent{
		logger: l,
		level:  DebugLevel,
		buf:    &bytes.Buffer{},
	}
	e.buf.Grow(512)
	return e
}

// Reset prepares the LogEvent for reuse by clearing previous state. Buffers
// that grew past 4KB are dropped so an occasional huge entry does not pin
// memory in the pool.
func (e *LogEvent) Reset() {
	if e.buf.Cap() > 4096 {
		e.buf = &bytes.Buffer{}
		e.buf.Grow(512)
	} else {
		e.buf.Reset()
	}
	e.level = DebugLevel
	AppendBeginMarker(e.buf)
}

// Str appends a string field to the event.
func (e *LogEvent) Str(k, v string) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendString(e.buf, v)
	return e
}

// Int appends an int field to the event.
func (e *LogEvent) Int(k string, v int) *LogEvent {
	return e.Int64(k, int64(v))
}

// Int64 appends an int64 field to the event.
func (e *LogEvent) Int64(k string, v int64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInt64(e.buf, v)
	return e
}

// Uint64 appends a uint64 field to the event.
func (e *LogEvent) Uint64(k string, v uint64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendUint64(e.buf, v)
	return e
}

// Float64 appends a float64 field to the event.
func (e *LogEvent) Float64(k string, v float64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendFloat64(e.buf, v)
	return e
}

// Bool appends a boolean field to the event.
func (e *LogEvent) Bool(k string, v bool) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendBool(e.buf, v)
	return e
}

// Dur appends a duration field rendered in Go's duration syntax.
func (e *LogEvent) Dur(k string, v time.Duration) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendString(e.buf, v.String())
	return e
}

// Time appends a timestamp field formatted as 'YYYY-MM-DD HH:MM:SS.mmm'.
func (e *LogEvent) Time(k string, v time.Time) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendString(e.buf, v.Format("2006-01-02 15:04:05.000"))
	return e
}

// Err appends an error field under the key "error". A nil error is rendered
// as JSON null so the field is still present for downstream parsers.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, "error")
	if err == nil {
		AppendNil(e.buf)
	} else {
		AppendString(e.buf, err.Error())
	}
	return e
}

// Msg finalizes the event with a human-readable message and emits it to the
// parent logger's appenders. After Msg returns the event must not be reused
// by the caller; the logger reclaims it.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	if msg != "" {
		AppendKey(e.buf, "msg")
		AppendString(e.buf, msg)
	}
	AppendEndMarker(e.buf)
	AppendLineBreak(e.buf)
	e.logger.OnEventEnd(e)
}
