package log

import (
	"bytes"
	"strconv"
)

// The formatting helpers below write JSON fragments directly into the event
// buffer. They avoid encoding/json and reflection on the hot path; every
// value type the logger supports has a dedicated append function.

// AppendBeginMarker inserts the object start character '{'.
func AppendBeginMarker(buf *bytes.Buffer) {
	buf.WriteByte('{')
}

// AppendEndMarker inserts the object end character '}'.
func AppendEndMarker(buf *bytes.Buffer) {
	buf.WriteByte('}')
}

// AppendLineBreak appends a newline, terminating one log entry.
func AppendLineBreak(buf *bytes.Buffer) {
	buf.WriteByte('\n')
}

// AppendKey appends a new key to the output JSON, inserting a comma
// separator when the buffer already holds at least one pair.
func AppendKey(buf *bytes.Buffer, key string) {
	if buf.Len() >= 1 && buf.Bytes()[buf.Len()-1] != '{' {
		buf.WriteByte(',')
	}
	AppendString(buf, key)
	buf.WriteByte(':')
}

// AppendString appends a quoted, escaped JSON string value.
func AppendString(buf *bytes.Buffer, s string) {
	buf.Write(strconv.AppendQuote(buf.AvailableBuffer(), s))
}

// AppendInt64 appends a signed integer value.
func AppendInt64(buf *bytes.Buffer, v int64) {
	buf.Write(strconv.AppendInt(buf.AvailableBuffer(), v, 10))
}

// AppendUint64 appends an unsigned integer value.
func AppendUint64(buf *bytes.Buffer, v uint64) {
	buf.Write(strconv.AppendUint(buf.AvailableBuffer(), v, 10))
}

// AppendFloat64 appends a floating point value using the shortest
// representation that round-trips.
func AppendFloat64(buf *bytes.Buffer, v float64) {
	buf.Write(strconv.AppendFloat(buf.AvailableBuffer(), v, 'g', -1, 64))
}

// AppendBool appends a JSON boolean value.
func AppendBool(buf *bytes.Buffer, v bool) {
	buf.Write(strconv.AppendBool(buf.AvailableBuffer(), v))
}

// AppendNil inserts a JSON 'null' value.
func AppendNil(buf *bytes.Buffer) {
	buf.WriteString("null")
}
