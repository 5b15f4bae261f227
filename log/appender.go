package log

import (
	"io"
	"os"
	"sync"
)

// LogAppender defines the interface for log output destinations.
//
// Implementations must be goroutine-safe as appenders are accessed
// concurrently by every logging call site in the process.
type LogAppender interface {
	// Write outputs one formatted log entry to the destination.
	Write(buf []byte) (n int, err error)

	// Refresh forces any buffered log data to be written immediately.
	Refresh() error

	// Close flushes buffered logs and releases underlying resources.
	Close() error
}

// ConsoleAppender writes log entries directly to standard output without
// buffering, suitable for containerized deployments and development.
type ConsoleAppender struct{}

// NewConsoleAppender creates a stateless console appender.
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{}
}

func (ca *ConsoleAppender) Write(buf []byte) (int, error) {
	return os.Stdout.Write(buf)
}

// Refresh is a no-op; console writes are unbuffered.
func (ca *ConsoleAppender) Refresh() error {
	return nil
}

// Close is a no-op for ConsoleAppender.
func (ca *ConsoleAppender) Close() error {
	return nil
}

// WriterAppender routes log entries to an arbitrary io.Writer behind a
// mutex. It backs tests and hosts that supply their own sink.
type WriterAppender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterAppender creates an appender writing to w.
func NewWriterAppender(w io.Writer) *WriterAppender {
	return &WriterAppender{w: w}
}

func (wa *WriterAppender) Write(buf []byte) (int, error) {
	wa.mu.Lock()
	defer wa.mu.Unlock()
	return wa.w.Write(buf)
}

// Refresh is a no-op; entries are handed to the writer as they complete.
func (wa *WriterAppender) Refresh() error {
	return nil
}

// Close is a no-op; the caller owns the underlying writer.
func (wa *WriterAppender) Close() error {
	return nil
}
