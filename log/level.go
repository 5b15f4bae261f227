package log

import "strings"

// Level defines logging levels for structured logging across the storage
// engine's utility layer. Levels are ordered by severity; higher values
// indicate more critical issues. The type supports dynamic level adjustment
// at runtime through configuration reloads.
type Level int8

const (
	// TraceLevel provides extremely detailed diagnostic information, suitable
	// for tracing admission decisions and per-request flows.
	TraceLevel Level = iota + 1

	// DebugLevel contains debugging information useful during development and
	// troubleshooting.
	DebugLevel

	// InfoLevel contains general informational messages about normal
	// operation: lifecycle events, configuration changes, ceiling updates.
	InfoLevel

	// WarnLevel indicates potentially harmful situations that don't prevent
	// operation, such as rejected configuration updates.
	WarnLevel

	// ErrorLevel indicates serious problems that require attention.
	ErrorLevel

	// FatalLevel represents critical errors that force immediate termination.
	FatalLevel
)

// String returns the human-readable string representation of the log level.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string representation to a Level with
// case-insensitive parsing. Returns InfoLevel for unrecognized inputs,
// ensuring safe defaults in configuration scenarios.
func ParseLevel(levelStr string) Level {
	switch strings.ToUpper(levelStr) {
	case "TRACE":
		return TraceLevel
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	}
	return InfoLevel
}
