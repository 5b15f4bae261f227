// Package iolimit implements priority-aware admission control for byte-level
// disk throughput. Competing internal workloads (foreground writes,
// background compaction and flush, replication ingest) request admission for
// every I/O operation; the limiter keeps latency-sensitive traffic ahead of
// bulk background work while holding total throughput under a configurable,
// optionally self-tuned ceiling.
//
// The limiter maintains one token bucket and one wait queue per
// (direction, priority) pair. Callers that cannot be admitted immediately
// park on a per-request outcome slot; a timer-driven dispatch cycle refills
// buckets and wakes waiters. Configuration lives in an immutable snapshot
// behind an atomic pointer, so reloads and auto-tune adjustments never race
// an in-flight dispatch pass.
package iolimit

import "strings"

// Direction identifies which side of the disk an admission request covers.
type Direction int

const (
	// DirectionRead throttles bytes read from disk.
	DirectionRead Direction = iota
	// DirectionWrite throttles bytes written to disk.
	DirectionWrite

	numDirections = 2
)

// String returns the lowercase name of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "read"
	case DirectionWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Priority is the ordered precedence of an admission request. Higher
// priorities are served first when capacity is contested; the aging guard
// bounds how long lower priorities can be deferred.
type Priority int

const (
	// PriorityLow is for bulk background work such as compaction.
	PriorityLow Priority = iota
	// PriorityMedium is for replication ingest and flush.
	PriorityMedium
	// PriorityHigh is for foreground client traffic.
	PriorityHigh

	numPriorities = 3
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParsePriority converts a string to a Priority with case-insensitive
// parsing. The second return reports whether the input named a known
// priority; callers applying operator input must reject unknown names
// rather than guess.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh, true
	case "medium":
		return PriorityMedium, true
	case "low":
		return PriorityLow, true
	}
	return PriorityLow, false
}

// Mode controls whether and how the limiter enforces its ceiling.
type Mode int

const (
	// ModeDisabled admits everything immediately with no accounting.
	ModeDisabled Mode = iota
	// ModeStatic enforces the operator-configured ceiling.
	ModeStatic
	// ModeAutoTuned enforces a ceiling periodically adjusted from observed
	// throughput.
	ModeAutoTuned
)

// String returns the lowercase name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeStatic:
		return "static"
	case ModeAutoTuned:
		return "autotuned"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to a Mode with case-insensitive parsing.
// The second return reports whether the input named a known mode; a typoed
// mode in an update must be rejected, never coerced to ModeDisabled.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "disabled":
		return ModeDisabled, true
	case "static":
		return ModeStatic, true
	case "autotuned", "auto-tuned", "auto":
		return ModeAutoTuned, true
	}
	return ModeDisabled, false
}

// Outcome is the terminal state of one admission request. Every request
// resolves to exactly one outcome.
type Outcome int

const (
	// OutcomeGranted means the request was admitted and billed.
	OutcomeGranted Outcome = iota
	// OutcomeTimedOut means the deadline elapsed before admission; nothing
	// was billed.
	OutcomeTimedOut
	// OutcomeCancelled means the caller withdrew the request; nothing was
	// billed.
	OutcomeCancelled
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeTimedOut:
		return "timedout"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
