// Package fault defines the failure taxonomy shared by the fingerprint
// pipeline. Package-specific errors wrap one of the sentinels below so the
// batch layer can decide between skipping a sample and failing a task with a
// single errors.Is check.
package fault

import "errors"

var (
	// ErrMalformedInput marks input files missing required columns or
	// carrying unparseable values. Policy: skip the sample.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInsufficientInput marks a cloud with fewer than two points after
	// group filtering. It is a valid "no feature" result, not a failure.
	ErrInsufficientInput = errors.New("insufficient input")

	// ErrComputation marks an internal inconsistency or an input the
	// algorithms cannot process (non-finite coordinates, oversized complex,
	// broken invariants). Policy: fatal for the task.
	ErrComputation = errors.New("computation failure")
)

// Kind classifies an error into the taxonomy.
type Kind string

const (
	KindNone         Kind = ""
	KindMalformed    Kind = "malformed_input"
	KindInsufficient Kind = "insufficient_input"
	KindComputation  Kind = "computation_failure"
	KindOther        Kind = "other"
)

// KindOf returns the taxonomy kind of err. Unclassified non-nil errors
// report KindOther and are treated as computation failures by callers.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMalformedInput):
		return KindMalformed
	case errors.Is(err, ErrInsufficientInput):
		return KindInsufficient
	case errors.Is(err, ErrComputation):
		return KindComputation
	default:
		return KindOther
	}
}

// Skippable reports whether err should produce a skipped outcome rather than
// a failed one.
func Skippable(err error) bool {
	k := KindOf(err)
	return k == KindMalformed || k == KindInsufficient
}
