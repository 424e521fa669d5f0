package batch

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/topofingerprint/internal/fault"
)

// Outcome is the result class of a diagram-round task.
type Outcome string

const (
	OutcomeComputed Outcome = "computed"
	// OutcomeSkipped covers malformed and insufficient input. It is a valid
	// "no feature" result, not an error.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed covers computation failures and timeouts. The sample is
	// left out of every later distance round.
	OutcomeFailed Outcome = "failed"
)

// TaskResult records one diagram-round task.
type TaskResult struct {
	Key      Key
	Outcome  Outcome
	Kind     fault.Kind
	Detail   string
	Points   int
	Pairs    [3]int
	Duration time.Duration
}

// MatrixFailure records a distance matrix that could not be assembled.
type MatrixFailure struct {
	Key MatrixKey
	Err error
}

// Report aggregates task outcomes of a run. Results are kept in key order
// regardless of completion order.
type Report struct {
	Results  []TaskResult
	Matrices []MatrixFailure
}

func (r *Report) add(res TaskResult) {
	r.Results = append(r.Results, res)
}

func (r *Report) sort() {
	sort.Slice(r.Results, func(i, j int) bool { return keyLess(r.Results[i].Key, r.Results[j].Key) })
}

// Count returns the number of tasks with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// With returns the results with outcome o.
func (r *Report) With(o Outcome) []TaskResult {
	var out []TaskResult
	for _, res := range r.Results {
		if res.Outcome == o {
			out = append(out, res)
		}
	}
	return out
}

// Lookup returns the result recorded for k.
func (r *Report) Lookup(k Key) (TaskResult, bool) {
	for _, res := range r.Results {
		if res.Key == k {
			return res, true
		}
	}
	return TaskResult{}, false
}

// Summary is a one-line count of outcomes.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d computed, %d skipped, %d failed",
		r.Count(OutcomeComputed), r.Count(OutcomeSkipped), r.Count(OutcomeFailed))
	if len(r.Matrices) > 0 {
		s += fmt.Sprintf(", %d matrices aborted", len(r.Matrices))
	}
	return s
}

// PairError aborts a distance matrix. It names the sample pair whose
// distance could not be computed.
type PairError struct {
	Matrix MatrixKey
	A, B   string
	Err    error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("%s: distance(%s, %s): %v", e.Matrix, e.A, e.B, e.Err)
}

func (e *PairError) Unwrap() error { return e.Err }

// ErrTaskTimeout is returned for a task that exceeded Config.TaskTimeout.
var ErrTaskTimeout = fmt.Errorf("%w: task timed out", fault.ErrComputation)

// ErrInvalidConfig wraps orchestrator configuration errors.
var ErrInvalidConfig = errors.New("invalid batch config")
