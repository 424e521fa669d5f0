package distance

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/topofingerprint/internal/fault"
)

var (
	// ErrMixedDimensions is returned when the pairs passed to one call do not
	// all share a homological dimension.
	ErrMixedDimensions = fmt.Errorf("%w: diagrams mix homological dimensions", fault.ErrComputation)

	// ErrInvalidOrder is returned for a Wasserstein order below 1.
	ErrInvalidOrder = errors.New("wasserstein order must be finite and >= 1")

	// ErrUnknownNorm is returned by ParseNorm.
	ErrUnknownNorm = errors.New("unknown ground norm")

	// ErrUnknownMetric is returned by ParseMetric and Between.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrMatchingFailed means the solver produced no valid matching.
	ErrMatchingFailed = fmt.Errorf("%w: matching failed", fault.ErrComputation)
)

// Norm is the ground distance between two points of the birth-death plane.
type Norm int

const (
	// NormEuclidean measures points with the L2 norm. A point (b, d) lies
	// (d-b)/√2 from the diagonal.
	NormEuclidean Norm = iota
	// NormInfinity measures points with the L∞ norm. A point (b, d) lies
	// (d-b)/2 from the diagonal.
	NormInfinity
)

func (n Norm) String() string {
	switch n {
	case NormEuclidean:
		return "euclidean"
	case NormInfinity:
		return "infinity"
	default:
		return fmt.Sprintf("Norm(%d)", int(n))
	}
}

// ParseNorm accepts "euclidean"/"l2" and "infinity"/"linf".
func ParseNorm(s string) (Norm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "euclidean", "l2":
		return NormEuclidean, nil
	case "infinity", "linf", "inf":
		return NormInfinity, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNorm, s)
}

// Metric names a diagram distance.
type Metric string

const (
	MetricWasserstein Metric = "wasserstein"
	MetricBottleneck  Metric = "bottleneck"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricWasserstein, MetricBottleneck:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Options configures a distance computation. The zero value is the
// 1-Wasserstein distance with Euclidean ground norm.
type Options struct {
	// Order is the Wasserstein exponent p. 0 means 1.
	Order  float64
	Ground Norm
}

// Validate rejects orders below 1 and unknown norms.
func (o Options) Validate() error {
	p := o.order()
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidOrder, o.Order)
	}
	if o.Ground != NormEuclidean && o.Ground != NormInfinity {
		return fmt.Errorf("%w: %v", ErrUnknownNorm, o.Ground)
	}
	return nil
}

func (o Options) order() float64 {
	if o.Order == 0 {
		return 1
	}
	return o.Order
}

// pointCost is the ground distance between (b1, d1) and (b2, d2).
func (o Options) pointCost(b1, d1, b2, d2 float64) float64 {
	db, dd := math.Abs(b1-b2), math.Abs(d1-d2)
	if o.Ground == NormInfinity {
		return math.Max(db, dd)
	}
	return math.Hypot(db, dd)
}

// diagonalCost is the ground distance from (b, d) to its orthogonal
// projection on the diagonal.
func (o Options) diagonalCost(b, d float64) float64 {
	if o.Ground == NormInfinity {
		return (d - b) / 2
	}
	return (d - b) / math.Sqrt2
}
