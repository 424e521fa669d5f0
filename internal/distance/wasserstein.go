package distance

import (
	"fmt"
	"math"

	"github.com/banshee-data/topofingerprint/internal/persistence"
)

// Wasserstein returns the p-Wasserstein distance between two diagrams of one
// homological dimension: the minimum over partial matchings of Σ cost^p, with
// the p-th root taken for p > 1. Unmatched points pay their distance to the
// diagonal. Essential classes take part as points with death
// persistence.EssentialDeath.
//
// The problem is solved exactly as an (n+m)×(n+m) assignment: rows are the
// points of a followed by one diagonal slot per point of b, columns are the
// points of b followed by one diagonal slot per point of a. Diagonal slots
// pair with each other at no cost.
func Wasserstein(a, b persistence.Diagram, opts Options) (float64, error) {
	x, y, done, err := prepare(a, b, opts)
	if err != nil || done {
		return 0, err
	}
	p := opts.order()
	n, m := len(x), len(y)

	if n == 0 || m == 0 {
		sum := 0.0
		for _, pt := range append(x, y...) {
			sum += math.Pow(opts.diagonalCost(pt.Birth, pt.Death), p)
		}
		return root(sum, p), nil
	}

	cost := func(i, j int) float64 {
		switch {
		case i < n && j < m:
			return math.Pow(opts.pointCost(x[i].Birth, x[i].Death, y[j].Birth, y[j].Death), p)
		case i < n:
			return math.Pow(opts.diagonalCost(x[i].Birth, x[i].Death), p)
		case j < m:
			return math.Pow(opts.diagonalCost(y[j].Birth, y[j].Death), p)
		default:
			return 0
		}
	}

	rows := assign(n+m, cost)
	sum := 0.0
	for i, j := range rows {
		sum += cost(i, j)
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, fmt.Errorf("%w: non-finite matching cost", ErrMatchingFailed)
	}
	return root(sum, p), nil
}

func root(sum, p float64) float64 {
	if p == 1 {
		return sum
	}
	return math.Pow(sum, 1/p)
}

// prepare validates both diagrams and puts them in canonical order so that
// d(a, b) and d(b, a) run the identical computation. done is true when the
// answer is 0 without solving anything.
func prepare(a, b persistence.Diagram, opts Options) (x, y persistence.Diagram, done bool, err error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, false, err
	}
	if err := a.Validate(); err != nil {
		return nil, nil, false, err
	}
	if err := b.Validate(); err != nil {
		return nil, nil, false, err
	}
	if _, err := commonDimension(a, b); err != nil {
		return nil, nil, false, err
	}

	x, y = a.Sorted(), b.Sorted()
	switch persistence.Compare(x, y) {
	case 0:
		return nil, nil, true, nil
	case 1:
		x, y = y, x
	}
	return x, y, false, nil
}

// commonDimension returns the dimension shared by every pair of a and b, or
// -1 when both are empty.
func commonDimension(a, b persistence.Diagram) (int, error) {
	dim := -1
	for _, d := range []persistence.Diagram{a, b} {
		for _, p := range d {
			if dim < 0 {
				dim = p.Dim
			} else if p.Dim != dim {
				return 0, fmt.Errorf("%w: found %d and %d", ErrMixedDimensions, dim, p.Dim)
			}
		}
	}
	return dim, nil
}

// Between dispatches to Wasserstein or Bottleneck.
func Between(metric Metric, a, b persistence.Diagram, opts Options) (float64, error) {
	switch metric {
	case MetricWasserstein:
		return Wasserstein(a, b, opts)
	case MetricBottleneck:
		return Bottleneck(a, b, opts)
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
}
