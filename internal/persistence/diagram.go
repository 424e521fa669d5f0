package persistence

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/topofingerprint/internal/fault"
)

// EssentialDeath is the finite sentinel death of an essential class, a
// feature still alive at the end of the filtration. It is used unchanged in
// memory, in diagram files, and by the distance engine, where an essential
// class without a counterpart costs roughly EssentialDeath/√2. Maximum edge
// lengths must stay well below it.
const EssentialDeath = 1e6

// MaxDimension is the highest homological dimension a diagram may carry.
const MaxDimension = 2

// ErrInvalidPair is returned by Validate for pairs breaking birth <= death,
// carrying non-finite values or an unsupported dimension.
var ErrInvalidPair = fmt.Errorf("%w: invalid persistence pair", fault.ErrComputation)

// Pair is one point of a persistence diagram.
type Pair struct {
	Dim   int
	Birth float64
	Death float64
}

// Essential reports whether the pair is an essential (never-dying) class.
func (p Pair) Essential() bool { return p.Death >= EssentialDeath }

// Persistence returns death - birth.
func (p Pair) Persistence() float64 { return p.Death - p.Birth }

// Diagram is a multiset of persistence pairs. Order carries no meaning.
type Diagram []Pair

// Dimension returns the pairs of homological dimension dim.
func (d Diagram) Dimension(dim int) Diagram {
	var out Diagram
	for _, p := range d {
		if p.Dim == dim {
			out = append(out, p)
		}
	}
	return out
}

// Finite returns the pairs with a finite death.
func (d Diagram) Finite() Diagram {
	var out Diagram
	for _, p := range d {
		if !p.Essential() {
			out = append(out, p)
		}
	}
	return out
}

// Essential returns the essential classes.
func (d Diagram) Essential() Diagram {
	var out Diagram
	for _, p := range d {
		if p.Essential() {
			out = append(out, p)
		}
	}
	return out
}

// Counts returns the number of pairs per dimension.
func (d Diagram) Counts() [MaxDimension + 1]int {
	var out [MaxDimension + 1]int
	for _, p := range d {
		if p.Dim >= 0 && p.Dim <= MaxDimension {
			out[p.Dim]++
		}
	}
	return out
}

// Validate checks every pair: dimension in [0, MaxDimension], finite
// non-negative birth, birth <= death <= EssentialDeath.
func (d Diagram) Validate() error {
	for i, p := range d {
		switch {
		case p.Dim < 0 || p.Dim > MaxDimension:
			return fmt.Errorf("%w: pair %d has dimension %d", ErrInvalidPair, i, p.Dim)
		case math.IsNaN(p.Birth) || math.IsInf(p.Birth, 0) || p.Birth < 0:
			return fmt.Errorf("%w: pair %d has birth %v", ErrInvalidPair, i, p.Birth)
		case math.IsNaN(p.Death) || p.Death > EssentialDeath:
			return fmt.Errorf("%w: pair %d has death %v", ErrInvalidPair, i, p.Death)
		case p.Birth > p.Death:
			return fmt.Errorf("%w: pair %d has birth %v > death %v", ErrInvalidPair, i, p.Birth, p.Death)
		}
	}
	return nil
}

// Sorted returns a copy in canonical order: dimension, birth, death.
func (d Diagram) Sorted() Diagram {
	out := append(Diagram(nil), d...)
	sort.Slice(out, func(a, b int) bool { return pairLess(out[a], out[b]) })
	return out
}

func pairLess(x, y Pair) bool {
	if x.Dim != y.Dim {
		return x.Dim < y.Dim
	}
	if x.Birth != y.Birth {
		return x.Birth < y.Birth
	}
	return x.Death < y.Death
}

// Compare orders two diagrams canonically: by length, then pairwise in
// canonical pair order. Both arguments must already be Sorted.
func Compare(a, b Diagram) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		switch {
		case pairLess(a[i], b[i]):
			return -1
		case pairLess(b[i], a[i]):
			return 1
		}
	}
	return 0
}

// Equal reports whether two diagrams hold the same multiset of pairs.
func (d Diagram) Equal(o Diagram) bool {
	return Compare(d.Sorted(), o.Sorted()) == 0
}
