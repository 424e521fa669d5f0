package persistence

import (
	"fmt"

	"github.com/banshee-data/topofingerprint/internal/fault"
	"github.com/banshee-data/topofingerprint/internal/rips"
)

// ErrInconsistentDiagram is returned when a computed diagram breaks a
// structural invariant, which indicates a bug rather than bad input.
var ErrInconsistentDiagram = fmt.Errorf("%w: inconsistent diagram", fault.ErrComputation)

// Compute reduces the boundary matrix of cx over GF(2) and returns its
// persistence diagram in canonical order.
//
// Columns are reduced from the top dimension down. Whenever column j ends
// with pivot i, simplex i is a birth already paired with j, so its own
// column would reduce to zero and is skipped (clearing). Pairs with zero
// persistence are dropped; unpaired simplices become essential classes
// with Death == EssentialDeath.
func Compute(cx *rips.Complex) (Diagram, error) {
	if cx == nil || len(cx.Simplices) == 0 {
		return Diagram{}, nil
	}
	bd, err := cx.Boundaries()
	if err != nil {
		return nil, err
	}

	n := len(cx.Simplices)
	reduced := make([][]int, n)
	lowToCol := make([]int, n)
	for i := range lowToCol {
		lowToCol[i] = -1
	}
	cleared := make([]bool, n)

	for dim := cx.MaxDim; dim >= 1; dim-- {
		for j := 0; j < n; j++ {
			if cx.Simplices[j].Dim != dim || cleared[j] {
				continue
			}
			col := reduceColumn(bd[j], reduced, lowToCol)
			if len(col) == 0 {
				continue
			}
			low := col[len(col)-1]
			lowToCol[low] = j
			reduced[j] = col
			cleared[low] = true
		}
	}

	diag := make(Diagram, 0, cx.NumVertices)
	paired := make([]bool, n)
	for j, col := range reduced {
		if len(col) == 0 {
			continue
		}
		i := col[len(col)-1]
		paired[i], paired[j] = true, true
		birth := cx.Simplices[i].Filtration
		death := cx.Simplices[j].Filtration
		if death == birth {
			continue
		}
		diag = append(diag, Pair{Dim: cx.Simplices[i].Dim, Birth: birth, Death: death})
	}
	for i, s := range cx.Simplices {
		if !paired[i] {
			diag = append(diag, Pair{Dim: s.Dim, Birth: s.Filtration, Death: EssentialDeath})
		}
	}

	diag = diag.Sorted()
	if err := checkInvariants(cx, diag); err != nil {
		return nil, err
	}
	return diag, nil
}

// reduceColumn adds earlier reduced columns to a copy of boundary until its
// pivot is unclaimed or the column vanishes.
func reduceColumn(boundary []int, reduced [][]int, lowToCol []int) []int {
	col := append([]int(nil), boundary...)
	for len(col) > 0 {
		k := lowToCol[col[len(col)-1]]
		if k < 0 {
			break
		}
		col = addMod2(col, reduced[k])
	}
	return col
}

// addMod2 returns the symmetric difference of two ascending index lists.
func addMod2(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func checkInvariants(cx *rips.Complex, diag Diagram) error {
	if err := diag.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInconsistentDiagram, err)
	}
	if cx.NumVertices > 0 {
		for _, p := range diag {
			if p.Dim == 0 && p.Essential() {
				return nil
			}
		}
		return fmt.Errorf("%w: no essential component in a non-empty complex", ErrInconsistentDiagram)
	}
	return nil
}
