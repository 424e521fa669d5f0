// Package testutil provides shared test fixtures: synthetic point clouds and
// matrix assertions used across the pipeline's tests.
package testutil

import (
	"math"
	"testing"

	"github.com/banshee-data/topofingerprint/internal/cells"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Circle returns n points evenly spaced on a circle, all carrying label.
func Circle(id string, n int, radius, cx, cy float64, label string) cells.Cloud {
	c := cells.Cloud{SampleID: id, Points: make([]cells.Point, n)}
	for i := range c.Points {
		a := 2 * math.Pi * float64(i) / float64(n)
		c.Points[i] = cells.Point{X: cx + radius*math.Cos(a), Y: cy + radius*math.Sin(a), Label: label}
	}
	return c
}

// Grid returns a rows x cols lattice with the given spacing, all carrying
// label.
func Grid(id string, rows, cols int, spacing float64, label string) cells.Cloud {
	c := cells.Cloud{SampleID: id}
	for r := 0; r < rows; r++ {
		for k := 0; k < cols; k++ {
			c.Points = append(c.Points, cells.Point{X: float64(k) * spacing, Y: float64(r) * spacing, Label: label})
		}
	}
	return c
}

// Merge concatenates the points of clouds under a new sample ID.
func Merge(id string, clouds ...cells.Cloud) cells.Cloud {
	out := cells.Cloud{SampleID: id}
	for _, c := range clouds {
		out.Points = append(out.Points, c.Points...)
	}
	return out
}

// AssertSymmetricZeroDiagonal checks a square row-major matrix for exact
// symmetry, a zero diagonal and non-negative entries.
func AssertSymmetricZeroDiagonal(t testing.TB, rows [][]float64) {
	t.Helper()
	for i := range rows {
		if len(rows[i]) != len(rows) {
			t.Fatalf("row %d has %d columns, want %d", i, len(rows[i]), len(rows))
		}
		if rows[i][i] != 0 {
			t.Errorf("diagonal [%d][%d] = %v, want 0", i, i, rows[i][i])
		}
		for j := range rows[i] {
			if rows[i][j] != rows[j][i] {
				t.Errorf("[%d][%d] = %v but [%d][%d] = %v", i, j, rows[i][j], j, i, rows[j][i])
			}
			if rows[i][j] < 0 {
				t.Errorf("[%d][%d] = %v is negative", i, j, rows[i][j])
			}
		}
	}
}
