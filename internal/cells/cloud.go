package cells

import (
	"fmt"
	"math"

	"github.com/banshee-data/topofingerprint/internal/fault"
)

// Point is a cell centroid in image coordinates with an optional phenotype
// label. An empty label never matches any group.
type Point struct {
	X     float64
	Y     float64
	Label string
}

// Cloud is the ordered point set of one sample.
type Cloud struct {
	SampleID string
	Points   []Point
}

// Len returns the number of points in the cloud.
func (c Cloud) Len() int { return len(c.Points) }

// Validate checks that every coordinate is a finite real.
func (c Cloud) Validate() error {
	for i, p := range c.Points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: sample %q point %d has non-finite coordinates (%v, %v)",
				fault.ErrComputation, c.SampleID, i, p.X, p.Y)
		}
	}
	return nil
}

// Sufficient reports whether the cloud can carry homology in dimension >= 1.
// Callers treat an insufficient cloud as a skipped sample.
func (c Cloud) Sufficient() bool {
	return len(c.Points) >= MinPoints
}

// MinPoints is the smallest cloud the pipeline computes a diagram for.
const MinPoints = 2

// Labels returns the distinct labels present in the cloud with their counts.
func (c Cloud) Labels() map[string]int {
	counts := make(map[string]int)
	for _, p := range c.Points {
		counts[p.Label]++
	}
	return counts
}
