package persistence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/rips"
)

func diagramOf(t *testing.T, r float64, xy ...float64) Diagram {
	t.Helper()
	points := make([]cells.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		points = append(points, cells.Point{X: xy[i], Y: xy[i+1]})
	}
	cx, err := rips.Build(points, rips.Options{MaxEdgeLength: r, MaxDim: 2})
	require.NoError(t, err)
	diag, err := Compute(cx)
	require.NoError(t, err)
	return diag
}

func TestCompute_CollinearPoints(t *testing.T) {
	diag := diagramOf(t, 1.5, 0, 0, 1, 0, 2, 0)

	dim0 := diag.Dimension(0)
	require.Len(t, dim0, 3)
	assert.Len(t, dim0.Finite(), 2)
	for _, p := range dim0.Finite() {
		assert.Equal(t, 0.0, p.Birth)
		assert.Equal(t, 1.0, p.Death)
	}
	ess := dim0.Essential()
	require.Len(t, ess, 1)
	assert.Equal(t, Pair{Dim: 0, Birth: 0, Death: EssentialDeath}, ess[0])

	assert.Empty(t, diag.Dimension(1), "a path has no loops")
	assert.Empty(t, diag.Dimension(2))
}

func TestCompute_SquareLoop(t *testing.T) {
	// Unit square: the loop is born when the fourth side appears at 1 and is
	// filled by the diagonal triangles at √2.
	diag := diagramOf(t, 1.5, 0, 0, 1, 0, 1, 1, 0, 1)

	dim1 := diag.Dimension(1)
	require.Len(t, dim1, 1)
	assert.Equal(t, 1.0, dim1[0].Birth)
	assert.InDelta(t, math.Sqrt2, dim1[0].Death, 1e-12)

	// The 2-skeleton of K4 encloses a void that no tetrahedron fills.
	dim2 := diag.Dimension(2)
	require.Len(t, dim2, 1)
	assert.True(t, dim2[0].Essential())

	assert.Len(t, diag.Dimension(0).Essential(), 1)
}

func TestCompute_SquareLoopWithoutDiagonals(t *testing.T) {
	// Radius below the diagonal: the loop never dies.
	diag := diagramOf(t, 1.2, 0, 0, 1, 0, 1, 1, 0, 1)
	dim1 := diag.Dimension(1)
	require.Len(t, dim1, 1)
	assert.Equal(t, 1.0, dim1[0].Birth)
	assert.True(t, dim1[0].Essential())
}

func TestCompute_TwoComponents(t *testing.T) {
	diag := diagramOf(t, 1.5, 0, 0, 1, 0, 10, 0, 11, 0)
	assert.Len(t, diag.Dimension(0).Essential(), 2)
	assert.Len(t, diag.Dimension(0).Finite(), 2)
}

func TestCompute_EdgeCases(t *testing.T) {
	empty, err := Compute(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	cx, err := rips.Build(nil, rips.Options{MaxEdgeLength: 1, MaxDim: 2})
	require.NoError(t, err)
	none, err := Compute(cx)
	require.NoError(t, err)
	assert.Empty(t, none)

	single := diagramOf(t, 1, 3, 3)
	require.Len(t, single, 1)
	assert.True(t, single[0].Essential())
}

func TestCompute_DuplicatePointsDropZeroPersistence(t *testing.T) {
	diag := diagramOf(t, 1, 0, 0, 0, 0)
	require.Len(t, diag, 1)
	assert.True(t, diag[0].Essential())
}

func TestCompute_BirthNotAfterDeath(t *testing.T) {
	var xy []float64
	for i := 0; i < 80; i++ {
		a := float64(i) * 0.3
		xy = append(xy, 10*math.Cos(a)+math.Mod(float64(i)*1.7, 1.3), 10*math.Sin(a)+math.Mod(float64(i)*0.9, 1.1))
	}
	diag := diagramOf(t, 4, xy...)
	require.NoError(t, diag.Validate())
	for _, p := range diag {
		assert.LessOrEqual(t, p.Birth, p.Death)
	}
	assert.NotEmpty(t, diag.Dimension(0).Essential())
}

func TestCompute_ComponentsMatchUnionFind(t *testing.T) {
	// Dimension-0 deaths are the minimum spanning forest edge lengths.
	xy := []float64{0, 0, 0.5, 0, 0.5, 0.7, 3, 3, 3.2, 3.1, 6, 0, 6.9, 0}
	diag := diagramOf(t, 1, xy...)

	deaths := []float64{}
	for _, p := range diag.Dimension(0).Finite() {
		deaths = append(deaths, p.Death)
	}
	assert.InDeltaSlice(t, []float64{math.Hypot(0.2, 0.1), 0.5, 0.7, 0.9}, deaths, 1e-12)
	assert.Len(t, diag.Dimension(0).Essential(), 3)
}
