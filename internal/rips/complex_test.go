package rips

import (
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/fault"
)

func pts(xy ...float64) []cells.Point {
	out := make([]cells.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, cells.Point{X: xy[i], Y: xy[i+1]})
	}
	return out
}

func TestBuild_CollinearPath(t *testing.T) {
	cx, err := Build(pts(0, 0, 1, 0, 2, 0), Options{MaxEdgeLength: 1.5, MaxDim: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, cx.Count(0))
	assert.Equal(t, 2, cx.Count(1), "the (0,2) edge is longer than the radius")
	assert.Equal(t, 0, cx.Count(2))
	for _, e := range cx.Edges() {
		assert.Equal(t, 1.0, e.Filtration)
	}
	require.NoError(t, cx.Validate())
}

func TestBuild_Triangle(t *testing.T) {
	// Right triangle with legs 3 and 4: hypotenuse 5 sets the triangle's value.
	cx, err := Build(pts(0, 0, 3, 0, 0, 4), Options{MaxEdgeLength: 5, MaxDim: 2})
	require.NoError(t, err)

	require.Equal(t, 1, cx.Count(2))
	last := cx.Simplices[len(cx.Simplices)-1]
	assert.Equal(t, 2, last.Dim)
	assert.Equal(t, 5.0, last.Filtration)
	assert.Equal(t, []int{0, 1, 2}, last.Verts())
	require.NoError(t, cx.Validate())
}

func TestBuild_RadiusInclusive(t *testing.T) {
	cx, err := Build(pts(0, 0, 1, 0), Options{MaxEdgeLength: 1, MaxDim: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, cx.Count(1))
}

func TestBuild_MaxDimLimitsSimplices(t *testing.T) {
	square := pts(0, 0, 1, 0, 1, 1, 0, 1)

	cx0, err := Build(square, Options{MaxEdgeLength: 2, MaxDim: 0})
	require.NoError(t, err)
	assert.Len(t, cx0.Simplices, 4)

	cx1, err := Build(square, Options{MaxEdgeLength: 2, MaxDim: 1})
	require.NoError(t, err)
	assert.Equal(t, 6, cx1.Count(1))
	assert.Equal(t, 0, cx1.Count(2))

	cx2, err := Build(square, Options{MaxEdgeLength: 2, MaxDim: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, cx2.Count(2), "K4 has four triangles")
	require.NoError(t, cx2.Validate())
}

func TestBuild_FewPoints(t *testing.T) {
	empty, err := Build(nil, Options{MaxEdgeLength: 1, MaxDim: 2})
	require.NoError(t, err)
	assert.Empty(t, empty.Simplices)

	single, err := Build(pts(5, 5), Options{MaxEdgeLength: 1, MaxDim: 2})
	require.NoError(t, err)
	assert.Len(t, single.Simplices, 1)
}

func TestBuild_NegativeCoordinatesUseNeighbourCells(t *testing.T) {
	// Points straddle the origin so they fall into different grid cells.
	cx, err := Build(pts(-0.1, -0.1, 0.1, 0.1, -0.1, 0.1), Options{MaxEdgeLength: 0.5, MaxDim: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, cx.Count(1))
	assert.Equal(t, 1, cx.Count(2))
}

func TestBuild_MatchesBruteForce(t *testing.T) {
	points := make([]cells.Point, 0, 60)
	for i := 0; i < 60; i++ {
		// Deterministic scatter over a 10x10 box.
		x := math.Mod(float64(i)*7.31, 10)
		y := math.Mod(float64(i)*3.17+float64(i*i)*0.013, 10)
		points = append(points, cells.Point{X: x, Y: y})
	}
	r := 2.2
	cx, err := Build(points, Options{MaxEdgeLength: r, MaxDim: 2})
	require.NoError(t, err)
	require.NoError(t, cx.Validate())

	d := func(a, b int) float64 {
		return math.Hypot(points[a].X-points[b].X, points[a].Y-points[b].Y)
	}
	wantEdges, wantTriangles := 0, 0
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d(i, j) > r {
				continue
			}
			wantEdges++
			for k := j + 1; k < len(points); k++ {
				if d(i, k) <= r && d(j, k) <= r {
					wantTriangles++
				}
			}
		}
	}
	assert.Equal(t, wantEdges, cx.Count(1))
	assert.Equal(t, wantTriangles, cx.Count(2))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		points []cells.Point
		opts   Options
		want   error
	}{
		{"zero radius", pts(0, 0, 1, 1), Options{MaxEdgeLength: 0, MaxDim: 2}, ErrInvalidRadius},
		{"nan radius", pts(0, 0), Options{MaxEdgeLength: math.NaN(), MaxDim: 2}, ErrInvalidRadius},
		{"dimension 3", pts(0, 0), Options{MaxEdgeLength: 1, MaxDim: 3}, ErrInvalidDimension},
		{"nan point", pts(0, 0, math.NaN(), 1), Options{MaxEdgeLength: 1, MaxDim: 2}, ErrNonFinitePoint},
		{"too large", pts(0, 0, 0.1, 0, 0.2, 0, 0.3, 0), Options{MaxEdgeLength: 1, MaxDim: 2, MaxSimplices: 6}, ErrComplexTooLarge},
		{"radius too small for coordinates", pts(0, 0, 10, 0), Options{MaxEdgeLength: 1e-9, MaxDim: 2}, ErrInvalidRadius},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.points, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, fault.ErrComputation)
		})
	}
}

func TestBoundaries(t *testing.T) {
	cx, err := Build(pts(0, 0, 3, 0, 0, 4), Options{MaxEdgeLength: 5, MaxDim: 2})
	require.NoError(t, err)
	bd, err := cx.Boundaries()
	require.NoError(t, err)

	faces := map[int]int{0: 0, 1: 2, 2: 3}
	for idx, s := range cx.Simplices {
		require.Len(t, bd[idx], faces[s.Dim], "simplex %v", s.Verts())
		for _, f := range bd[idx] {
			assert.Less(t, f, idx, "faces precede cofaces")
		}
	}
}

func TestBuild_SizeLimitStopsBeforeNeighbourLists(t *testing.T) {
	// 6000 points within 110 units of each other: every pair is an edge at
	// radius 1000, about 18M edges in full.
	var dense []cells.Point
	for i := 0; i < 6000; i++ {
		dense = append(dense, cells.Point{X: float64(i % 80), Y: float64(i / 80)})
	}
	opts := Options{MaxEdgeLength: 1000, MaxDim: 2, MaxSimplices: 10_000}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := Build(dense, opts)
	runtime.ReadMemStats(&after)

	require.ErrorIs(t, err, ErrComplexTooLarge)
	allocated := after.TotalAlloc - before.TotalAlloc
	assert.Less(t, allocated, uint64(16<<20), "allocated %d bytes before failing", allocated)
}

func TestBuild_EdgeBudgetIncludesLimit(t *testing.T) {
	// 4 vertices and 6 edges fill a limit of 10 exactly.
	cx, err := Build(pts(0, 0, 0.1, 0, 0.2, 0, 0.3, 0), Options{MaxEdgeLength: 1, MaxDim: 1, MaxSimplices: 10})
	require.NoError(t, err)
	assert.Equal(t, 6, cx.Count(1))

	_, err = Build(pts(0, 0, 0.1, 0, 0.2, 0, 0.3, 0), Options{MaxEdgeLength: 1, MaxDim: 1, MaxSimplices: 9})
	assert.ErrorIs(t, err, ErrComplexTooLarge)
}

func TestForwardNeighbors_SharedCellKeysVisitedOnce(t *testing.T) {
	// Far from the origin the Szudzik square wraps, and the cell at y=2 shares
	// its key with the cell diagonally below-left of it.
	far := math.Ldexp(1, 62)
	points := pts(far, 2, far, 2.5)
	g := newGridIndex(points, 1)
	cx, cy := g.cellCoords(far, 2)
	require.Equal(t, cellID(cx, cy), cellID(cx-1, cy-1))

	adj, dist, ok := g.forwardNeighbors(points, 1, 100)
	require.True(t, ok)
	assert.Equal(t, []int{1}, adj[0])
	assert.Equal(t, []float64{0.5}, dist[0])
	assert.Empty(t, adj[1])
}
