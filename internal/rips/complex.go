package rips

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/topofingerprint/internal/cells"
	"github.com/banshee-data/topofingerprint/internal/fault"
)

// MaxSupportedDim is the highest simplex dimension the builder produces.
const MaxSupportedDim = 2

// DefaultMaxSimplices caps the complex size when Options.MaxSimplices is 0.
// A dense cloud at a large radius grows cubically in triangles; the cap turns
// that into a computation failure instead of an out-of-memory crash.
const DefaultMaxSimplices = 20_000_000

var (
	ErrInvalidRadius    = fmt.Errorf("%w: max edge length must be finite and > 0", fault.ErrComputation)
	ErrInvalidDimension = fmt.Errorf("%w: max dimension must be between 0 and %d", fault.ErrComputation, MaxSupportedDim)
	ErrNonFinitePoint   = fmt.Errorf("%w: non-finite coordinate", fault.ErrComputation)
	ErrComplexTooLarge  = fmt.Errorf("%w: complex exceeds simplex limit", fault.ErrComputation)
	ErrNotMonotone      = errors.New("filtration is not monotone")
)

// Options configures complex construction.
type Options struct {
	MaxEdgeLength float64
	MaxDim        int
	MaxSimplices  int
}

func (o Options) maxSimplices() int {
	if o.MaxSimplices <= 0 {
		return DefaultMaxSimplices
	}
	return o.MaxSimplices
}

// Simplex is a vertex, edge or triangle with the radius at which it enters
// the filtration. Only the first Dim+1 entries of Vertices are used, in
// ascending order.
type Simplex struct {
	Vertices   [3]int
	Dim        int
	Filtration float64
}

// Verts returns the simplex's vertex indices.
func (s Simplex) Verts() []int { return s.Vertices[:s.Dim+1] }

// Complex is a filtered Vietoris-Rips complex. Simplices are sorted by
// filtration value, then dimension, then vertex indices, so every face
// precedes its cofaces.
type Complex struct {
	Simplices     []Simplex
	NumVertices   int
	MaxDim        int
	MaxEdgeLength float64
}

// Count returns the number of simplices of dimension dim.
func (c *Complex) Count(dim int) int {
	n := 0
	for _, s := range c.Simplices {
		if s.Dim == dim {
			n++
		}
	}
	return n
}

// Edges returns the 1-simplices in filtration order.
func (c *Complex) Edges() []Simplex {
	var out []Simplex
	for _, s := range c.Simplices {
		if s.Dim == 1 {
			out = append(out, s)
		}
	}
	return out
}

// Build constructs the Vietoris-Rips (flag) complex of points: an edge for
// every pair at Euclidean distance <= MaxEdgeLength, weighted by that
// distance, and a triangle for every 3-clique, weighted by its longest edge.
//
// Edges come from a grid index with cell size MaxEdgeLength, costing O(n·k)
// distance checks for k points in a 3x3 cell block (O(n²) when everything
// falls into one block). Triangles are found by intersecting the sorted
// forward-adjacency lists of each edge's endpoints, O(Σ deg²). The simplex
// limit is enforced while neighbours are collected, so a dense cloud fails
// with ErrComplexTooLarge before its edge lists are held in memory.
//
// Coordinates must lie within 2^30 radii of the origin; farther points are
// rejected with ErrInvalidRadius.
func Build(points []cells.Point, opts Options) (*Complex, error) {
	r := opts.MaxEdgeLength
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRadius, r)
	}
	if opts.MaxDim < 0 || opts.MaxDim > MaxSupportedDim {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDimension, opts.MaxDim)
	}
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("%w: point %d (%v, %v)", ErrNonFinitePoint, i, p.X, p.Y)
		}
		if math.Abs(p.X/r) > maxCellCoord || math.Abs(p.Y/r) > maxCellCoord {
			return nil, fmt.Errorf("%w: point %d (%v, %v) is more than %d radii from the origin at radius %v",
				ErrInvalidRadius, i, p.X, p.Y, maxCellCoord, r)
		}
	}
	limit := opts.maxSimplices()
	if len(points) > limit {
		return nil, fmt.Errorf("%w: %d vertices > %d", ErrComplexTooLarge, len(points), limit)
	}

	cx := &Complex{
		NumVertices:   len(points),
		MaxDim:        opts.MaxDim,
		MaxEdgeLength: r,
		Simplices:     make([]Simplex, 0, len(points)),
	}
	for i := range points {
		cx.Simplices = append(cx.Simplices, Simplex{Vertices: [3]int{i}, Dim: 0})
	}

	if opts.MaxDim >= 1 && len(points) >= 2 {
		adj, dist, ok := newGridIndex(points, r).forwardNeighbors(points, r, limit-len(points))
		if !ok {
			return nil, fmt.Errorf("%w: more than %d simplices at radius %v", ErrComplexTooLarge, limit, r)
		}

		for i := range adj {
			for a, j := range adj[i] {
				cx.Simplices = append(cx.Simplices, Simplex{Vertices: [3]int{i, j}, Dim: 1, Filtration: dist[i][a]})
			}
		}

		if opts.MaxDim >= 2 {
			if err := appendTriangles(cx, adj, dist, limit); err != nil {
				return nil, err
			}
		}
	}

	sortFiltration(cx.Simplices)
	return cx, nil
}

// appendTriangles adds every 3-clique (i < j < k) of the edge graph.
func appendTriangles(cx *Complex, adj [][]int, dist [][]float64, limit int) error {
	for i := range adj {
		for a, j := range adj[i] {
			dij := dist[i][a]
			// Merge adj[i] (neighbours of i above i) with adj[j] (above j).
			pi, pj := a+1, 0
			for pi < len(adj[i]) && pj < len(adj[j]) {
				ki, kj := adj[i][pi], adj[j][pj]
				switch {
				case ki < kj:
					pi++
				case kj < ki:
					pj++
				default:
					if len(cx.Simplices) >= limit {
						return fmt.Errorf("%w: more than %d simplices at radius %v", ErrComplexTooLarge, limit, cx.MaxEdgeLength)
					}
					f := math.Max(dij, math.Max(dist[i][pi], dist[j][pj]))
					cx.Simplices = append(cx.Simplices, Simplex{Vertices: [3]int{i, j, ki}, Dim: 2, Filtration: f})
					pi++
					pj++
				}
			}
		}
	}
	return nil
}

func sortFiltration(s []Simplex) {
	sort.Slice(s, func(a, b int) bool {
		return simplexLess(s[a], s[b])
	})
}

func simplexLess(x, y Simplex) bool {
	if x.Filtration != y.Filtration {
		return x.Filtration < y.Filtration
	}
	if x.Dim != y.Dim {
		return x.Dim < y.Dim
	}
	for k := 0; k <= x.Dim; k++ {
		if x.Vertices[k] != y.Vertices[k] {
			return x.Vertices[k] < y.Vertices[k]
		}
	}
	return false
}

type edgeKey [2]int

// Boundaries returns, for every simplex, the filtration indices of its
// codimension-1 faces in ascending order. Vertices have empty boundaries.
func (c *Complex) Boundaries() ([][]int, error) {
	vertexAt := make([]int, c.NumVertices)
	edgeAt := make(map[edgeKey]int)
	out := make([][]int, len(c.Simplices))

	for idx, s := range c.Simplices {
		switch s.Dim {
		case 0:
			vertexAt[s.Vertices[0]] = idx
		case 1:
			u, v := s.Vertices[0], s.Vertices[1]
			out[idx] = sortedPair(vertexAt[u], vertexAt[v])
			edgeAt[edgeKey{u, v}] = idx
		case 2:
			u, v, w := s.Vertices[0], s.Vertices[1], s.Vertices[2]
			faces := make([]int, 0, 3)
			for _, e := range []edgeKey{{u, v}, {u, w}, {v, w}} {
				fi, ok := edgeAt[e]
				if !ok {
					return nil, fmt.Errorf("%w: %w: triangle %v precedes edge %v", fault.ErrComputation, ErrNotMonotone, s.Verts(), e)
				}
				faces = append(faces, fi)
			}
			sort.Ints(faces)
			out[idx] = faces
		}
	}
	return out, nil
}

func sortedPair(a, b int) []int {
	if a < b {
		return []int{a, b}
	}
	return []int{b, a}
}

// Validate checks the filtration invariant: every face is present earlier in
// the order with a filtration value no larger than its coface's.
func (c *Complex) Validate() error {
	bd, err := c.Boundaries()
	if err != nil {
		return err
	}
	for idx, faces := range bd {
		s := c.Simplices[idx]
		if s.Filtration < 0 {
			return fmt.Errorf("%w: %w: negative filtration %v", fault.ErrComputation, ErrNotMonotone, s.Filtration)
		}
		for _, f := range faces {
			if f >= idx || c.Simplices[f].Filtration > s.Filtration {
				return fmt.Errorf("%w: %w: simplex %v", fault.ErrComputation, ErrNotMonotone, s.Verts())
			}
		}
	}
	return nil
}
