package rips

import (
	"math"
	"sort"

	"github.com/banshee-data/topofingerprint/internal/cells"
)

// gridIndex buckets points into square cells of side equal to the maximum
// edge length, so every neighbour within that radius lies in the 3x3 block of
// cells around a point.
type gridIndex struct {
	cellSize float64
	cells    map[int64][]int // cell ID -> point indices, ascending
}

func newGridIndex(points []cells.Point, cellSize float64) *gridIndex {
	g := &gridIndex{
		cellSize: cellSize,
		cells:    make(map[int64][]int, len(points)/4+1),
	}
	for i, p := range points {
		cx, cy := g.cellCoords(p.X, p.Y)
		id := cellID(cx, cy)
		g.cells[id] = append(g.cells[id], i)
	}
	return g
}

func (g *gridIndex) cellCoords(x, y float64) (int64, int64) {
	return int64(math.Floor(x / g.cellSize)), int64(math.Floor(y / g.cellSize))
}

// maxCellCoord bounds |x/r| and |y/r|. Beyond it the float-to-int cell
// conversion loses precision and the Szudzik square wraps int64, so distinct
// neighbour cells may share a key; forwardNeighbors tolerates shared keys but
// Build rejects inputs this far out.
const maxCellCoord = 1 << 30

// cellID folds signed cell coordinates into one key with zigzag encoding
// followed by Szudzik's pairing function. Keys are unique while both
// coordinates stay within maxCellCoord.
func cellID(cx, cy int64) int64 {
	a := zigzag(cx)
	b := zigzag(cy)
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

// forwardNeighbors returns, for each point i, the indices j > i within
// Euclidean distance r, in ascending order, together with the distances.
// It stops and reports false as soon as more than maxEdges edges are found.
func (g *gridIndex) forwardNeighbors(points []cells.Point, r float64, maxEdges int) ([][]int, [][]float64, bool) {
	r2 := r * r
	adj := make([][]int, len(points))
	dist := make([][]float64, len(points))
	edges := 0
	var seen [9]int64
	for i, p := range points {
		cx, cy := g.cellCoords(p.X, p.Y)
		visited := seen[:0]
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				id := cellID(cx+dx, cy+dy)
				if containsID(visited, id) {
					continue
				}
				visited = append(visited, id)
				for _, j := range g.cells[id] {
					if j <= i {
						continue
					}
					ddx := points[j].X - p.X
					ddy := points[j].Y - p.Y
					d2 := ddx*ddx + ddy*ddy
					if d2 > r2 {
						continue
					}
					if edges++; edges > maxEdges {
						return nil, nil, false
					}
					adj[i] = append(adj[i], j)
					dist[i] = append(dist[i], math.Sqrt(d2))
				}
			}
		}
		sortNeighbors(adj[i], dist[i])
	}
	return adj, dist, true
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// sortNeighbors orders a neighbour list by index, keeping distances aligned.
func sortNeighbors(idx []int, d []float64) {
	sort.Sort(neighborList{idx: idx, dist: d})
}

type neighborList struct {
	idx  []int
	dist []float64
}

func (n neighborList) Len() int           { return len(n.idx) }
func (n neighborList) Less(a, b int) bool { return n.idx[a] < n.idx[b] }
func (n neighborList) Swap(a, b int) {
	n.idx[a], n.idx[b] = n.idx[b], n.idx[a]
	n.dist[a], n.dist[b] = n.dist[b], n.dist[a]
}
