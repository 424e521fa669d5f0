package distance

import (
	"math"
	"sort"

	"github.com/banshee-data/topofingerprint/internal/persistence"
)

// Bottleneck returns the bottleneck distance between two diagrams of one
// homological dimension: the minimum over partial matchings of the largest
// matched cost, where unmatched points pay their distance to the diagonal.
// Options.Order is ignored.
//
// The optimum is one of the candidate edge costs. Candidates are sorted and
// binary searched; a threshold t is feasible when the bipartite graph of
// edges costing at most t has a perfect matching, tested with Hopcroft-Karp.
func Bottleneck(a, b persistence.Diagram, opts Options) (float64, error) {
	x, y, done, err := prepare(a, b, opts)
	if err != nil || done {
		return 0, err
	}
	n, m := len(x), len(y)

	dx := make([]float64, n)
	for i, pt := range x {
		dx[i] = opts.diagonalCost(pt.Birth, pt.Death)
	}
	dy := make([]float64, m)
	for j, pt := range y {
		dy[j] = opts.diagonalCost(pt.Birth, pt.Death)
	}
	if n == 0 || m == 0 {
		return maxOf(append(dx, dy...)), nil
	}

	pc := make([]float64, n*m)
	for i := range x {
		for j := range y {
			pc[i*m+j] = opts.pointCost(x[i].Birth, x[i].Death, y[j].Birth, y[j].Death)
		}
	}

	candidates := make([]float64, 0, len(pc)+n+m+1)
	candidates = append(candidates, 0)
	candidates = append(candidates, pc...)
	candidates = append(candidates, dx...)
	candidates = append(candidates, dy...)
	candidates = uniqueSorted(candidates)

	g := thresholdGraph{n: n, m: m, pc: pc, dx: dx, dy: dy}
	// The largest candidate admits every edge and is always feasible.
	lo := sort.Search(len(candidates)-1, func(k int) bool {
		return g.perfect(candidates[k])
	})
	return candidates[lo], nil
}

func maxOf(v []float64) float64 {
	out := 0.0
	for _, f := range v {
		out = math.Max(out, f)
	}
	return out
}

func uniqueSorted(v []float64) []float64 {
	sort.Float64s(v)
	out := v[:0]
	for i, f := range v {
		if i == 0 || f != v[i-1] {
			out = append(out, f)
		}
	}
	return out
}

// thresholdGraph is the augmented bipartite graph of a bottleneck problem.
// Left vertices are the n points of x then m diagonal copies of y; right
// vertices are the m points of y then n diagonal copies of x. A point may
// only drop to its own diagonal copy; diagonal copies connect freely.
type thresholdGraph struct {
	n, m   int
	pc     []float64 // pc[i*m+j] = cost(x_i, y_j)
	dx, dy []float64
}

func (g thresholdGraph) perfect(t float64) bool {
	n, m := g.n, g.m
	adj := make([][]int, n+m)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			if g.pc[i*m+j] <= t {
				adj[i] = append(adj[i], j)
			}
		}
		if g.dx[i] <= t {
			adj[i] = append(adj[i], m+i)
		}
	}
	for j := 0; j < m; j++ {
		row := n + j
		if g.dy[j] <= t {
			adj[row] = append(adj[row], j)
		}
		for i := 0; i < n; i++ {
			adj[row] = append(adj[row], m+i)
		}
	}
	return hopcroftKarp(adj, n+m) == n+m
}

// hopcroftKarp returns the size of a maximum matching of the bipartite graph
// whose left vertex u is adjacent to the right vertices adj[u].
func hopcroftKarp(adj [][]int, nRight int) int {
	const free = -1
	nLeft := len(adj)
	matchL := make([]int, nLeft)
	matchR := make([]int, nRight)
	for i := range matchL {
		matchL[i] = free
	}
	for i := range matchR {
		matchR[i] = free
	}
	layer := make([]int, nLeft)
	queue := make([]int, 0, nLeft)

	bfs := func() bool {
		queue = queue[:0]
		for u := range adj {
			if matchL[u] == free {
				layer[u] = 0
				queue = append(queue, u)
			} else {
				layer[u] = -1
			}
		}
		found := false
		for qi := 0; qi < len(queue); qi++ {
			u := queue[qi]
			for _, v := range adj[u] {
				w := matchR[v]
				if w == free {
					found = true
				} else if layer[w] < 0 {
					layer[w] = layer[u] + 1
					queue = append(queue, w)
				}
			}
		}
		return found
	}

	var dfs func(u int) bool
	dfs = func(u int) bool {
		for _, v := range adj[u] {
			w := matchR[v]
			if w == free || (layer[w] == layer[u]+1 && dfs(w)) {
				matchL[u] = v
				matchR[v] = u
				return true
			}
		}
		layer[u] = -1
		return false
	}

	size := 0
	for bfs() {
		for u := range adj {
			if matchL[u] == free && dfs(u) {
				size++
			}
		}
	}
	return size
}
