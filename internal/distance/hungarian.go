package distance

import "math"

// assign solves the balanced n×n assignment problem for the cost function
// cost(i, j) with the Kuhn-Munkres algorithm with potentials in O(n³) time.
// It returns rowAssign[i] = column assigned to row i. Costs are evaluated on
// demand so the matrix is never materialised.
func assign(n int, cost func(i, j int) float64) []int {
	if n == 0 {
		return nil
	}

	// 1-indexed internally; column 0 is the virtual start column.
	const inf = math.MaxFloat64 / 2

	u := make([]float64, n+1) // row potentials
	v := make([]float64, n+1) // column potentials
	p := make([]int, n+1)     // p[j] = row assigned to column j
	way := make([]int, n+1)   // way[j] = previous column on the augmenting path
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= n; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}

			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, n)
	for j := 1; j <= n; j++ {
		rowAssign[p[j]-1] = j - 1
	}
	return rowAssign
}
