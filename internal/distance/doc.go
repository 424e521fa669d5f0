// Package distance compares persistence diagrams with the Wasserstein and
// bottleneck distances.
//
// Both distances match the points of two diagrams against each other or
// against their projections onto the diagonal. Wasserstein minimises the sum
// of matched costs (raised to the order p) and is solved as an assignment
// problem; bottleneck minimises the largest matched cost and is solved by a
// threshold search over bipartite perfect matchings.
package distance
