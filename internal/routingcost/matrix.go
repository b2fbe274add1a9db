// Package routingcost precomputes the pairwise routing cost matrix used by
// every other component of the solver (spec.md §4.1).
package routingcost

import "math"

// Matrix is a symmetric, non-negative, rounded-Euclidean distance matrix
// between all nodes of an instance. C[i][i] is always 0.
type Matrix struct {
	n int
	c []float64 // row-major, n*n
}

// Build computes the routing cost matrix for the given node coordinates.
// Ties in the rounding are broken round-half-away-from-zero (Open Question
// (b) in spec.md §9), which is what math.Round already implements.
func Build(xs, ys []float64) *Matrix {
	n := len(xs)
	m := &Matrix{n: n, c: make([]float64, n*n)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Round(math.Hypot(xs[i]-xs[j], ys[i]-ys[j]))
			m.c[i*n+j] = d
			m.c[j*n+i] = d
		}
	}
	return m
}

// N returns the node count the matrix was built for.
func (m *Matrix) N() int { return m.n }

// At returns C[i][j] in O(1).
func (m *Matrix) At(i, j int) float64 {
	return m.c[i*m.n+j]
}

// TourCost sums C over a closed or open sequence of node ids.
func (m *Matrix) TourCost(tour []int) float64 {
	total := 0.0
	for i := 0; i+1 < len(tour); i++ {
		total += m.At(tour[i], tour[i+1])
	}
	return total
}
