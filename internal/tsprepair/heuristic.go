package tsprepair

import (
	"context"

	"irpsolver/internal/routingcost"
)

// NearestNeighborTwoOpt is the default TspBackend: a nearest-neighbor
// construction heuristic followed by 2-opt local search until no improving
// edge swap remains. It stands in for the external "LKH-like" solver
// spec.md §4.3 describes as a black box — correctness of the overall system
// never depends on tour optimality, only on tour validity.
type NearestNeighborTwoOpt struct{}

// Solve implements TspBackend. nodes[0] is treated as the fixed tour start.
func (NearestNeighborTwoOpt) Solve(ctx context.Context, m *routingcost.Matrix, nodes []int) ([]int, float64, error) {
	tour := nearestNeighborTour(m, nodes)
	tour = twoOpt(ctx, m, tour)
	cost := closedTourCost(m, tour)
	return tour, cost, nil
}

// nearestNeighborTour builds a greedy tour starting at nodes[0], repeatedly
// picking the closest unvisited node, then returns to the start.
func nearestNeighborTour(m *routingcost.Matrix, nodes []int) []int {
	n := len(nodes)
	visited := make(map[int]bool, n)
	tour := make([]int, 0, n+1)

	cur := nodes[0]
	tour = append(tour, cur)
	visited[cur] = true

	for len(tour) < n {
		best, bestCost := -1, 0.0
		for _, cand := range nodes {
			if visited[cand] {
				continue
			}
			c := m.At(cur, cand)
			if best == -1 || c < bestCost {
				best, bestCost = cand, c
			}
		}
		tour = append(tour, best)
		visited[best] = true
		cur = best
	}
	tour = append(tour, nodes[0])
	return tour
}

// twoOpt repeatedly reverses tour segments that shorten the closed tour,
// stopping when a full pass finds no improvement or ctx is done.
func twoOpt(ctx context.Context, m *routingcost.Matrix, tour []int) []int {
	n := len(tour)
	if n < 4 {
		return tour
	}
	improved := true
	for improved {
		improved = false
		for i := 1; i < n-2; i++ {
			select {
			case <-ctx.Done():
				return tour
			default:
			}
			for j := i + 1; j < n-1; j++ {
				a, b := tour[i-1], tour[i]
				c, d := tour[j], tour[j+1]
				delta := (m.At(a, c) + m.At(b, d)) - (m.At(a, b) + m.At(c, d))
				if delta < -1e-9 {
					reverse(tour, i, j)
					improved = true
				}
			}
		}
	}
	return tour
}

func reverse(tour []int, i, j int) {
	for i < j {
		tour[i], tour[j] = tour[j], tour[i]
		i++
		j--
	}
}

func closedTourCost(m *routingcost.Matrix, tour []int) float64 {
	total := 0.0
	for i := 0; i+1 < len(tour); i++ {
		total += m.At(tour[i], tour[i+1])
	}
	return total
}
