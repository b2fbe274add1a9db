// Package tsprepair reconstructs a single-period delivery tour over a
// customer subset, per spec.md §4.3: given a visit set and the routing cost
// matrix, produce a cyclic node order starting and ending at the depot.
package tsprepair

import (
	"context"

	"irpsolver/internal/routingcost"
	"irpsolver/internal/tspcache"
)

// TspBackend is the pluggable black-box TSP solver. The default
// implementation shipped in this package is a nearest-neighbor
// construction with 2-opt local search; a commercial or LKH-backed solver
// can be substituted without touching TspRepair or its caller.
type TspBackend interface {
	// Solve returns a cyclic tour over nodes (which always includes the
	// depot) and its total cost under m.
	Solve(ctx context.Context, m *routingcost.Matrix, nodes []int) ([]int, float64, error)
}

// TspRepair turns an arbitrary customer subset into a cyclic tour that
// starts and ends at the depot (Repair adds the depot itself),
// consulting/updating a TspCache for subsets large enough to be worth
// caching.
type TspRepair struct {
	matrix  *routingcost.Matrix
	cache   *tspcache.Cache
	backend TspBackend
}

// New builds a TspRepair over the given routing matrix, cache, and backend.
func New(matrix *routingcost.Matrix, cache *tspcache.Cache, backend TspBackend) *TspRepair {
	return &TspRepair{matrix: matrix, cache: cache, backend: backend}
}

// Repair returns a cyclic tour over nodes and its total cost. depot is the
// node id treated as the fixed start/end of the cycle.
//
// Cases per spec.md §4.3:
//   - |nodes| <= 1: empty route, cost 0.
//   - |nodes| == 2: trivial 2-cycle depot<->other, no cache lookup needed.
//   - |nodes| >= 3: consult the TspCache; on a miss, invoke the backend and
//     store the result, keeping the cheaper of any concurrent update.
func (r *TspRepair) Repair(ctx context.Context, depot int, customers []int) ([]int, float64, error) {
	if len(customers) == 0 {
		return []int{depot, depot}, 0, nil
	}
	if len(customers) == 1 {
		c := customers[0]
		return []int{depot, c, depot}, r.matrix.At(depot, c) + r.matrix.At(c, depot), nil
	}

	nodes := append([]int{depot}, customers...)

	if r.cache == nil {
		return r.solve(ctx, nodes)
	}

	fp := tspcache.Fingerprint(nodes)
	if cached, ok, err := r.cache.Lookup(ctx, fp); err == nil && ok {
		return append([]int(nil), cached.Nodes...), cached.Cost, nil
	}

	tour, cost, err := r.solve(ctx, nodes)
	if err != nil {
		return nil, 0, err
	}
	_ = r.cache.Store(ctx, fp, tspcache.Tour{Nodes: append([]int(nil), tour...), Cost: cost})
	return tour, cost, nil
}

func (r *TspRepair) solve(ctx context.Context, nodes []int) ([]int, float64, error) {
	return r.backend.Solve(ctx, r.matrix, nodes)
}
