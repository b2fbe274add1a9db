package mipwindow

import (
	"context"
	"math"
	"sync"

	"irpsolver/internal/mipengine"
	"irpsolver/internal/model"
)

// windowCallback runs on the engine's own worker goroutines (branch-and-bound
// can call OnIncumbent concurrently), so every field it touches is guarded by
// mu. Two engine workers can both pass the engine's bound check before either
// reports, so OnIncumbent re-checks z against the best incumbent it has
// already reported and only reports strict improvements.
type windowCallback struct {
	s        *Solver
	lay      *layout
	constant float64

	mu        sync.Mutex
	found     bool
	bestZ     float64
	best      Incumbent
	onImprove func(Incumbent)
}

// OnIncumbent implements mipengine.Callback. It looks for a subtour in every
// (period, vehicle) route of the incumbent; if one exists the incumbent is
// rejected with a cut forbidding that subtour's edge set. Otherwise the
// incumbent is a genuine routing solution and is extracted and reported.
func (cb *windowCallback) OnIncumbent(x []float64, z float64) (*mipengine.Cut, bool) {
	if cut := cb.findSubtourCut(x); cut != nil {
		return cut, false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.found && z >= cb.bestZ {
		// Not better than an incumbent already reported; the engine's own
		// incumbent bound rejects it as well.
		return nil, true
	}

	inc, err := cb.extract(x, z)
	if err != nil {
		// Repair failure on an otherwise subtour-free incumbent means the
		// backend couldn't route it; reject without a cut so the engine
		// keeps searching rather than accepting a broken solution.
		return nil, false
	}
	cb.found = true
	cb.bestZ = z
	cb.best = inc
	if cb.onImprove != nil {
		cb.onImprove(inc)
	}
	return nil, true
}

// findSubtourCut walks every (period, vehicle) route in x looking for a
// depot-free cycle. Under CutBest it returns a cut for the smallest one found
// across the whole incumbent; under CutFirst and CutAll it returns a cut for
// the first one found. mipengine.Callback returns at most one cut per call,
// so CutAll and CutFirst behave identically.
func (cb *windowCallback) findSubtourCut(x []float64) *mipengine.Cut {
	lay := cb.lay
	var bestCut *mipengine.Cut
	var bestLen int

	for _, p := range lay.activeList {
		for v := 0; v < lay.nV; v++ {
			succ := make(map[int]int)
			for n := 0; n < lay.nN; n++ {
				for m := 0; m < lay.nN; m++ {
					if m == n {
						continue
					}
					if x[lay.edgeIdx(p, v, n, m)] > 0.5 {
						succ[n] = m
					}
				}
			}
			for _, cyc := range findCycles(succ) {
				if containsDepot(cyc, lay.nD) {
					continue
				}
				if cb.s.policy != CutBest {
					return cutFromCycle(lay, p, v, cyc)
				}
				if bestCut == nil || len(cyc) < bestLen {
					bestCut = cutFromCycle(lay, p, v, cyc)
					bestLen = len(cyc)
				}
			}
		}
	}
	return bestCut
}

func containsDepot(cyc []int, nD int) bool {
	for _, n := range cyc {
		if n < nD {
			return true
		}
	}
	return false
}

func cutFromCycle(lay *layout, p, v int, cyc []int) *mipengine.Cut {
	row := make([]float64, lay.totalBaseVars())
	for i := range cyc {
		u := cyc[i]
		w := cyc[(i+1)%len(cyc)]
		row[lay.edgeIdx(p, v, u, w)] = 1
	}
	return &mipengine.Cut{Row: row, Rhs: float64(len(cyc) - 1)}
}

// findCycles decomposes a successor map (each node has at most one outgoing
// arc) into its disjoint cycles, ignoring dangling paths that never close.
func findCycles(succ map[int]int) [][]int {
	visited := make(map[int]bool)
	var cycles [][]int
	for start := range succ {
		if visited[start] {
			continue
		}
		var path []int
		pos := make(map[int]int)
		cur := start
		for {
			if idx, seen := pos[cur]; seen {
				cyc := append([]int(nil), path[idx:]...)
				cycles = append(cycles, cyc)
				break
			}
			if visited[cur] {
				break
			}
			pos[cur] = len(path)
			path = append(path, cur)
			visited[cur] = true
			next, ok := succ[cur]
			if !ok {
				break
			}
			cur = next
		}
	}
	return cycles
}

// extract reconstructs an Incumbent from a subtour-free x vector: for every
// active (period, vehicle) it reads the visited customers off the routing
// arcs and hands them to TspRepair to obtain a canonical tour order.
func (cb *windowCallback) extract(x []float64, z float64) (Incumbent, error) {
	lay := cb.lay
	ctx := context.Background()

	delivery := make([][][]float64, lay.nP)
	for p := 0; p < lay.nP; p++ {
		delivery[p] = make([][]float64, lay.nV)
		for v := 0; v < lay.nV; v++ {
			delivery[p][v] = make([]float64, lay.nN)
			for n := 0; n < lay.nN; n++ {
				delivery[p][v][n] = lay.delivery(x, p, v, n)
			}
		}
	}

	routes := make(map[int]model.PeriodRoute)
	for _, p := range lay.activeList {
		pr := model.PeriodRoute{VehicleRoutes: make([]model.VehicleRoute, lay.nV)}
		for v := 0; v < lay.nV; v++ {
			var customers []int
			for n := lay.nD; n < lay.nN; n++ {
				visited := false
				for m := 0; m < lay.nN; m++ {
					if m == n {
						continue
					}
					if x[lay.edgeIdx(p, v, m, n)] > 0.5 {
						visited = true
						break
					}
				}
				if visited {
					customers = append(customers, n)
				}
			}
			tour, _, err := cb.s.repair.Repair(ctx, 0, customers)
			if err != nil {
				return Incumbent{}, err
			}
			var deliveries []model.Delivery
			for _, n := range tour {
				if n == 0 {
					continue
				}
				deliveries = append(deliveries, model.Delivery{
					Node:     n,
					Quantity: math.Round(delivery[p][v][n]),
				})
			}
			pr.VehicleRoutes[v] = model.VehicleRoute{Deliveries: deliveries}
		}
		routes[p] = pr
	}

	return Incumbent{
		Objective:    z + cb.constant,
		ActiveRoutes: routes,
		Delivery:     delivery,
	}, nil
}
