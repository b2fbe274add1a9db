// Package mipwindow builds the routing+quantity MIP spec.md §4.7 runs over a
// window of "active" periods (full edge-variable routing) while holding the
// remaining periods at their current tour price, and drives it through
// mipengine with lazy subtour-elimination cuts.
package mipwindow

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"irpsolver/internal/mipengine"
	"irpsolver/internal/model"
	"irpsolver/internal/routingcost"
	"irpsolver/internal/tsprepair"
)

// CutPolicy controls how many subtours a single incumbent callback reports.
type CutPolicy int

const (
	// CutBest adds a cut only for the smallest depot-free subtour found
	// across every (period, vehicle) pair in the incumbent. This is the
	// default: spec.md §4.7 calls it out as the recommended policy.
	CutBest CutPolicy = iota
	// CutFirst adds a cut for the first subtour found and stops looking.
	CutFirst
	// CutAll adds a cut for the first subtour found, exactly like CutFirst:
	// a callback returns at most one cut per incumbent, so the other
	// subtours of the same incumbent are not cut.
	CutAll
)

// Solver builds and drives window/full MIP models over an Instance.
type Solver struct {
	inst   *model.Instance
	matrix *routingcost.Matrix
	engine mipengine.Engine
	repair *tsprepair.TspRepair
	policy CutPolicy
	rng    *rand.Rand
}

// New builds a Solver. rng drives the per-invocation tourCostFactor
// resampling (spec.md §4.7); pass a seeded *rand.Rand for reproducible runs.
func New(inst *model.Instance, matrix *routingcost.Matrix, engine mipengine.Engine, repair *tsprepair.TspRepair, policy CutPolicy, rng *rand.Rand) *Solver {
	return &Solver{inst: inst, matrix: matrix, engine: engine, repair: repair, policy: policy, rng: rng}
}

// Incumbent is one accepted, subtour-free integer solution the engine
// reported, already reconstructed into route/delivery form for the caller.
type Incumbent struct {
	Objective    float64
	ActiveRoutes map[int]model.PeriodRoute // period index -> route, active periods only
	Delivery     [][][]float64             // [p][v][n], every period
}

// Solve builds the model for the given active-period window and drives it to
// completion (or ctx cancellation), reporting every strictly-improving
// subtour-free incumbent to onImprove as the engine finds it. visits and
// tourPrices describe the state of the inactive periods; visits' rows for
// active periods are ignored (routing decides them). It returns the best
// incumbent found, if any.
func (s *Solver) Solve(ctx context.Context, active []int, visits [][]bool, tourPrices []float64, onImprove func(Incumbent)) (Incumbent, bool, error) {
	lay := newLayout(s.inst, active)
	tourCostFactor := 1 + 0.8 + s.rng.Float64()*0.5 // uniform(0.8, 1.3), then +1

	prob, constant, inactiveConst := s.buildProblem(lay, visits, tourPrices, tourCostFactor)

	cb := &windowCallback{
		s:          s,
		lay:        lay,
		constant:   constant + inactiveConst,
		onImprove:  onImprove,
		bestZ:      math.Inf(1),
	}

	sol, err := s.engine.Solve(ctx, prob, cb)
	if err != nil {
		return Incumbent{}, false, fmt.Errorf("mipwindow: engine solve: %w", err)
	}
	if !sol.Feasible || !cb.found {
		return Incumbent{}, false, nil
	}
	return cb.best, true, nil
}

// sparseRow is one equality-form constraint row under construction; slack
// columns are allocated lazily as rows request them so the final variable
// count doesn't need to be known up front.
type sparseRow struct {
	coeffs map[int]float64
	rhs    float64
}

func newRow(rhs float64) *sparseRow {
	return &sparseRow{coeffs: make(map[int]float64), rhs: rhs}
}

func (r *sparseRow) set(col int, v float64) { r.coeffs[col] += v }

// buildProblem assembles the full mipengine.Problem for the window model
// described in spec.md §4.7: continuous deliveries for every period, binary
// routing edges for the active window only, degree/indegree/gating
// constraints on the active periods, and the same shifted-holding-cost
// objective quantitylp uses, plus tourCostFactor*routing cost on active
// edges and a constant contribution from every inactive period's tour price.
func (s *Solver) buildProblem(lay *layout, visits [][]bool, tourPrices []float64, tourCostFactor float64) (mipengine.Problem, float64, float64) {
	inst := s.inst
	nP, nV, nN, nD := lay.nP, lay.nV, lay.nN, lay.nD

	cumDemand := make([][]float64, nN)
	for n := 0; n < nN; n++ {
		cumDemand[n] = make([]float64, nP)
		running := 0.0
		for p := 0; p < nP; p++ {
			running += inst.Nodes[n].Demands[p]
			cumDemand[n][p] = running
		}
	}
	shiftCum := make([][]float64, nN)
	for n := 0; n < nN; n++ {
		shiftCum[n] = make([]float64, nP)
		running := 0.0
		for p := 0; p < nP; p++ {
			for v := 0; v < nV; v++ {
				running += lay.shift[v][n]
			}
			shiftCum[n][p] = running
		}
	}

	baseVars := lay.totalBaseVars()
	nextSlack := baseVars
	alloc := func() int {
		col := nextSlack
		nextSlack++
		return col
	}

	c := make(map[int]float64)
	constant := 0.0

	for n := 0; n < nN; n++ {
		hc := inst.Nodes[n].HoldingCost
		// One-time initialHoldingCost term, added once per Solve call
		// alongside the per-period stock sum below (spec.md §4.4).
		constant += hc * inst.Nodes[n].InitQuantity
		for p := 0; p < nP; p++ {
			constant += hc * (inst.Nodes[n].InitQuantity - cumDemand[n][p] - shiftCum[n][p])
		}
		for pp := 0; pp < nP; pp++ {
			weight := hc * float64(nP-pp)
			for v := 0; v < nV; v++ {
				c[lay.deliveryIdx(pp, v, n)] += weight
			}
		}
	}
	inactiveConst := 0.0
	for p := 0; p < nP; p++ {
		if !lay.active[p] {
			inactiveConst += tourPrices[p]
		}
	}
	for _, p := range lay.activeList {
		for v := 0; v < nV; v++ {
			for n := 0; n < nN; n++ {
				for m := 0; m < nN; m++ {
					if m == n {
						continue
					}
					c[lay.edgeIdx(p, v, n, m)] += tourCostFactor * s.matrix.At(n, m)
				}
			}
		}
	}

	var rows []*sparseRow

	// Quantity matching, every period: sum_n d'[p][v][n] == sum_{n<D} shift.
	for p := 0; p < nP; p++ {
		for v := 0; v < nV; v++ {
			rhs := 0.0
			for n := 0; n < nD; n++ {
				rhs += lay.shift[v][n]
			}
			r := newRow(rhs)
			for n := 0; n < nN; n++ {
				r.set(lay.deliveryIdx(p, v, n), 1)
			}
			rows = append(rows, r)
		}
	}

	// Inactive periods: same box-bound-with-slack technique as quantitylp,
	// gated by the passed-in visits matrix.
	for p := 0; p < nP; p++ {
		if lay.active[p] {
			continue
		}
		for v := 0; v < nV; v++ {
			for n := 0; n < nN; n++ {
				ub := 0.0
				if n < nD || visits[p][n] {
					ub = lay.q[v][n]
				}
				r := newRow(ub)
				r.set(lay.deliveryIdx(p, v, n), 1)
				r.set(alloc(), 1)
				rows = append(rows, r)
			}
		}
	}

	// Active periods: depot delivery is boxed by capacity alone (the depot
	// always "participates"); routing decides customer visitation.
	for _, p := range lay.activeList {
		for v := 0; v < nV; v++ {
			for n := 0; n < nD; n++ {
				r := newRow(lay.q[v][n])
				r.set(lay.deliveryIdx(p, v, n), 1)
				r.set(alloc(), 1)
				rows = append(rows, r)
			}
		}
	}

	// Active periods, routing constraints per (p,v,n):
	//   degree balance:      out - in == 0   (every node except node 0)
	//   at most one inbound: sum_m x[m][n] + slack == 1
	// and, for customers only:
	//   delivery gated by inbound:  d - Q*indeg + slack == 0  (d <= Q*indeg)
	//   delivery floor from inbound: indeg - d + slack == 0   (d >= indeg)
	for _, p := range lay.activeList {
		for v := 0; v < nV; v++ {
			for n := 0; n < nN; n++ {
				out := newRow(0)
				for m := 0; m < nN; m++ {
					if m == n {
						continue
					}
					out.set(lay.edgeIdx(p, v, n, m), 1)
					out.set(lay.edgeIdx(p, v, m, n), -1)
				}
				// The degree-balance rows of all nodes of one (p,v) sum to
				// zero, so node 0's row is implied by the others; leaving it
				// out keeps A at the full row rank lp.Simplex requires.
				if n != 0 {
					rows = append(rows, out)
				}

				indeg := newRow(1)
				for m := 0; m < nN; m++ {
					if m == n {
						continue
					}
					indeg.set(lay.edgeIdx(p, v, m, n), 1)
				}
				indeg.set(alloc(), 1)
				rows = append(rows, indeg)

				if n < nD {
					continue
				}
				gate := newRow(0)
				gate.set(lay.deliveryIdx(p, v, n), 1)
				for m := 0; m < nN; m++ {
					if m == n {
						continue
					}
					gate.set(lay.edgeIdx(p, v, m, n), -lay.q[v][n])
				}
				gate.set(alloc(), 1)
				rows = append(rows, gate)

				floor := newRow(0)
				floor.set(lay.deliveryIdx(p, v, n), -1)
				for m := 0; m < nN; m++ {
					if m == n {
						continue
					}
					floor.set(lay.edgeIdx(p, v, m, n), 1)
				}
				floor.set(alloc(), 1)
				rows = append(rows, floor)
			}
		}
	}

	// Inventory bounds, every node/period, over the unified delivery
	// variables (identical technique to quantitylp).
	for n := 0; n < nN; n++ {
		nodeCapacity := inst.Nodes[n].Capacity
		for p := 0; p < nP; p++ {
			lower := cumDemand[n][p] - inst.Nodes[n].InitQuantity + shiftCum[n][p]
			upper := nodeCapacity - inst.Nodes[n].InitQuantity + cumDemand[n][p] + shiftCum[n][p]

			lo := newRow(lower)
			hi := newRow(upper)
			for pp := 0; pp <= p; pp++ {
				for v := 0; v < nV; v++ {
					lo.set(lay.deliveryIdx(pp, v, n), 1)
					hi.set(lay.deliveryIdx(pp, v, n), 1)
				}
			}
			lo.set(alloc(), -1)
			hi.set(alloc(), 1)
			rows = append(rows, lo, hi)
		}
	}

	totalVars := nextSlack
	A := mat.NewDense(len(rows), totalVars, nil)
	b := make([]float64, len(rows))
	for i, r := range rows {
		for col, v := range r.coeffs {
			A.Set(i, col, v)
		}
		b[i] = r.rhs
	}

	cVec := make([]float64, totalVars)
	for col, v := range c {
		cVec[col] = v
	}

	integer := make([]bool, totalVars)
	for _, p := range lay.activeList {
		for v := 0; v < nV; v++ {
			for n := 0; n < nN; n++ {
				for m := 0; m < nN; m++ {
					if m == n {
						continue
					}
					integer[lay.edgeIdx(p, v, n, m)] = true
				}
			}
		}
	}

	return mipengine.Problem{C: cVec, A: A, B: b, Integer: integer}, constant, inactiveConst
}
