// Package quantitylp solves the continuous delivery-quantity subproblem
// described in spec.md §4.4: given a fixed visit matrix, find
// per-(period,vehicle,node) delivery quantities (non-positive pickups at the
// depot, non-negative drop-offs at customers) that respect vehicle and node
// capacities and minimize total holding cost.
package quantitylp

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"irpsolver/internal/model"
)

// Infeasible is the sentinel objective returned when no non-negative
// delivery schedule satisfies the model's constraints (spec.md §4.4). The
// caller must treat this as rejecting the visit matrix that produced it.
const Infeasible = -1.0

// Result is the outcome of a QuantityLp solve.
type Result struct {
	Feasible  bool
	Objective float64
	// Delivery[p][v][n] is the signed delivery quantity: negative for the
	// depot (load picked up), positive for a customer (load dropped off).
	Delivery [][][]float64
}

// Solve builds and solves the LP for the given instance and visit matrix.
// visits[p][n] must be true for every depot node in every period; the
// caller (SearchController / NeighborhoodBuilder) is expected to maintain
// that invariant, but Solve does not depend on it beyond reading it.
func Solve(inst *model.Instance, visits [][]bool) (Result, error) {
	nP := inst.PeriodNum
	nV := inst.VehicleNum()
	nN := inst.NodeNum()
	nD := inst.DepotNum

	idx := func(p, v, n int) int { return (p*nV+v)*nN + n }
	nVar := nP * nV * nN

	// Qvn: the effective per-visit capacity of node n as served by vehicle v.
	q := make([][]float64, nV)
	for v := 0; v < nV; v++ {
		q[v] = make([]float64, nN)
		for n := 0; n < nN; n++ {
			q[v][n] = math.Min(inst.Vehicles[v].Capacity, inst.Nodes[n].Capacity)
		}
	}

	// shift[v][n]: the bound-shift applied to depot variables so every LP
	// variable can be expressed in gonum's required x >= 0 form. Customer
	// variables already live in [0, Qvn] and are unshifted; depot variables
	// live in [-Qvn, 0], so d'[p][v][n] = d[p][v][n] + Qvn.
	shift := make([][]float64, nV)
	for v := 0; v < nV; v++ {
		shift[v] = make([]float64, nN)
		for n := 0; n < nD; n++ {
			shift[v][n] = q[v][n]
		}
	}

	// cumDemand[n][p] = sum of node n's demand over periods 0..p.
	cumDemand := make([][]float64, nN)
	for n := 0; n < nN; n++ {
		cumDemand[n] = make([]float64, nP)
		running := 0.0
		for p := 0; p < nP; p++ {
			running += inst.Nodes[n].Demands[p]
			cumDemand[n][p] = running
		}
	}

	// shiftCum[n][p] = sum over p'<=p, v of shift[v][n]; zero for customers.
	shiftCum := make([][]float64, nN)
	for n := 0; n < nN; n++ {
		shiftCum[n] = make([]float64, nP)
		running := 0.0
		for p := 0; p < nP; p++ {
			for v := 0; v < nV; v++ {
				running += shift[v][n]
			}
			shiftCum[n][p] = running
		}
	}

	// Upper bound on d'[p][v][n]: Qvn for depots (always "visited"),
	// Qvn*visits[p][n] for customers (folds the gating constraint from
	// spec.md §4.4 directly into the box bound).
	ub := make([]float64, nVar)
	for p := 0; p < nP; p++ {
		for v := 0; v < nV; v++ {
			for n := 0; n < nN; n++ {
				if n < nD {
					ub[idx(p, v, n)] = q[v][n]
				} else if visits[p][n] {
					ub[idx(p, v, n)] = q[v][n]
				} else {
					ub[idx(p, v, n)] = 0
				}
			}
		}
	}

	nStock := nN * nP
	stockIdx := func(n, p int) int { return n*nP + p }

	boundSlackBase := nVar
	stockLowBase := 2 * nVar
	stockHighBase := stockLowBase + nStock
	totalVars := stockHighBase + nStock

	qtyRows := nP * nV
	boundRows := nVar
	stockRows := 2 * nStock
	totalRows := qtyRows + boundRows + stockRows

	A := mat.NewDense(totalRows, totalVars, nil)
	b := make([]float64, totalRows)
	c := make([]float64, totalVars)

	// Objective: holdingCost_n * (P - p) on each d'[p][v][n], derived from
	// expanding stock[n][p] = initQty_n - cumDemand_n[p] - shiftCum[n][p] +
	// sum_{p'<=p,v} d'[p'][v][n] and summing over p (spec.md §3's totalCost
	// holding-cost expression). The constant part is tracked separately and
	// added back after the solve.
	constant := 0.0
	for n := 0; n < nN; n++ {
		hc := inst.Nodes[n].HoldingCost
		// One-time initialHoldingCost term (spec.md §4.4's objective adds
		// this in addition to the per-period stock sum below).
		constant += hc * inst.Nodes[n].InitQuantity
		for p := 0; p < nP; p++ {
			constant += hc * (inst.Nodes[n].InitQuantity - cumDemand[n][p] - shiftCum[n][p])
		}
		for pp := 0; pp < nP; pp++ {
			weight := hc * float64(nP-pp)
			for v := 0; v < nV; v++ {
				c[idx(pp, v, n)] = weight
			}
		}
	}

	row := 0

	// Quantity matching: sum_n d'[p][v][n] == sum_{n<D} shift[v][n].
	for p := 0; p < nP; p++ {
		for v := 0; v < nV; v++ {
			for n := 0; n < nN; n++ {
				A.Set(row, idx(p, v, n), 1)
			}
			rhs := 0.0
			for n := 0; n < nD; n++ {
				rhs += shift[v][n]
			}
			b[row] = rhs
			row++
		}
	}

	// Box upper bound: d'[p][v][n] + boundSlack == ub.
	for p := 0; p < nP; p++ {
		for v := 0; v < nV; v++ {
			for n := 0; n < nN; n++ {
				k := idx(p, v, n)
				A.Set(row, k, 1)
				A.Set(row, boundSlackBase+k, 1)
				b[row] = ub[k]
				row++
			}
		}
	}

	// Inventory bounds: L[n][p] <= S'[n][p] <= U[n][p], where
	// S'[n][p] = sum_{p'<=p, v} d'[p'][v][n].
	for n := 0; n < nN; n++ {
		nodeCapacity := inst.Nodes[n].Capacity
		for p := 0; p < nP; p++ {
			m := stockIdx(n, p)
			for pp := 0; pp <= p; pp++ {
				for v := 0; v < nV; v++ {
					A.Set(row, idx(pp, v, n), 1)
					A.Set(row+1, idx(pp, v, n), 1)
				}
			}
			lower := cumDemand[n][p] - inst.Nodes[n].InitQuantity + shiftCum[n][p]
			upper := nodeCapacity - inst.Nodes[n].InitQuantity + cumDemand[n][p] + shiftCum[n][p]

			A.Set(row, stockLowBase+m, -1)
			b[row] = lower
			row++

			A.Set(row, stockHighBase+m, 1)
			b[row] = upper
			row++
		}
	}

	z, x, err := lp.Simplex(c, A, b, 1e-9, nil)
	if err != nil {
		return Result{Feasible: false, Objective: Infeasible}, nil
	}

	delivery := make([][][]float64, nP)
	for p := 0; p < nP; p++ {
		delivery[p] = make([][]float64, nV)
		for v := 0; v < nV; v++ {
			delivery[p][v] = make([]float64, nN)
			for n := 0; n < nN; n++ {
				delivery[p][v][n] = x[idx(p, v, n)] - shift[v][n]
			}
		}
	}

	return Result{Feasible: true, Objective: z + constant, Delivery: delivery}, nil
}
