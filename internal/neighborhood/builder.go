// Package neighborhood enumerates and ranks the DEL/MOV/SWP candidate moves
// the tabu search chooses from on each iteration (spec.md §4.6).
package neighborhood

import (
	"math"
	"sort"

	"irpsolver/internal/model"
	"irpsolver/internal/quantitylp"
	"irpsolver/internal/routingcost"
	"irpsolver/internal/tabu"
)

// Candidate is one ranked neighborhood move together with its evaluated
// cost breakdown.
type Candidate struct {
	Move      tabu.Move
	TourDelta float64
	LpDelta   float64
	TotalCost float64
}

// Builder holds the read-only context a neighborhood construction pass
// needs: the instance, its routing cost matrix, and the tabu memory used to
// prune candidates before the expensive LP evaluation step.
type Builder struct {
	inst    *model.Instance
	matrix  *routingcost.Matrix
	tabuMem *tabu.Memory
	epsilon float64
}

// New builds a Builder. epsilon is the numeric tolerance used for the
// strong-less / weak-equal comparisons in step 6 of spec.md §4.6.
func New(inst *model.Instance, matrix *routingcost.Matrix, tabuMem *tabu.Memory, epsilon float64) *Builder {
	return &Builder{inst: inst, matrix: matrix, tabuMem: tabuMem, epsilon: epsilon}
}

func strongLess(a, b, eps float64) bool { return a < b-eps }
func weakEqual(a, b, eps float64) bool  { return math.Abs(a-b) <= eps }

// delNodeTourCost estimates the routing-cost change of removing n from
// period p's tour: C[pre][succ] - C[n][pre] - C[n][succ].
func (b *Builder) delNodeTourCost(tour []int, n int) float64 {
	idx := indexOf(tour, n)
	pre, succ := tour[idx-1], tour[idx+1]
	return b.matrix.At(pre, succ) - b.matrix.At(n, pre) - b.matrix.At(n, succ)
}

// addNodeTourCost estimates the minimum-insertion-cost of adding n to a
// tour that does not currently contain it: min over edges (a,b) of
// C[a][n] + C[n][b] - C[a][b].
func (b *Builder) addNodeTourCost(tour []int, n int) float64 {
	best := math.Inf(1)
	for i := 0; i+1 < len(tour); i++ {
		a, c := tour[i], tour[i+1]
		delta := b.matrix.At(a, n) + b.matrix.At(n, c) - b.matrix.At(a, c)
		if delta < best {
			best = delta
		}
	}
	return best
}

func indexOf(tour []int, n int) int {
	for i, v := range tour {
		if v == n {
			return i
		}
	}
	return -1
}

func cloneVisits(visits [][]bool) [][]bool {
	out := make([][]bool, len(visits))
	for i, row := range visits {
		out[i] = append([]bool(nil), row...)
	}
	return out
}

// Build runs the full enumerate -> prune -> truncate -> evaluate -> filter
// pipeline of spec.md §4.6 and returns the surviving mixed-neighborhood
// candidate set.
func (b *Builder) Build(visits [][]bool, curTours [][]int, bestCost float64) []Candidate {
	nP := b.inst.PeriodNum
	nN := b.inst.NodeNum()
	nD := b.inst.DepotNum

	var delNeigh, movNeigh, swpNeigh []Candidate

	for n := nD; n < nN; n++ {
		var p0s, p1s []int
		for p := 0; p < nP; p++ {
			if visits[p][n] {
				p1s = append(p1s, p)
			} else {
				p0s = append(p0s, p)
			}
		}
		for _, p := range p1s {
			move := tabu.Del(p, n)
			delta := b.delNodeTourCost(curTours[p], n)
			if !b.tabuMem.IsTabuWithMove(move) {
				delNeigh = append(delNeigh, Candidate{Move: move, TourDelta: delta})
			}
		}
		for _, p0 := range p0s {
			for _, p1 := range p1s {
				move := tabu.Mov(p1, p0, n)
				delta := b.addNodeTourCost(curTours[p0], n) + b.delNodeTourCost(curTours[p1], n)
				if !b.tabuMem.IsTabuWithMove(move) {
					movNeigh = append(movNeigh, Candidate{Move: move, TourDelta: delta})
				}
			}
		}
	}

	for n := nD; n < nN; n++ {
		for m := n + 1; m < nN; m++ {
			var tvn, tvm []int
			for p := 0; p < nP; p++ {
				if visits[p][n] && !visits[p][m] {
					tvn = append(tvn, p)
				}
				if !visits[p][n] && visits[p][m] {
					tvm = append(tvm, p)
				}
			}
			for _, p1 := range tvn {
				for _, p2 := range tvm {
					move := tabu.Swp(p1, n, p2, m)
					delta := b.delNodeTourCost(curTours[p1], n) + b.delNodeTourCost(curTours[p2], m) +
						b.addNodeTourCost(curTours[p2], n) + b.addNodeTourCost(curTours[p1], m)
					if !b.tabuMem.IsTabuWithMove(move) {
						swpNeigh = append(swpNeigh, Candidate{Move: move, TourDelta: delta})
					}
				}
			}
		}
	}

	sortByTourDelta(delNeigh)
	sortByTourDelta(movNeigh)
	sortByTourDelta(swpNeigh)

	k := 2 * nP * int(math.Sqrt(float64(nN)))
	delNeigh = truncate(delNeigh, k)
	movNeigh = truncate(movNeigh, k)
	swpNeigh = truncate(swpNeigh, k)

	var mixNeigh []Candidate
	minCost := bestCost

	evaluate := func(cands []Candidate) {
		for _, cand := range cands {
			trial := cloneVisits(visits)
			applyMove(trial, cand.Move)

			res, err := quantitylp.Solve(b.inst, trial)
			if err != nil || !res.Feasible {
				continue
			}
			cand.LpDelta = res.Objective
			cand.TotalCost = cand.TourDelta + cand.LpDelta

			switch {
			case strongLess(cand.TotalCost, minCost, b.epsilon):
				minCost = cand.TotalCost
				mixNeigh = []Candidate{cand}
			case weakEqual(cand.TotalCost, minCost, b.epsilon):
				mixNeigh = append(mixNeigh, cand)
			}
		}
	}

	evaluate(delNeigh)
	evaluate(movNeigh)
	evaluate(swpNeigh)

	return mixNeigh
}

func applyMove(visits [][]bool, move tabu.Move) {
	for _, b := range move.Off {
		visits[b.P][b.N] = false
	}
	for _, b := range move.On {
		visits[b.P][b.N] = true
	}
}

func sortByTourDelta(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool { return cands[i].TourDelta < cands[j].TourDelta })
}

func truncate(cands []Candidate, k int) []Candidate {
	if k < 0 {
		k = 0
	}
	if len(cands) > k {
		return cands[:k]
	}
	return cands
}
