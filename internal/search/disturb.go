package search

import (
	"context"
	"math/rand"

	"irpsolver/internal/model"
	"irpsolver/internal/quantitylp"
	"irpsolver/internal/tabu"
	"irpsolver/internal/tsprepair"
)

// disturb applies a burst of random ADD/MOV/DEL operations to cur (spec.md
// §4.8's "disturb"), each validated against QuantityLp before being kept,
// repeating the burst until the resulting state escapes tabu or ctx expires.
func disturb(ctx context.Context, rng *rand.Rand, inst *model.Instance, mem *tabu.Memory, repair *tsprepair.TspRepair, cur *state) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		nAdd := 2 + rng.Intn(2)
		nMov := 4 + rng.Intn(3)
		nDel := 1 + rng.Intn(2)

		for i := 0; i < nAdd; i++ {
			tryDisturbMove(ctx, rng, inst, mem, repair, cur, randomAdd)
		}
		for i := 0; i < nMov; i++ {
			tryDisturbMove(ctx, rng, inst, mem, repair, cur, randomMov)
		}
		for i := 0; i < nDel; i++ {
			tryDisturbMove(ctx, rng, inst, mem, repair, cur, randomDel)
		}

		if !mem.IsTabu(cur.visits) {
			return
		}
	}
}

// candidatePicker draws one random move of a fixed type against the current
// visit matrix, or reports ok=false if no such move exists (e.g. every
// customer is already visited in every period, so no ADD is possible).
type candidatePicker func(rng *rand.Rand, inst *model.Instance, visits [][]bool) (tabu.Move, bool)

func randomAdd(rng *rand.Rand, inst *model.Instance, visits [][]bool) (tabu.Move, bool) {
	var choices []tabu.Move
	for p := 0; p < inst.PeriodNum; p++ {
		for n := inst.DepotNum; n < inst.NodeNum(); n++ {
			if !visits[p][n] {
				choices = append(choices, tabu.Add(p, n))
			}
		}
	}
	if len(choices) == 0 {
		return tabu.Move{}, false
	}
	return choices[rng.Intn(len(choices))], true
}

func randomDel(rng *rand.Rand, inst *model.Instance, visits [][]bool) (tabu.Move, bool) {
	var choices []tabu.Move
	for p := 0; p < inst.PeriodNum; p++ {
		for n := inst.DepotNum; n < inst.NodeNum(); n++ {
			if visits[p][n] {
				choices = append(choices, tabu.Del(p, n))
			}
		}
	}
	if len(choices) == 0 {
		return tabu.Move{}, false
	}
	return choices[rng.Intn(len(choices))], true
}

func randomMov(rng *rand.Rand, inst *model.Instance, visits [][]bool) (tabu.Move, bool) {
	var choices []tabu.Move
	for n := inst.DepotNum; n < inst.NodeNum(); n++ {
		for pFrom := 0; pFrom < inst.PeriodNum; pFrom++ {
			if !visits[pFrom][n] {
				continue
			}
			for pTo := 0; pTo < inst.PeriodNum; pTo++ {
				if pTo != pFrom && !visits[pTo][n] {
					choices = append(choices, tabu.Mov(pFrom, pTo, n))
				}
			}
		}
	}
	if len(choices) == 0 {
		return tabu.Move{}, false
	}
	return choices[rng.Intn(len(choices))], true
}

// tryDisturbMove draws one random move via pick, applies it tentatively,
// validates it with QuantityLp, and keeps it (repairing affected tours and
// committing it to tabu memory) only if the resulting state is feasible.
func tryDisturbMove(ctx context.Context, rng *rand.Rand, inst *model.Instance, mem *tabu.Memory, repair *tsprepair.TspRepair, cur *state, pick candidatePicker) {
	move, ok := pick(rng, inst, cur.visits)
	if !ok {
		return
	}

	trial := cloneVisits(cur.visits)
	applyMoveBits(trial, move)

	res, err := quantitylp.Solve(inst, trial)
	if err != nil || !res.Feasible {
		return
	}

	affected := map[int]bool{}
	for _, b := range move.Off {
		affected[b.P] = true
	}
	for _, b := range move.On {
		affected[b.P] = true
	}

	cur.visits = trial
	for p := range affected {
		var customers []int
		for n := inst.DepotNum; n < inst.NodeNum(); n++ {
			if cur.visits[p][n] {
				customers = append(customers, n)
			}
		}
		tour, price, err := repair.Repair(ctx, 0, customers)
		if err != nil {
			continue
		}
		cur.periods[p] = periodState{tour: tour, price: price}
	}

	total := res.Objective
	for _, p := range cur.periods {
		total += p.price
	}
	cur.cost = total

	mem.Commit(move)
}
