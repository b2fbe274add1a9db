package neighborhood

import (
	"testing"

	"irpsolver/internal/model"
	"irpsolver/internal/routingcost"
	"irpsolver/internal/tabu"
)

// lineInstance builds a depot + 3 customers on a line, 2 periods, ample
// capacity, so most moves are LP-feasible and the routing deltas are easy
// to reason about by hand.
func lineInstance() (*model.Instance, *routingcost.Matrix) {
	inst := &model.Instance{
		PeriodNum: 2,
		DepotNum:  1,
		Vehicles:  []model.Vehicle{{Capacity: 1000}},
		Nodes: []model.Node{
			{X: 0, Y: 0, Capacity: 10000, InitQuantity: 10000, Demands: []float64{0, 0}},
			{X: 10, Y: 0, Capacity: 100, InitQuantity: 50, HoldingCost: 1, Demands: []float64{5, 5}},
			{X: 20, Y: 0, Capacity: 100, InitQuantity: 50, HoldingCost: 1, Demands: []float64{5, 5}},
			{X: 30, Y: 0, Capacity: 100, InitQuantity: 50, HoldingCost: 1, Demands: []float64{5, 5}},
		},
	}
	m := routingcost.Build(
		[]float64{0, 10, 20, 30},
		[]float64{0, 0, 0, 0},
	)
	return inst, m
}

func TestBuildReturnsOnlyNonTabuCandidates(t *testing.T) {
	inst, m := lineInstance()
	mem := tabu.New(1<<12, 0.5, 1.3, 1.8, inst.NodeNum())

	visits := [][]bool{
		{true, true, true, false},
		{true, false, false, true},
	}
	mem.CommitState(visits)

	curTours := [][]int{
		{0, 1, 2, 0},
		{0, 3, 0},
	}

	b := New(inst, m, mem, 1e-6)
	cands := b.Build(visits, curTours, 1e18)

	for _, c := range cands {
		if mem.IsTabuWithMove(c.Move) {
			t.Fatalf("candidate %+v should have been pruned as tabu", c.Move)
		}
	}
}

func TestBuildFindsAnImprovingMoveWhenOneExists(t *testing.T) {
	inst, m := lineInstance()
	mem := tabu.New(1<<12, 0.5, 1.3, 1.8, inst.NodeNum())

	// Node 3 is visited in both periods even though it doesn't strictly
	// need it every period; DEL-ing it from one period should be able to
	// beat a deliberately generous bestCost ceiling.
	visits := [][]bool{
		{true, true, true, true},
		{true, false, false, true},
	}
	mem.CommitState(visits)

	curTours := [][]int{
		{0, 1, 2, 3, 0},
		{0, 3, 0},
	}

	b := New(inst, m, mem, 1e-6)
	cands := b.Build(visits, curTours, 1e18)
	if len(cands) == 0 {
		t.Fatalf("expected at least one candidate against a very loose bestCost ceiling")
	}
}
