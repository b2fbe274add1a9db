package quantitylp

import (
	"math"
	"testing"

	"irpsolver/internal/model"
)

// singlePeriodInstance builds a depot + one customer, one vehicle, one
// period instance where the customer needs exactly 5 units delivered.
func singlePeriodInstance() *model.Instance {
	return &model.Instance{
		PeriodNum: 1,
		DepotNum:  1,
		Vehicles:  []model.Vehicle{{Capacity: 100}},
		Nodes: []model.Node{
			{Capacity: 1000, InitQuantity: 1000, Demands: []float64{0}},
			{Capacity: 20, InitQuantity: 0, MinLevel: 0, HoldingCost: 1, Demands: []float64{5}},
		},
	}
}

func allVisited(inst *model.Instance) [][]bool {
	visits := make([][]bool, inst.PeriodNum)
	for p := range visits {
		visits[p] = make([]bool, inst.NodeNum())
		for n := range visits[p] {
			visits[p][n] = true
		}
	}
	return visits
}

func TestSolveFeasibleDeliversEnoughToCoverDemand(t *testing.T) {
	inst := singlePeriodInstance()
	res, err := Solve(inst, allVisited(inst))
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Feasible {
		t.Fatalf("expected feasible LP")
	}
	delivered := res.Delivery[0][0][1]
	if delivered < 5-1e-6 {
		t.Fatalf("expected at least 5 units delivered to cover demand, got %v", delivered)
	}
	picked := -res.Delivery[0][0][0]
	if math.Abs(picked-delivered) > 1e-6 {
		t.Fatalf("depot pickup %v must match customer delivery %v", picked, delivered)
	}
}

func TestSolveInfeasibleWhenCustomerNotVisitedButNeedsStock(t *testing.T) {
	inst := singlePeriodInstance()
	inst.Nodes[1].MinLevel = 0
	visits := allVisited(inst)
	visits[0][1] = false // customer not visited but has demand and zero initial stock
	res, err := Solve(inst, visits)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Feasible {
		t.Fatalf("expected infeasible LP when a starving customer is skipped")
	}
	if res.Objective != Infeasible {
		t.Fatalf("expected sentinel objective %v, got %v", Infeasible, res.Objective)
	}
}

func TestSolveZeroDemandZeroVisitIsTriviallyFeasible(t *testing.T) {
	inst := singlePeriodInstance()
	inst.Nodes[1].Demands[0] = 0
	visits := allVisited(inst)
	visits[0][1] = false
	res, err := Solve(inst, visits)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !res.Feasible {
		t.Fatalf("expected feasible LP when no delivery is needed")
	}
	if res.Delivery[0][0][1] != 0 {
		t.Fatalf("expected zero delivery to an unvisited, zero-demand customer")
	}
}
