package mipengine

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// knapsackProblem builds a small 0/1 knapsack whose LP relaxation is
// fractional, forcing at least one branch: maximize 3x1+2x2 subject to
// 4x1+3x2<=5, x1,x2<=1. Encoded as minimize -3x1-2x2 with explicit slack
// rows for the capacity and the two upper bounds.
func knapsackProblem() Problem {
	// vars: x1, x2, capacitySlack, ub1Slack, ub2Slack
	A := mat.NewDense(3, 5, []float64{
		4, 3, 1, 0, 0,
		1, 0, 0, 1, 0,
		0, 1, 0, 0, 1,
	})
	return Problem{
		C:       []float64{-3, -2, 0, 0, 0},
		A:       A,
		B:       []float64{5, 1, 1},
		Integer: []bool{true, true, false, false, false},
	}
}

func TestBranchAndBoundFindsIntegerOptimum(t *testing.T) {
	bb := &BranchAndBound{Threads: 2, Tol: 1e-6}
	sol, err := bb.Solve(context.Background(), knapsackProblem(), nil)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !sol.Feasible {
		t.Fatalf("expected a feasible integer solution")
	}
	if math.Abs(sol.Z-(-3)) > 1e-6 {
		t.Fatalf("want objective -3, got %v (x=%v)", sol.Z, sol.X)
	}
	if math.Abs(sol.X[0]-1) > 1e-6 || math.Abs(sol.X[1]) > 1e-6 {
		t.Fatalf("want x=(1,0), got %v", sol.X)
	}
}

// forbidFirstItem is a Callback that vetoes every incumbent using item 1
// (as MipWindowSolver's subtour check vetoes every incumbent containing an
// infeasible route), always cutting x1 back to 0 for that branch.
type forbidFirstItem struct{}

func (forbidFirstItem) OnIncumbent(x []float64, z float64) (*Cut, bool) {
	if x[0] > 0.5 {
		return &Cut{Row: []float64{1, 0, 0, 0, 0}, Rhs: 0}, false
	}
	return nil, true
}

func TestBranchAndBoundHonorsLazyCutFromCallback(t *testing.T) {
	bb := &BranchAndBound{Threads: 2, Tol: 1e-6}
	sol, err := bb.Solve(context.Background(), knapsackProblem(), forbidFirstItem{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if !sol.Feasible {
		t.Fatalf("expected a feasible integer solution even after the cut")
	}
	if sol.X[0] > 1e-6 {
		t.Fatalf("cut should have excluded every solution with x1=1, got x=%v", sol.X)
	}
	// With item 1 always cut, the best remaining integer solution is x2=1.
	if math.Abs(sol.X[1]-1) > 1e-6 {
		t.Fatalf("want x2=1 once item 1 is excluded, got x=%v", sol.X)
	}
}
