package search

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"irpsolver/internal/mipengine"
	"irpsolver/internal/model"
	"irpsolver/internal/routingcost"
	"irpsolver/internal/tabu"
	"irpsolver/internal/tsprepair"
)

// lineInstance mirrors the neighborhood package's test fixture: a depot and
// three customers on a line, ample vehicle capacity, two periods.
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

func bbFactory(threads int) mipengine.Engine {
	return &mipengine.BranchAndBound{Threads: threads, Tol: 1e-6}
}

func TestSolveIsAnytimeUnderNearZeroDeadline(t *testing.T) {
	inst, m := lineInstance()
	c := New(inst, m, nil, tsprepair.NearestNeighborTwoOpt{}, bbFactory, DefaultOptions())

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()

	start := time.Now()
	sln, err := c.Solve(ctx)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if sln == nil {
		t.Fatalf("expected a non-nil solution even under a near-zero deadline")
	}
	if len(sln.PeriodRoutes) != inst.PeriodNum {
		t.Fatalf("expected %d period routes, got %d", inst.PeriodNum, len(sln.PeriodRoutes))
	}
	if elapsed > 5*time.Second {
		t.Fatalf("expected an immediate return under a near-zero deadline, took %v", elapsed)
	}
}

// TestTabuSearchLoopNeverWorsensBest exercises mixTabuSearch directly
// (Invariant 4: the bestCost sequence is monotonically non-increasing)
// starting from an all-visited feasible state where DEL moves have room to
// improve on holding cost without breaking feasibility.
func TestTabuSearchLoopNeverWorsensBest(t *testing.T) {
	inst, m := lineInstance()
	repair := tsprepair.New(m, nil, tsprepair.NearestNeighborTwoOpt{})

	visits := [][]bool{
		{true, true, true, true},
		{true, true, true, true},
	}
	cur := &state{visits: cloneVisits(visits), periods: make([]periodState, inst.PeriodNum)}
	for p := range cur.periods {
		tour, price, err := repair.Repair(context.Background(), 0, []int{1, 2, 3})
		if err != nil {
			t.Fatalf("Repair: %v", err)
		}
		cur.periods[p] = periodState{tour: tour, price: price}
	}
	c := &Controller{inst: inst, matrix: m, backend: tsprepair.NearestNeighborTwoOpt{}, opts: DefaultOptions()}
	cur.cost = c.totalCost(cur)
	if math.IsInf(cur.cost, 1) {
		t.Fatalf("expected the fully-visited starting state to be feasible")
	}
	best := cur.clone()

	mem := tabu.New(1<<12, 0.5, 1.3, 1.8, inst.NodeNum())
	rng := rand.New(rand.NewSource(7))

	prevBest := best.cost
	for i := 0; i < 5; i++ {
		c.tabuSearchLoop(context.Background(), rng, mem, repair, cur, best)
		if best.cost > prevBest+1e-9 {
			t.Fatalf("bestCost increased from %v to %v at round %d", prevBest, best.cost, i)
		}
		prevBest = best.cost
	}
}

// TestTourMatchesVisitsAndPriceMatchesMatrix exercises Invariant 3: for
// every period, the tour's customer set (everything but the depot) equals
// exactly the set of nodes visits marks as visited that period, and the
// stored price equals the routing matrix's cost of that tour.
func TestTourMatchesVisitsAndPriceMatchesMatrix(t *testing.T) {
	inst, m := lineInstance()
	repair := tsprepair.New(m, nil, tsprepair.NearestNeighborTwoOpt{})
	c := &Controller{inst: inst, matrix: m, backend: tsprepair.NearestNeighborTwoOpt{}, opts: DefaultOptions()}

	visits := [][]bool{
		{true, true, true, true},
		{true, true, false, true},
	}
	cur := &state{visits: cloneVisits(visits), periods: make([]periodState, inst.PeriodNum)}
	for p := range cur.periods {
		var customers []int
		for n := inst.DepotNum; n < inst.NodeNum(); n++ {
			if visits[p][n] {
				customers = append(customers, n)
			}
		}
		tour, price, err := repair.Repair(context.Background(), 0, customers)
		if err != nil {
			t.Fatalf("Repair: %v", err)
		}
		cur.periods[p] = periodState{tour: tour, price: price}
	}
	cur.cost = c.totalCost(cur)
	if math.IsInf(cur.cost, 1) {
		t.Fatal("expected a feasible starting state")
	}

	mem := tabu.New(1<<12, 0.5, 1.3, 1.8, inst.NodeNum())
	rng := rand.New(rand.NewSource(3))
	best := cur.clone()
	for i := 0; i < 5; i++ {
		c.tabuSearchLoop(context.Background(), rng, mem, repair, cur, best)
	}

	for p, ps := range cur.periods {
		var wantCustomers []int
		for n := inst.DepotNum; n < inst.NodeNum(); n++ {
			if cur.visits[p][n] {
				wantCustomers = append(wantCustomers, n)
			}
		}
		var gotCustomers []int
		for _, n := range ps.tour {
			if n != 0 {
				gotCustomers = append(gotCustomers, n)
			}
		}
		sort.Ints(wantCustomers)
		sort.Ints(gotCustomers)
		if !equalInts(wantCustomers, gotCustomers) {
			t.Fatalf("period %d: tour customers %v != visited customers %v", p, gotCustomers, wantCustomers)
		}

		wantPrice := m.TourCost(ps.tour)
		if math.Abs(wantPrice-ps.price) > 1e-9 {
			t.Fatalf("period %d: stored price %v != matrix.TourCost(tour) %v", p, ps.price, wantPrice)
		}
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
