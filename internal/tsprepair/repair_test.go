package tsprepair

import (
	"context"
	"testing"

	"irpsolver/internal/routingcost"
	"irpsolver/internal/tspcache"
)

func square() *routingcost.Matrix {
	// depot(0,0), a(0,10), b(10,10), c(10,0) — a unit square, side 10.
	return routingcost.Build(
		[]float64{0, 0, 10, 10},
		[]float64{0, 10, 10, 0},
	)
}

func TestRepairEmptySubset(t *testing.T) {
	r := New(square(), nil, NearestNeighborTwoOpt{})
	tour, cost, err := r.Repair(context.Background(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 0}
	if len(tour) != 2 || tour[0] != want[0] || tour[1] != want[1] || cost != 0 {
		t.Fatalf("expected depot-depot route with cost 0, got tour=%v cost=%v", tour, cost)
	}
}

func TestRepairSingleCustomerIsTrivial2Cycle(t *testing.T) {
	r := New(square(), nil, NearestNeighborTwoOpt{})
	tour, cost, err := r.Repair(context.Background(), 0, []int{2})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 2, 0}
	if len(tour) != 3 || tour[0] != want[0] || tour[1] != want[1] || tour[2] != want[2] {
		t.Fatalf("want %v, got %v", want, tour)
	}
	if cost <= 0 {
		t.Fatalf("expected positive round-trip cost, got %v", cost)
	}
}

func TestRepairSquareFindsOptimalPerimeter(t *testing.T) {
	m := square()
	r := New(m, nil, NearestNeighborTwoOpt{})
	tour, cost, err := r.Repair(context.Background(), 0, []int{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(tour) != 5 {
		t.Fatalf("expected a 5-element closed tour, got %v", tour)
	}
	if tour[0] != 0 || tour[len(tour)-1] != 0 {
		t.Fatalf("tour must start and end at the depot: %v", tour)
	}
	// The perimeter of the 10x10 square is the optimum: 40.
	if cost != 40 {
		t.Fatalf("want optimal perimeter cost 40, got %v", cost)
	}
}

func TestRepairUsesAndPopulatesCache(t *testing.T) {
	m := square()
	backend := &countingBackend{inner: NearestNeighborTwoOpt{}}
	cache := tspcache.New(newMemBackend())
	r := New(m, cache, backend)
	ctx := context.Background()

	if _, _, err := r.Repair(ctx, 0, []int{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.Repair(ctx, 0, []int{3, 1, 2}); err != nil {
		t.Fatal(err)
	}
	if backend.calls != 1 {
		t.Fatalf("expected cache hit to avoid second solve, backend called %d times", backend.calls)
	}
}

type countingBackend struct {
	inner NearestNeighborTwoOpt
	calls int
}

func (b *countingBackend) Solve(ctx context.Context, m *routingcost.Matrix, nodes []int) ([]int, float64, error) {
	b.calls++
	return b.inner.Solve(ctx, m, nodes)
}

// memBackend is a minimal in-memory tspcache.Backend for tests that don't
// need file persistence.
type memBackend struct {
	entries map[string]tspcache.Tour
}

func newMemBackend() *memBackend { return &memBackend{entries: make(map[string]tspcache.Tour)} }

func (b *memBackend) Get(_ context.Context, fp string) (tspcache.Tour, bool, error) {
	t, ok := b.entries[fp]
	return t, ok, nil
}

func (b *memBackend) Put(_ context.Context, fp string, t tspcache.Tour) error {
	b.entries[fp] = t
	return nil
}

func (b *memBackend) Close() error { return nil }
