package routingcost

import "testing"

func TestBuildSymmetricAndZeroDiagonal(t *testing.T) {
	m := Build([]float64{0, 3, 0}, []float64{0, 4, 0})
	if m.At(0, 0) != 0 || m.At(1, 1) != 0 {
		t.Fatalf("diagonal must be zero")
	}
	if m.At(0, 1) != m.At(1, 0) {
		t.Fatalf("matrix must be symmetric")
	}
	if m.At(0, 1) != 5 {
		t.Fatalf("want 3-4-5 triangle distance 5, got %v", m.At(0, 1))
	}
	if m.At(0, 2) != 0 {
		t.Fatalf("duplicate coordinates must have zero distance")
	}
}

func TestTourCost(t *testing.T) {
	m := Build([]float64{0, 3}, []float64{0, 4})
	if got := m.TourCost([]int{0, 1, 0}); got != 10 {
		t.Fatalf("want 10, got %v", got)
	}
}
