// Package mipengine defines the pluggable MIP black box spec.md treats as
// an external collaborator, plus a shipped LP-relaxation branch-and-bound
// default so the module is runnable without a commercial solver.
package mipengine

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Problem is a mixed-integer program in standard equality form: minimize
// C'x subject to Ax = B, x >= 0, with Integer[i] marking the binary
// variables (spec.md's window models only ever branch on 0/1 visit and
// route-arc variables).
type Problem struct {
	C       []float64
	A       *mat.Dense
	B       []float64
	Integer []bool
}

// Cut is a single lazy linear inequality, expressed as Row·x <= Rhs, that
// the MipWindowSolver adds when an incumbent's routing arcs contain a
// subtour (spec.md §4.7's "lazy subtour elimination").
type Cut struct {
	Row []float64
	Rhs float64
}

// Callback lets the caller inspect every integer-feasible incumbent the
// engine finds. Returning accept=false with a non-nil cut rejects the
// incumbent and continues the search under the added constraint; returning
// accept=true lets the engine treat it as a legitimate incumbent.
type Callback interface {
	OnIncumbent(x []float64, z float64) (cut *Cut, accept bool)
}

// Solution is the best integer-feasible point the engine found, or
// Feasible=false if the root relaxation itself was infeasible or the
// context was cancelled before any incumbent was accepted.
type Solution struct {
	X        []float64
	Z        float64
	Feasible bool
}

// Engine is the pluggable MIP black box. MipWindowSolver drives it with the
// window/full model of spec.md §4.7 and a Callback that runs subtour
// detection against the current arc solution.
type Engine interface {
	Solve(ctx context.Context, prob Problem, cb Callback) (Solution, error)
}
