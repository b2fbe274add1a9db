package mipengine

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// BranchAndBound is the default Engine: LP-relaxation branch-and-bound over
// gonum's simplex, with a bounded worker pool exploring the enumeration
// tree concurrently (spec.md §3's "MIP internal parallelism", up to
// Threads solver threads per invocation). Branching fixes a variable to 0
// or 1 by appending an equality row rather than mutating variable bounds,
// mirroring how quantitylp folds bounds into the same equality-form
// tableau gonum's Simplex requires.
type BranchAndBound struct {
	Threads int
	Tol     float64
}

type fixConstraint struct {
	varIdx int
	value  float64
}

type bbNode struct {
	fixed []fixConstraint
	cuts  []Cut
}

func (n bbNode) child(fix fixConstraint) bbNode {
	fixed := make([]fixConstraint, len(n.fixed), len(n.fixed)+1)
	copy(fixed, n.fixed)
	fixed = append(fixed, fix)
	return bbNode{fixed: fixed, cuts: n.cuts}
}

func (n bbNode) withCut(cut Cut) bbNode {
	cuts := make([]Cut, len(n.cuts), len(n.cuts)+1)
	copy(cuts, n.cuts)
	cuts = append(cuts, cut)
	return bbNode{fixed: n.fixed, cuts: cuts}
}

// solve builds the node's extended tableau (root constraints, plus one
// equality row per fixed variable, plus one equality-with-slack row per
// accumulated cut) and solves its LP relaxation.
func (n bbNode) solve(prob Problem, tol float64) (x []float64, z float64, ok bool) {
	baseVars := len(prob.C)
	nCuts := len(n.cuts)
	totalVars := baseVars + nCuts
	baseRows, _ := prob.A.Dims()
	totalRows := baseRows + len(n.fixed) + nCuts

	c := make([]float64, totalVars)
	copy(c, prob.C)

	A := mat.NewDense(totalRows, totalVars, nil)
	A.Slice(0, baseRows, 0, baseVars).(*mat.Dense).Copy(prob.A)
	b := make([]float64, totalRows)
	copy(b, prob.B)

	row := baseRows
	for _, fx := range n.fixed {
		A.Set(row, fx.varIdx, 1)
		b[row] = fx.value
		row++
	}
	for ci, cut := range n.cuts {
		for j, coeff := range cut.Row {
			A.Set(row, j, coeff)
		}
		A.Set(row, baseVars+ci, 1)
		b[row] = cut.Rhs
		row++
	}

	z, xExt, err := lp.Simplex(c, A, b, tol, nil)
	if err != nil {
		return nil, 0, false
	}
	return xExt[:baseVars], z, true
}

func isIntFeasible(prob Problem, x []float64, tol float64) bool {
	for i, integer := range prob.Integer {
		if !integer {
			continue
		}
		v := x[i]
		if math.Abs(v-math.Round(v)) > tol {
			return false
		}
	}
	return true
}

func firstFractional(prob Problem, x []float64, tol float64) (int, bool) {
	for i, integer := range prob.Integer {
		if !integer {
			continue
		}
		v := x[i]
		if math.Abs(v-math.Round(v)) > tol {
			return i, true
		}
	}
	return -1, false
}

type bbShared struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []bbNode
	pending int
	done    bool

	hasIncumbent bool
	incumbentX   []float64
	incumbentZ   float64
}

func newBBShared() *bbShared {
	s := &bbShared{incumbentZ: math.Inf(1)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *bbShared) push(n bbNode) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.pending++
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *bbShared) finishOne() {
	s.mu.Lock()
	s.pending--
	if s.pending == 0 {
		s.done = true
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

func (s *bbShared) pop() (bbNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 && !s.done {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return bbNode{}, false
	}
	n := s.queue[len(s.queue)-1]
	s.queue = s.queue[:len(s.queue)-1]
	return n, true
}

func (s *bbShared) incumbentBound() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incumbentZ
}

func (s *bbShared) tryAccept(x []float64, z float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z >= s.incumbentZ {
		return false
	}
	s.hasIncumbent = true
	s.incumbentZ = z
	s.incumbentX = append([]float64(nil), x...)
	return true
}

func (s *bbShared) stop() {
	s.mu.Lock()
	s.done = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Solve implements Engine.
func (bb *BranchAndBound) Solve(ctx context.Context, prob Problem, cb Callback) (Solution, error) {
	threads := bb.Threads
	if threads < 1 {
		threads = 1
	}
	tol := bb.Tol
	if tol <= 0 {
		tol = 1e-7
	}

	shared := newBBShared()
	shared.push(bbNode{})

	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					shared.stop()
					return
				default:
				}
				node, ok := shared.pop()
				if !ok {
					return
				}
				bb.process(prob, node, shared, cb, tol)
				shared.finishOne()
			}
		}()
	}
	wg.Wait()

	if !shared.hasIncumbent {
		return Solution{Feasible: false}, nil
	}
	return Solution{X: shared.incumbentX, Z: shared.incumbentZ, Feasible: true}, nil
}

func (bb *BranchAndBound) process(prob Problem, node bbNode, shared *bbShared, cb Callback, tol float64) {
	x, z, ok := node.solve(prob, tol)
	if !ok {
		return
	}
	if z >= shared.incumbentBound() {
		return
	}
	if !isIntFeasible(prob, x, tol) {
		i, _ := firstFractional(prob, x, tol)
		shared.push(node.child(fixConstraint{varIdx: i, value: 0}))
		shared.push(node.child(fixConstraint{varIdx: i, value: 1}))
		return
	}
	if cb != nil {
		if cut, accept := cb.OnIncumbent(x, z); !accept {
			if cut != nil {
				shared.push(node.withCut(*cut))
			}
			return
		}
	}
	shared.tryAccept(x, z)
}
