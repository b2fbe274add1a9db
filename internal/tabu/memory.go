// Package tabu implements the three-hash Bloom-style tabu memory described
// in spec.md §3/§4.5: a visit matrix is tabu once all three of its hashes
// land on a set bit. Hashes are tracked incrementally as moves are applied,
// with an exact-delta guarantee against full recomputation.
package tabu

import "math"

// MoveType tags which neighborhood operator produced a Move.
type MoveType int

const (
	MoveADD MoveType = iota
	MoveDEL
	MoveMOV
	MoveSWP
)

// bit is a (period, node) coordinate in the visit matrix.
type bit struct {
	P, N int
}

// Move describes the visit-matrix bits a candidate flips: Off bits go
// 1->0, On bits go 0->1. DEL/ADD carry one bit each, MOV carries one of
// each, SWP carries two of each (spec.md §3's Move descriptor).
type Move struct {
	Type MoveType
	Off  []bit
	On   []bit
}

// Del builds the Move for DEL(p,n): visits[p][n] 1->0.
func Del(p, n int) Move { return Move{Type: MoveDEL, Off: []bit{{p, n}}} }

// Add builds the Move for ADD(p,n): visits[p][n] 0->1. ADD only appears in
// disturbance (spec.md §3).
func Add(p, n int) Move { return Move{Type: MoveADD, On: []bit{{p, n}}} }

// Mov builds the Move for MOV(p1->p2, n).
func Mov(pFrom, pTo, n int) Move {
	return Move{Type: MoveMOV, Off: []bit{{pFrom, n}}, On: []bit{{pTo, n}}}
}

// Swp builds the Move for SWP((p1,n1),(p2,n2)).
func Swp(p1, n1, p2, n2 int) Move {
	return Move{
		Type: MoveSWP,
		Off:  []bit{{p1, n1}, {p2, n2}},
		On:   []bit{{p1, n2}, {p2, n1}},
	}
}

// Memory is the three-bit-array tabu store. Bits are only ever set, never
// unset (spec.md §3): a state that becomes tabu stays tabu for the run.
type Memory struct {
	nodeNum int
	size    uint64 // B, a power of two
	gamma   [3]float64

	h1, h2, h3 []bool
	hv         [3]uint64 // running hash triple for the committed state
}

// New builds a Memory with bit-array size bitSize (must be a power of two)
// and three distinct exponents.
func New(bitSize int, gamma1, gamma2, gamma3 float64, nodeNum int) *Memory {
	return &Memory{
		nodeNum: nodeNum,
		size:    uint64(bitSize),
		gamma:   [3]float64{gamma1, gamma2, gamma3},
		h1:      make([]bool, bitSize),
		h2:      make([]bool, bitSize),
		h3:      make([]bool, bitSize),
	}
}

func (m *Memory) term(p, n int, k int) uint64 {
	return uint64(math.Floor(math.Pow(float64(p*m.nodeNum+n), m.gamma[k])))
}

// fullHash recomputes hashₖ from scratch over the entire visit matrix, per
// spec.md §3: hashₖ = (Σ_{visits[p][n]=1} floor((p*N+n)^γₖ)) mod B.
func (m *Memory) fullHash(visits [][]bool, k int) uint64 {
	var sum uint64
	for p, row := range visits {
		for n, v := range row {
			if v {
				sum += m.term(p, n, k)
			}
		}
	}
	return sum % m.size
}

// IsTabu recomputes all three hashes from scratch and reports whether the
// state is tabu.
func (m *Memory) IsTabu(visits [][]bool) bool {
	h1 := m.fullHash(visits, 0)
	h2 := m.fullHash(visits, 1)
	h3 := m.fullHash(visits, 2)
	return m.h1[h1] && m.h2[h2] && m.h3[h3]
}

// delta returns the exact three-way hash shift move produces, i.e. what
// hash(post_move_visits) - hash(pre_move_visits) would be mod B, computed
// without touching the persistent hash triple.
func (m *Memory) delta(move Move) [3]int64 {
	var d [3]int64
	for k := 0; k < 3; k++ {
		var delta int64
		for _, b := range move.Off {
			delta -= int64(m.term(b.P, b.N, k))
		}
		for _, b := range move.On {
			delta += int64(m.term(b.P, b.N, k))
		}
		d[k] = delta
	}
	return d
}

func (m *Memory) shifted(base uint64, delta int64) uint64 {
	sz := int64(m.size)
	v := (int64(base%m.size) + delta) % sz
	if v < 0 {
		v += sz
	}
	return uint64(v)
}

// IsTabuWithMove tests, without committing, whether applying move to the
// currently-committed state would land on a tabu bucket in all three
// arrays. It is guaranteed to be exactly the delta a full IsTabu
// recomputation of the post-move visit matrix would produce.
func (m *Memory) IsTabuWithMove(move Move) bool {
	d := m.delta(move)
	h1 := m.shifted(m.hv[0], d[0])
	h2 := m.shifted(m.hv[1], d[1])
	h3 := m.shifted(m.hv[2], d[2])
	return m.h1[h1] && m.h2[h2] && m.h3[h3]
}

// Commit applies move to the running hash triple and sets the three bits
// for the resulting state.
func (m *Memory) Commit(move Move) {
	d := m.delta(move)
	m.hv[0] = m.shifted(m.hv[0], d[0])
	m.hv[1] = m.shifted(m.hv[1], d[1])
	m.hv[2] = m.shifted(m.hv[2], d[2])
	m.h1[m.hv[0]] = true
	m.h2[m.hv[1]] = true
	m.h3[m.hv[2]] = true
}

// CommitState recomputes the running hash triple from a full visit matrix
// (used after a disturbance/restart or a MIP incumbent import, where no
// single incremental Move describes the transition) and sets its bits.
func (m *Memory) CommitState(visits [][]bool) {
	m.hv[0] = m.fullHash(visits, 0)
	m.hv[1] = m.fullHash(visits, 1)
	m.hv[2] = m.fullHash(visits, 2)
	m.h1[m.hv[0]] = true
	m.h2[m.hv[1]] = true
	m.h3[m.hv[2]] = true
}
