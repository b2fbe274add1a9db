package tabu

import "testing"

func cloneVisits(v [][]bool) [][]bool {
	out := make([][]bool, len(v))
	for i, row := range v {
		out[i] = append([]bool(nil), row...)
	}
	return out
}

func applyMove(visits [][]bool, move Move) [][]bool {
	out := cloneVisits(visits)
	for _, b := range move.Off {
		out[b.P][b.N] = false
	}
	for _, b := range move.On {
		out[b.P][b.N] = true
	}
	return out
}

// baseVisits builds a 3-period, 5-node (1 depot + 4 customer) matrix with a
// handful of visits set.
func baseVisits() [][]bool {
	v := [][]bool{
		{true, true, false, true, false},
		{true, false, true, false, true},
		{true, true, true, false, false},
	}
	return v
}

func TestIncrementalHashMatchesFullRecompute(t *testing.T) {
	moves := []Move{
		Del(0, 1),
		Add(1, 3),
		Mov(2, 0, 2),
		Swp(0, 3, 1, 2),
	}
	for _, move := range moves {
		visits := baseVisits()
		mem := New(1<<10, 0.5, 1.3, 1.8, 5)
		mem.CommitState(visits)

		after := applyMove(visits, move)
		d := mem.delta(move)
		for k := 0; k < 3; k++ {
			gotBucket := mem.shifted(mem.hv[k], d[k])
			wantBucket := mem.fullHash(after, k)
			if gotBucket != wantBucket {
				t.Fatalf("move %+v hash %d: incremental bucket %d != full recompute bucket %d", move, k, gotBucket, wantBucket)
			}
		}
	}
}

func TestCommitThenIsTabuAgreesWithFullState(t *testing.T) {
	visits := baseVisits()
	mem := New(1<<10, 0.5, 1.3, 1.8, 5)
	mem.CommitState(visits)

	move := Mov(1, 2, 4)
	mem.Commit(move)
	after := applyMove(visits, move)

	if !mem.IsTabu(after) {
		t.Fatalf("state must be tabu against itself immediately after commit")
	}
}

func TestSwpMoveFlipsExactlyFourBits(t *testing.T) {
	visits := baseVisits()
	move := Swp(0, 3, 1, 2)
	if len(move.Off) != 2 || len(move.On) != 2 {
		t.Fatalf("SWP must carry exactly two Off and two On bits, got %+v", move)
	}
	after := applyMove(visits, move)
	if after[0][3] || after[1][2] || !after[0][2] || !after[1][3] {
		t.Fatalf("SWP((0,3),(1,2)) did not swap the expected four bits: %v", after)
	}
}

func TestBitsAreMonotoneOnceSet(t *testing.T) {
	mem := New(1<<8, 0.5, 1.3, 1.8, 5)
	visits := baseVisits()
	mem.CommitState(visits)

	setBefore := append([]bool(nil), mem.h1...)
	mem.Commit(Del(0, 1))
	for i, was := range setBefore {
		if was && !mem.h1[i] {
			t.Fatalf("bit %d was cleared after commit; bits must only ever be set", i)
		}
	}
}
