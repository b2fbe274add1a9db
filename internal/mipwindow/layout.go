package mipwindow

import (
	"math"
	"sort"

	"irpsolver/internal/model"
)

// layout assigns a stable column index to every delivery and routing-edge
// variable in a window model, and knows how to replay the exact same
// enumeration order to read values back out of a solved x vector.
type layout struct {
	inst *model.Instance

	nP, nV, nN, nD int
	activeList     []int
	active         map[int]bool

	nDeliveryVars int
	nEdgeVars     int

	q     [][]float64 // q[v][n] = min(vehicle capacity, node capacity)
	shift [][]float64 // shift[v][n] = q[v][n] for depots, else 0
}

func newLayout(inst *model.Instance, active []int) *layout {
	nP, nV, nN, nD := inst.PeriodNum, inst.VehicleNum(), inst.NodeNum(), inst.DepotNum

	activeList := append([]int(nil), active...)
	sort.Ints(activeList)
	activeSet := make(map[int]bool, len(activeList))
	for _, p := range activeList {
		activeSet[p] = true
	}

	q := make([][]float64, nV)
	shift := make([][]float64, nV)
	for v := 0; v < nV; v++ {
		q[v] = make([]float64, nN)
		shift[v] = make([]float64, nN)
		for n := 0; n < nN; n++ {
			q[v][n] = math.Min(inst.Vehicles[v].Capacity, inst.Nodes[n].Capacity)
			if n < nD {
				shift[v][n] = q[v][n]
			}
		}
	}

	return &layout{
		inst:          inst,
		nP:            nP,
		nV:            nV,
		nN:            nN,
		nD:            nD,
		activeList:    activeList,
		active:        activeSet,
		nDeliveryVars: nP * nV * nN,
		nEdgeVars:     len(activeList) * nV * nN * (nN - 1),
		q:             q,
		shift:         shift,
	}
}

// deliveryIdx returns the column of d'[p][v][n], the shifted delivery
// variable (see quantitylp for the identical shift convention).
func (l *layout) deliveryIdx(p, v, n int) int {
	return (p*l.nV+v)*l.nN + n
}

// edgeIdx returns the column of x[p][v][n][m] for an active period p. The
// enumeration order (p over activeList, then v, then n, then m != n) must
// match forEachEdge exactly.
func (l *layout) edgeIdx(p, v, n, m int) int {
	pos := sort.SearchInts(l.activeList, p)
	base := l.nDeliveryVars + ((pos*l.nV+v)*l.nN+n)*(l.nN-1)
	if m > n {
		return base + m - 1
	}
	return base + m
}

func (l *layout) totalBaseVars() int {
	return l.nDeliveryVars + l.nEdgeVars
}

// forEachEdge iterates every edge variable of the model in edgeIdx's
// canonical order, reading its value from x.
func (l *layout) forEachEdge(x []float64, fn func(p, v, n, m int, val float64)) {
	for _, p := range l.activeList {
		for v := 0; v < l.nV; v++ {
			for n := 0; n < l.nN; n++ {
				for m := 0; m < l.nN; m++ {
					if m == n {
						continue
					}
					fn(p, v, n, m, x[l.edgeIdx(p, v, n, m)])
				}
			}
		}
	}
}

// delivery reconstructs the actual (unshifted) delivery quantity for
// (p,v,n) from a solved x vector.
func (l *layout) delivery(x []float64, p, v, n int) float64 {
	return x[l.deliveryIdx(p, v, n)] - l.shift[v][n]
}
