// Package search implements the SearchController state machine of spec.md
// §4.8: INIT -> INITIAL_MIP -> WINDOW_MIP_3 -> WINDOW_MIP_2 (x2) ->
// TABU_SEARCH -> FINAL_SEARCH_LOOP -> EXTRACT_BEST -> DONE, run by an
// independent worker per thread group with no inter-worker communication.
package search

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"irpsolver/internal/logging"
	"irpsolver/internal/metrics"
	"irpsolver/internal/mipengine"
	"irpsolver/internal/mipwindow"
	"irpsolver/internal/model"
	"irpsolver/internal/neighborhood"
	"irpsolver/internal/quantitylp"
	"irpsolver/internal/routingcost"
	"irpsolver/internal/tabu"
	"irpsolver/internal/tspcache"
	"irpsolver/internal/tsprepair"
)

// Options configures a Controller run.
type Options struct {
	Jobs             int // total solver-thread budget across every worker
	ThreadsPerWorker int // MIP solver threads granted to each worker
	Seed             int64

	InitialMIPBudget time.Duration
	WindowMIPBudget  time.Duration
	SearchBudget     time.Duration // TABU_SEARCH + FINAL_SEARCH_LOOP, combined

	Alpha    int // tabu steps since the last improvement before a restart
	TabuBits int
	Gamma    [3]float64
	Epsilon  float64
}

// DefaultOptions returns the constants spec.md §4.7/§4.8 name explicitly,
// plus reasonable defaults for the values it leaves to the implementation.
func DefaultOptions() Options {
	return Options{
		Jobs:             1,
		ThreadsPerWorker: 4,
		InitialMIPBudget: 300 * time.Second,
		WindowMIPBudget:  120 * time.Second,
		SearchBudget:     2100 * time.Second,
		Alpha:            200,
		TabuBits:         1 << 16,
		Gamma:            [3]float64{0.5, 1.3, 1.8},
		Epsilon:          1e-6,
	}
}

// EngineFactory builds a fresh MipEngine bound to a solver-thread budget;
// Controller calls it for every MIP window solve with ThreadsPerWorker, so
// each worker's MIP calls stay within its own share of Jobs (spec.md §5's
// "MIP internal parallelism").
type EngineFactory func(threads int) mipengine.Engine

// Controller drives the full search over one Instance.
type Controller struct {
	inst    *model.Instance
	matrix  *routingcost.Matrix
	cache   *tspcache.Cache // shared across workers
	backend tsprepair.TspBackend
	engines EngineFactory
	opts    Options
}

// New builds a Controller.
func New(inst *model.Instance, matrix *routingcost.Matrix, cache *tspcache.Cache, backend tsprepair.TspBackend, engines EngineFactory, opts Options) *Controller {
	return &Controller{inst: inst, matrix: matrix, cache: cache, backend: backend, engines: engines, opts: opts}
}

// periodState is one period's routing outcome as the tabu phase understands
// it: a single depot-anchored cycle over the period's visited customers.
type periodState struct {
	tour  []int
	price float64
}

// state is one worker's current or best search point: a visit matrix, the
// routing outcome of every period, and the resulting total cost.
type state struct {
	visits  [][]bool
	periods []periodState
	cost    float64
}

func (s *state) clone() *state {
	return &state{visits: cloneVisits(s.visits), periods: append([]periodState(nil), s.periods...), cost: s.cost}
}

func (dst *state) assign(src *state) {
	dst.visits = cloneVisits(src.visits)
	dst.periods = append([]periodState(nil), src.periods...)
	dst.cost = src.cost
}

func cloneVisits(visits [][]bool) [][]bool {
	out := make([][]bool, len(visits))
	for i, row := range visits {
		out[i] = append([]bool(nil), row...)
	}
	return out
}

func applyMoveBits(visits [][]bool, move tabu.Move) {
	for _, b := range move.Off {
		visits[b.P][b.N] = false
	}
	for _, b := range move.On {
		visits[b.P][b.N] = true
	}
}

func allDepotVisits(inst *model.Instance) [][]bool {
	visits := make([][]bool, inst.PeriodNum)
	for p := range visits {
		row := make([]bool, inst.NodeNum())
		for n := 0; n < inst.DepotNum; n++ {
			row[n] = true
		}
		visits[p] = row
	}
	return visits
}

// Solve runs W = max(1, Jobs/ThreadsPerWorker) independent workers to
// completion or ctx cancellation and returns the best solution by total
// cost, per spec.md §5's worker-level parallelism model.
func (c *Controller) Solve(ctx context.Context) (*model.Solution, error) {
	workers := c.opts.Jobs / c.opts.ThreadsPerWorker
	if workers < 1 {
		workers = 1
	}

	type outcome struct {
		sln  *model.Solution
		cost float64
	}
	results := make([]outcome, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(c.opts.Seed + int64(id)*104729))
			sln, cost := c.runWorker(ctx, id, rng)
			results[id] = outcome{sln: sln, cost: cost}
		}(w)
	}
	wg.Wait()

	var best *model.Solution
	bestCost := math.Inf(1)
	for _, r := range results {
		if r.sln != nil && r.cost < bestCost {
			best, bestCost = r.sln, r.cost
		}
	}
	if best == nil {
		best = model.NewSolution(c.inst.PeriodNum, c.inst.VehicleNum())
	}
	return best, nil
}

// runWorker executes the full state machine for a single independent
// search: INIT, INITIAL_MIP, WINDOW_MIP_3, WINDOW_MIP_2 (x2), TABU_SEARCH,
// FINAL_SEARCH_LOOP, EXTRACT_BEST.
func (c *Controller) runWorker(ctx context.Context, workerID int, rng *rand.Rand) (*model.Solution, float64) {
	inst := c.inst
	nP, nN := inst.PeriodNum, inst.NodeNum()

	logging.WithPhase(workerID, "INIT").Info("worker starting", "periods", nP, "nodes", nN)
	metrics.Get().WorkerStarted()
	defer metrics.Get().WorkerStopped()

	repair := tsprepair.New(c.matrix, c.cache, c.backend)
	mem := tabu.New(c.opts.TabuBits, c.opts.Gamma[0], c.opts.Gamma[1], c.opts.Gamma[2], nN)

	cur := &state{visits: allDepotVisits(inst), periods: make([]periodState, nP), cost: math.Inf(1)}
	mem.CommitState(cur.visits)
	best := cur.clone()

	solveWindow := func(active []int, budget time.Duration) {
		if ctx.Err() != nil {
			return
		}
		wctx, cancel := context.WithTimeout(ctx, budget)
		defer cancel()

		engine := c.engines(c.opts.ThreadsPerWorker)
		mws := mipwindow.New(inst, c.matrix, engine, repair, mipwindow.CutBest, rng)

		prices := make([]float64, len(cur.periods))
		for i, p := range cur.periods {
			prices[i] = p.price
		}

		// MIP timeouts are non-fatal (spec.md §7): whatever incumbent was
		// reported through onImprove before wctx expired is kept regardless
		// of the returned error.
		_, _, _ = mws.Solve(wctx, active, cur.visits, prices, func(inc mipwindow.Incumbent) {
			c.mergeIncumbent(wctx, repair, cur, inc)
			if cur.cost < best.cost {
				best.assign(cur)
			}
		})
	}

	// INITIAL_MIP
	logging.WithPhase(workerID, "INITIAL_MIP").Debug("solving full-horizon window")
	all := make([]int, nP)
	for i := range all {
		all[i] = i
	}
	solveWindow(all, c.opts.InitialMIPBudget)

	// WINDOW_MIP_3
	logging.WithPhase(workerID, "WINDOW_MIP_3").Debug("sweeping 3-period windows")
	for p := 0; p+2 < nP && ctx.Err() == nil; p++ {
		solveWindow([]int{p, p + 1, p + 2}, c.opts.WindowMIPBudget)
	}

	// WINDOW_MIP_2, two passes
	logging.WithPhase(workerID, "WINDOW_MIP_2").Debug("sweeping 2-period windows", "passes", 2)
	for pass := 0; pass < 2; pass++ {
		for p := 0; p+1 < nP && ctx.Err() == nil; p++ {
			solveWindow([]int{p, p + 1}, c.opts.WindowMIPBudget)
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, c.opts.SearchBudget)
	defer cancel()

	// TABU_SEARCH
	logging.WithPhase(workerID, "TABU_SEARCH").Debug("starting tabu search", "best_cost", best.cost)
	c.tabuSearchLoop(searchCtx, rng, mem, repair, cur, best)

	// FINAL_SEARCH_LOOP: decaying restart probability, disturb, tabu again.
	log := logging.WithPhase(workerID, "FINAL_SEARCH_LOOP")
	for i := 0; searchCtx.Err() == nil; i++ {
		pi := math.Max(0.5, math.Pow(0.99, float64(i)))
		if rng.Float64() < pi {
			cur.assign(best)
		}
		disturb(searchCtx, rng, inst, mem, repair, cur)
		c.tabuSearchLoop(searchCtx, rng, mem, repair, cur, best)
		if i%50 == 0 {
			log.Debug("restart round", "round", i, "best_cost", best.cost)
			metrics.Get().SetBestCost(strconv.Itoa(workerID), best.cost)
		}
	}

	// EXTRACT_BEST
	logging.WithPhase(workerID, "EXTRACT_BEST").Info("worker done", "best_cost", best.cost)
	sln, err := c.buildSolution(best)
	if err != nil {
		return model.NewSolution(inst.PeriodNum, inst.VehicleNum()), math.Inf(1)
	}
	return sln, best.cost
}

// tabuSearchLoop is mixTabuSearch (spec.md §4.8): build the neighborhood,
// pick one candidate uniformly, apply it, and keep going until α
// consecutive non-improving steps or the neighborhood runs dry.
func (c *Controller) tabuSearchLoop(ctx context.Context, rng *rand.Rand, mem *tabu.Memory, repair *tsprepair.TspRepair, cur, best *state) {
	mem.CommitState(cur.visits)
	builder := neighborhood.New(c.inst, c.matrix, mem, c.opts.Epsilon)

	stepsSinceImprove := 0
	for stepsSinceImprove < c.opts.Alpha {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tours := make([][]int, len(cur.periods))
		for i, p := range cur.periods {
			tours[i] = p.tour
		}
		cands := builder.Build(cur.visits, tours, best.cost)
		if len(cands) == 0 {
			return
		}

		cand := cands[rng.Intn(len(cands))]
		if !c.applyCandidate(ctx, repair, cur, cand) {
			stepsSinceImprove++
			continue
		}
		mem.Commit(cand.Move)

		if cur.cost < best.cost {
			best.assign(cur)
			stepsSinceImprove = 0
		} else {
			stepsSinceImprove++
		}
	}
}

// applyCandidate flips a candidate's move bits, repairs only the affected
// periods' tours, and recomputes cur.cost from the candidate's own LP
// objective (already solved for exactly this post-move visit matrix) plus
// every period's current tour price.
func (c *Controller) applyCandidate(ctx context.Context, repair *tsprepair.TspRepair, cur *state, cand neighborhood.Candidate) bool {
	affected := map[int]bool{}
	for _, b := range cand.Move.Off {
		affected[b.P] = true
	}
	for _, b := range cand.Move.On {
		affected[b.P] = true
	}
	applyMoveBits(cur.visits, cand.Move)

	for p := range affected {
		var customers []int
		for n := c.inst.DepotNum; n < c.inst.NodeNum(); n++ {
			if cur.visits[p][n] {
				customers = append(customers, n)
			}
		}
		tour, price, err := repair.Repair(ctx, 0, customers)
		if err != nil {
			return false
		}
		cur.periods[p] = periodState{tour: tour, price: price}
	}

	total := cand.LpDelta
	for _, p := range cur.periods {
		total += p.price
	}
	cur.cost = total
	return true
}

// mergeIncumbent folds a MipWindowSolver incumbent (which may carry a
// per-vehicle route split) into the single-tour-per-period state the tabu
// phase operates on: the visited set is the union across vehicles, and a
// fresh TspRepair call produces the canonical single tour spec.md's
// NeighborhoodBuilder expects to find in curTours.
func (c *Controller) mergeIncumbent(ctx context.Context, repair *tsprepair.TspRepair, cur *state, inc mipwindow.Incumbent) {
	for p, route := range inc.ActiveRoutes {
		var customers []int
		for _, vr := range route.VehicleRoutes {
			for _, d := range vr.Deliveries {
				customers = append(customers, d.Node)
			}
		}
		for n := c.inst.DepotNum; n < c.inst.NodeNum(); n++ {
			cur.visits[p][n] = false
		}
		for _, n := range customers {
			cur.visits[p][n] = true
		}
		tour, price, err := repair.Repair(ctx, 0, customers)
		if err != nil {
			continue
		}
		cur.periods[p] = periodState{tour: tour, price: price}
	}
	cur.cost = c.totalCost(cur)
}

func (c *Controller) totalCost(s *state) float64 {
	res, err := quantitylp.Solve(c.inst, s.visits)
	if err != nil || !res.Feasible {
		return math.Inf(1)
	}
	total := res.Objective
	for _, p := range s.periods {
		total += p.price
	}
	return total
}

// buildSolution runs QuantityLp once more on best.visits to materialize
// delivery quantities (spec.md §4.8's getBestSln) and reads tours from
// best.periods to populate the Solution.
func (c *Controller) buildSolution(best *state) (*model.Solution, error) {
	res, err := quantitylp.Solve(c.inst, best.visits)
	if err != nil {
		return nil, err
	}

	sln := model.NewSolution(c.inst.PeriodNum, c.inst.VehicleNum())
	for p, ps := range best.periods {
		var deliveries []model.Delivery
		for _, n := range ps.tour {
			if n == 0 {
				continue
			}
			q := 0.0
			if res.Feasible {
				for v := 0; v < c.inst.VehicleNum(); v++ {
					q += res.Delivery[p][v][n]
				}
			}
			deliveries = append(deliveries, model.Delivery{Node: n, Quantity: math.Round(q)})
		}
		sln.PeriodRoutes[p].VehicleRoutes[0] = model.VehicleRoute{Deliveries: deliveries}
	}
	sln.TotalCost = best.cost
	return sln, nil
}
