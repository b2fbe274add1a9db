// Command irpcheck independently re-derives totalCost from a serialized
// (Instance, Solution) pair, mirroring Solver::check / the Checker
// executable referenced in original_source/Solver.cpp. It never trusts the
// solver's own recorded objective — every number it reports is recomputed
// from the deliveries and routes in the solution file.
package main

import (
	"flag"
	"fmt"
	"os"

	"irpsolver/internal/apperror"
	"irpsolver/internal/model"
	"irpsolver/internal/routingcost"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("irpcheck", flag.ContinueOnError)
	instancePath := fs.String("p", "", "instance file (required)")
	solutionPath := fs.String("o", "", "solution file (required)")
	epsilon := fs.Float64("epsilon", 1e-3, "tolerance for the recomputed-cost comparison")
	if err := fs.Parse(args); err != nil {
		return -1
	}
	if *instancePath == "" || *solutionPath == "" {
		fmt.Fprintln(os.Stderr, "usage: irpcheck -p <instance> -o <solution> [-epsilon 1e-3]")
		return -1
	}

	inst, err := model.LoadInstance(*instancePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, apperror.Wrap(err, apperror.CodeInputError, "load instance"))
		return -1
	}
	sln, _, err := model.LoadSolution(*solutionPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, apperror.Wrap(err, apperror.CodeInputError, "load solution"))
		return -1
	}

	report, err := check(inst, sln, *epsilon)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return -1
	}

	fmt.Printf("recomputed total cost: %.6f (holding %.6f, routing %.6f)\n",
		report.recomputedCost, report.holdingCost, report.routingCost)
	fmt.Printf("solution recorded cost: %.6f\n", sln.TotalCost)
	if report.mismatch {
		mismatch := apperror.New(apperror.CodeCheckerMismatch, "recorded totalCost disagrees with recomputed cost").
			WithDetails("recorded", sln.TotalCost).
			WithDetails("recomputed", report.recomputedCost).
			WithDetails("epsilon", *epsilon)
		fmt.Fprintln(os.Stderr, mismatch)
	} else {
		fmt.Println("OK: recorded cost matches recomputed cost within epsilon")
	}
	return 0
}

type checkReport struct {
	holdingCost    float64
	routingCost    float64
	recomputedCost float64
	mismatch       bool
}

// check recomputes totalCost from scratch: holding cost from per-period
// node stock levels driven by the solution's deliveries, and routing cost
// from summing consecutive edges of every vehicle route. It returns a
// CodeInvariantViolation error if a recomputed stock level breaches a
// node's [0, capacity] bound (spec.md §8 Invariant 2), which the solver
// itself must never produce for an accepted solution.
func check(inst *model.Instance, sln *model.Solution, epsilon float64) (checkReport, error) {
	if len(sln.PeriodRoutes) != inst.PeriodNum {
		return checkReport{}, apperror.New(apperror.CodeInputError,
			fmt.Sprintf("solution has %d periods, instance has %d", len(sln.PeriodRoutes), inst.PeriodNum))
	}

	xs := make([]float64, inst.NodeNum())
	ys := make([]float64, inst.NodeNum())
	for i, n := range inst.Nodes {
		xs[i], ys[i] = n.X, n.Y
	}
	matrix := routingcost.Build(xs, ys)

	delivered := make([][]float64, inst.NodeNum())
	for n := range delivered {
		delivered[n] = make([]float64, inst.PeriodNum)
	}

	var routingCost float64
	for p, pr := range sln.PeriodRoutes {
		for _, vr := range pr.VehicleRoutes {
			if len(vr.Deliveries) == 0 {
				continue
			}
			tour := make([]int, 0, len(vr.Deliveries)+2)
			tour = append(tour, 0)
			for _, d := range vr.Deliveries {
				tour = append(tour, d.Node)
				delivered[d.Node][p] += d.Quantity
			}
			tour = append(tour, 0)
			routingCost += matrix.TourCost(tour)
		}
	}

	var holdingCost float64
	for n := inst.DepotNum; n < inst.NodeNum(); n++ {
		node := inst.Nodes[n]
		stock := node.InitQuantity
		for p := 0; p < inst.PeriodNum; p++ {
			stock += delivered[n][p] - node.Demands[p]
			if stock < -epsilon || stock > node.Capacity+epsilon {
				return checkReport{}, apperror.New(apperror.CodeInvariantViolation,
					fmt.Sprintf("node %d period %d stock %.6f outside [0, %.6f]", n, p, stock, node.Capacity))
			}
			holdingCost += node.HoldingCost * stock
		}
	}

	recomputed := holdingCost + routingCost
	diff := recomputed - sln.TotalCost
	if diff < 0 {
		diff = -diff
	}
	return checkReport{
		holdingCost:    holdingCost,
		routingCost:    routingCost,
		recomputedCost: recomputed,
		mismatch:       diff > epsilon,
	}, nil
}
