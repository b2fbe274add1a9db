// Command irpgen is a developer tool with two modes, mirroring the role
// original_source/Simulator/Simulator.cpp played for the C++ solver: it
// either generates a synthetic instance or converts a legacy text instance
// into the structured JSON form irpsolver reads.
//
// Usage:
//
//	irpgen -gen -o instance.json -n 50 -periods 6 -v 2 [-s seed]
//	irpgen -convert -p legacy.txt -o instance.json [-depots 1] [-vehicles 2]
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"irpsolver/internal/model"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("irpgen", flag.ContinueOnError)
	genMode := fs.Bool("gen", false, "generate a synthetic instance")
	convertMode := fs.Bool("convert", false, "convert a legacy text instance to JSON")
	inPath := fs.String("p", "", "input path (convert mode: legacy text file)")
	outPath := fs.String("o", "", "output instance JSON path (required)")
	seed := fs.Int64("s", 1, "random seed (generate mode)")
	nodeNum := fs.Int("n", 20, "customer count, excluding the depot (generate mode)")
	periodNum := fs.Int("periods", 6, "planning horizon length (generate mode)")
	vehicleNum := fs.Int("v", 1, "fleet size")
	depotNum := fs.Int("depots", 1, "depot count")
	if err := fs.Parse(args); err != nil {
		return -1
	}

	switch {
	case *genMode:
		return runGenerate(*outPath, *seed, *nodeNum, *periodNum, *vehicleNum, *depotNum)
	case *convertMode:
		return runConvert(*inPath, *outPath, *depotNum, *vehicleNum)
	default:
		fmt.Fprintln(os.Stderr, "usage: irpgen -gen|-convert -o <path> [options]")
		fs.PrintDefaults()
		return -1
	}
}

func runConvert(inPath, outPath string, depotNum, vehicleNum int) int {
	if inPath == "" || outPath == "" {
		fmt.Fprintln(os.Stderr, "irpgen: -convert requires -p and -o")
		return -1
	}
	trait := model.LegacyTrait{DepotNum: depotNum, VehicleNum: vehicleNum}
	if err := model.ConvertLegacyTextFile(inPath, outPath, trait); err != nil {
		fmt.Fprintf(os.Stderr, "irpgen: convert: %v\n", err)
		return -1
	}
	return 0
}

// runGenerate builds a synthetic instance with uniform-random node
// coordinates on a 100x100 grid, uniform-random demand series, and
// capacities sized to keep the instance feasible: node capacity is always
// at least one period's demand, and vehicle capacity always exceeds the
// largest single-node single-period demand, mirroring the shape (not the
// exact distributions) of original_source/Simulator.cpp's instance
// generator.
func runGenerate(outPath string, seed int64, customerNum, periodNum, vehicleNum, depotNum int) int {
	if outPath == "" {
		fmt.Fprintln(os.Stderr, "irpgen: -gen requires -o")
		return -1
	}
	if customerNum <= 0 || periodNum <= 0 || vehicleNum <= 0 || depotNum <= 0 {
		fmt.Fprintln(os.Stderr, "irpgen: -n, -periods, -v, -depots must all be positive")
		return -1
	}

	rng := rand.New(rand.NewSource(seed))
	inst := &model.Instance{PeriodNum: periodNum, DepotNum: depotNum}

	const gridSize = 100.0
	const vehicleCapacity = 200.0

	for v := 0; v < vehicleNum; v++ {
		inst.Vehicles = append(inst.Vehicles, model.Vehicle{Capacity: vehicleCapacity})
	}

	for d := 0; d < depotNum; d++ {
		inst.Nodes = append(inst.Nodes, model.Node{
			X:            rng.Float64() * gridSize,
			Y:            rng.Float64() * gridSize,
			InitQuantity: 1e6,
			Capacity:     1e9,
			MinLevel:     0,
			HoldingCost:  0,
			Demands:      make([]float64, periodNum),
		})
	}

	for c := 0; c < customerNum; c++ {
		demands := make([]float64, periodNum)
		var maxDemand float64
		for p := range demands {
			d := 5 + rng.Float64()*15
			demands[p] = d
			maxDemand = math.Max(maxDemand, d)
		}
		inst.Nodes = append(inst.Nodes, model.Node{
			X:            rng.Float64() * gridSize,
			Y:            rng.Float64() * gridSize,
			InitQuantity: maxDemand,
			Capacity:     maxDemand * float64(periodNum),
			MinLevel:     0,
			HoldingCost:  0.1 + rng.Float64()*0.9,
			Demands:      demands,
		})
	}

	if err := inst.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "irpgen: generated instance failed validation: %v\n", err)
		return -1
	}
	if err := model.SaveInstance(outPath, inst); err != nil {
		fmt.Fprintf(os.Stderr, "irpgen: save: %v\n", err)
		return -1
	}
	return 0
}
