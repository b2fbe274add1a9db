package model

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// LegacyTrait carries the parameters the legacy text format does not encode
// itself: depot count and fleet size, mirroring InstanceTrait in
// original_source/Simulator/Simulator.cpp.
type LegacyTrait struct {
	DepotNum   int
	VehicleNum int
}

// ConvertLegacyText parses the classic CVRP-style text layout:
//
//	nodeNum periodNum vehicleCapacity
//	id x y initQuantity unitDemand holdingCost      (supplier line)
//	id x y initQuantity capacity minLevel unitDemand holdingCost   (one per customer)
//
// The supplier is special-cased exactly as the original simulator does: its
// capacity is derived (initQuantity + unitDemand*periodNum) and its demand
// is stored as the negation of its per-period supply rate.
func ConvertLegacyText(r io.Reader, trait LegacyTrait) (*Instance, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var nodeNum, periodNum int
	var vehicleCapacity float64
	if !sc.Scan() {
		return nil, fmt.Errorf("model: legacy instance: missing header line")
	}
	if _, err := fmt.Sscan(sc.Text(), &nodeNum, &periodNum, &vehicleCapacity); err != nil {
		return nil, fmt.Errorf("model: legacy instance: bad header: %w", err)
	}
	if trait.VehicleNum <= 0 {
		trait.VehicleNum = 1
	}
	if trait.DepotNum <= 0 {
		trait.DepotNum = 1
	}

	in := &Instance{PeriodNum: periodNum, DepotNum: trait.DepotNum}
	perVehicleCapacity := vehicleCapacity / float64(trait.VehicleNum)
	for v := 0; v < trait.VehicleNum; v++ {
		in.Vehicles = append(in.Vehicles, Vehicle{Capacity: perVehicleCapacity})
	}

	// Supplier (depot) line: id x y initQuantity unitDemand holdingCost.
	if !sc.Scan() {
		return nil, fmt.Errorf("model: legacy instance: missing supplier line")
	}
	var id int
	var x, y, initQty, unitDemand, holdingCost float64
	if _, err := fmt.Sscan(sc.Text(), &id, &x, &y, &initQty, &unitDemand, &holdingCost); err != nil {
		return nil, fmt.Errorf("model: legacy instance: bad supplier line: %w", err)
	}
	supplier := Node{
		X:            x,
		Y:            y,
		InitQuantity: initQty,
		Capacity:     initQty + unitDemand*float64(periodNum),
		MinLevel:     0,
		HoldingCost:  holdingCost,
		Demands:      constantSeries(-unitDemand, periodNum),
	}
	in.Nodes = append(in.Nodes, supplier)

	// Customer lines: id x y initQuantity capacity minLevel unitDemand holdingCost.
	for i := 1; i < nodeNum; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("model: legacy instance: missing customer line %d", i)
		}
		var cid int
		var cx, cy, cInit, cCap, cMin, cDemand, cHold float64
		if _, err := fmt.Sscan(sc.Text(), &cid, &cx, &cy, &cInit, &cCap, &cMin, &cDemand, &cHold); err != nil {
			return nil, fmt.Errorf("model: legacy instance: bad customer line %d: %w", i, err)
		}
		in.Nodes = append(in.Nodes, Node{
			X:            cx,
			Y:            cy,
			InitQuantity: cInit,
			Capacity:     cCap,
			MinLevel:     cMin,
			HoldingCost:  cHold,
			Demands:      constantSeries(cDemand, periodNum),
		})
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("model: legacy instance: %w", err)
	}
	return in, in.Validate()
}

func constantSeries(v float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// ConvertLegacyTextFile reads a legacy text instance file and writes the
// structured JSON form to jsonPath.
func ConvertLegacyTextFile(textPath, jsonPath string, trait LegacyTrait) error {
	f, err := os.Open(textPath)
	if err != nil {
		return err
	}
	defer f.Close()

	in, err := ConvertLegacyText(f, trait)
	if err != nil {
		return err
	}
	return SaveInstance(jsonPath, in)
}
