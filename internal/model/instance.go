// Package model defines the IRP instance and solution data model described
// in spec.md §3 and §6, along with JSON (de)serialization and the legacy
// text instance format the original simulator produced.
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Vehicle is one member of the homogeneous fleet.
type Vehicle struct {
	Capacity float64 `json:"capacity"`
}

// Node is either the depot (index < DepotNum) or a customer.
type Node struct {
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	InitQuantity float64   `json:"initquantity"`
	Capacity     float64   `json:"capacity"`
	MinLevel     float64   `json:"minlevel"`
	HoldingCost  float64   `json:"holdingcost"`
	Demands      []float64 `json:"demands"`
}

// Instance is the read-only problem input.
type Instance struct {
	PeriodNum int       `json:"periodnum"`
	DepotNum  int       `json:"depotnum"`
	Vehicles  []Vehicle `json:"vehicles"`
	Nodes     []Node    `json:"nodes"`
}

// NodeNum returns the total node count, depots included.
func (in *Instance) NodeNum() int { return len(in.Nodes) }

// VehicleNum returns the fleet size.
func (in *Instance) VehicleNum() int { return len(in.Vehicles) }

// VehicleCapacity returns the (uniform) vehicle capacity, or 0 if there is no vehicle.
func (in *Instance) VehicleCapacity() float64 {
	if len(in.Vehicles) == 0 {
		return 0
	}
	return in.Vehicles[0].Capacity
}

// Validate checks the structural invariants an Instance must satisfy before
// it is handed to the solver: consistent period counts, non-negative
// capacities, and a demand series matching PeriodNum for every node.
func (in *Instance) Validate() error {
	if in.PeriodNum <= 0 {
		return fmt.Errorf("model: periodnum must be positive, got %d", in.PeriodNum)
	}
	if in.DepotNum <= 0 {
		return fmt.Errorf("model: depotnum must be at least 1, got %d", in.DepotNum)
	}
	if len(in.Nodes) <= in.DepotNum {
		return fmt.Errorf("model: instance has no customers (nodes=%d, depots=%d)", len(in.Nodes), in.DepotNum)
	}
	if len(in.Vehicles) == 0 {
		return fmt.Errorf("model: instance has no vehicles")
	}
	for i, n := range in.Nodes {
		if len(n.Demands) != in.PeriodNum {
			return fmt.Errorf("model: node %d has %d demand entries, want %d", i, len(n.Demands), in.PeriodNum)
		}
		if n.Capacity < 0 || n.MinLevel < 0 {
			return fmt.Errorf("model: node %d has negative capacity or minlevel", i)
		}
	}
	return nil
}

// LoadInstance reads and validates an Instance from a JSON file.
func LoadInstance(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeInstance(f)
}

// DecodeInstance reads a JSON-encoded Instance from r.
func DecodeInstance(r io.Reader) (*Instance, error) {
	var in Instance
	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("model: decode instance: %w", err)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &in, nil
}

// SaveInstance writes in as JSON to path.
func SaveInstance(path string, in *Instance) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
