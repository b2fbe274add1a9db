package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"irpsolver/internal/apperror"
	"irpsolver/internal/model"
)

func trivialInstance() *model.Instance {
	return &model.Instance{
		PeriodNum: 2,
		DepotNum:  1,
		Vehicles:  []model.Vehicle{{Capacity: 100}},
		Nodes: []model.Node{
			{X: 0, Y: 0, Capacity: 1e9, InitQuantity: 1e6, Demands: []float64{0, 0}},
			{X: 3, Y: 0, Capacity: 10, InitQuantity: 0, HoldingCost: 1, Demands: []float64{5, 5}},
		},
	}
}

func TestCheckAgreesWithHandComputedCost(t *testing.T) {
	inst := trivialInstance()
	sln := &model.Solution{
		TotalCost: 12,
		PeriodRoutes: []model.PeriodRoute{
			{VehicleRoutes: []model.VehicleRoute{{Deliveries: []model.Delivery{{Node: 1, Quantity: 5}}}}},
			{VehicleRoutes: []model.VehicleRoute{{Deliveries: []model.Delivery{{Node: 1, Quantity: 5}}}}},
		},
	}

	report, err := check(inst, sln, 1e-6)
	require.NoError(t, err)
	require.False(t, report.mismatch)
	require.Equal(t, 12.0, report.routingCost)
	require.Equal(t, 0.0, report.holdingCost)
}

func TestCheckFlagsMismatchWhenRecordedCostIsWrong(t *testing.T) {
	inst := trivialInstance()
	sln := &model.Solution{
		TotalCost: 999,
		PeriodRoutes: []model.PeriodRoute{
			{VehicleRoutes: []model.VehicleRoute{{Deliveries: []model.Delivery{{Node: 1, Quantity: 5}}}}},
			{VehicleRoutes: []model.VehicleRoute{{Deliveries: []model.Delivery{{Node: 1, Quantity: 5}}}}},
		},
	}

	report, err := check(inst, sln, 1e-6)
	require.NoError(t, err)
	require.True(t, report.mismatch)
}

func TestCheckReportsInvariantViolationOnNegativeStock(t *testing.T) {
	inst := trivialInstance()
	sln := &model.Solution{
		PeriodRoutes: []model.PeriodRoute{
			{VehicleRoutes: []model.VehicleRoute{{}}},
			{VehicleRoutes: []model.VehicleRoute{{}}},
		},
	}

	_, err := check(inst, sln, 1e-6)
	require.Error(t, err)
	require.Equal(t, apperror.CodeInvariantViolation, apperror.Code(err))
}
