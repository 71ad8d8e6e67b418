package finance

import (
	"math"
	"testing"
)

func TestWeightPenaltyBands(t *testing.T) {
	b := DefaultBands()
	cases := []struct {
		weight float64
		want   float64
	}{
		{110, 0},
		{105, 0},
		{115, 0},
		{104.9, 0.15},
		{115.1, 0.15},
		{100, 0.15},
		{120, 0.15},
		{99.9, 0.20},
		{120.1, 0.20},
		{60, 0.20},
		{0, 0},
		{-5, 0},
	}
	for _, c := range cases {
		if got := b.Penalty(c.weight); got != c.want {
			t.Fatalf("Penalty(%v) = %v, want %v", c.weight, got, c.want)
		}
	}
}

func testPricing(basis FuelBasis) Pricing {
	return Pricing{
		PricePerUnitWeight: 2.2,
		VehicleCostPerWeek: 2000,
		FuelCostPerKm:      0.35,
		FuelBasis:          basis,
		Bands:              DefaultBands(),
	}
}

func TestEvaluateDayFullDistance(t *testing.T) {
	routes := []RouteLoad{
		{Distance: 100, Stops: []StopLoad{{Units: 50, UnitWeight: 110}}},
	}
	d := EvaluateDay(routes, 200, testPricing(FuelFullDistance))
	if d.Units != 50 || d.Vehicles != 1 {
		t.Fatalf("units=%d vehicles=%d", d.Units, d.Vehicles)
	}
	if d.Revenue != 12100.00 {
		t.Fatalf("revenue = %v, want 12100.00", d.Revenue)
	}
	if d.FuelCost != 35.00 {
		t.Fatalf("fuel = %v, want 35.00", d.FuelCost)
	}
	if d.VehicleCost != 285.71 {
		t.Fatalf("vehicle cost = %v, want 285.71", d.VehicleCost)
	}
	if d.NetProfit != round2(d.Revenue-d.FuelCost-d.VehicleCost) {
		t.Fatalf("net = %v, parts give %v", d.NetProfit, d.Revenue-d.FuelCost-d.VehicleCost)
	}
}

func TestEvaluateDayLoadProrated(t *testing.T) {
	routes := []RouteLoad{
		{Distance: 100, Stops: []StopLoad{{Units: 50, UnitWeight: 110}}},
	}
	d := EvaluateDay(routes, 200, testPricing(FuelLoadProrated))
	// quarter load -> quarter fuel
	if d.FuelCost != 8.75 {
		t.Fatalf("fuel = %v, want 8.75", d.FuelCost)
	}
	full := EvaluateDay(routes, 200, testPricing(FuelFullDistance))
	if d.FuelCost >= full.FuelCost {
		t.Fatalf("prorated fuel %v not below full %v", d.FuelCost, full.FuelCost)
	}
	if d.Revenue != full.Revenue || d.VehicleCost != full.VehicleCost {
		t.Fatalf("basis switch changed more than fuel")
	}
}

func TestEvaluateDayPenalizedWeight(t *testing.T) {
	routes := []RouteLoad{
		{Distance: 10, Stops: []StopLoad{
			{Units: 10, UnitWeight: 110}, // par
			{Units: 10, UnitWeight: 118}, // moderate
			{Units: 10, UnitWeight: 95},  // extreme
		}},
	}
	d := EvaluateDay(routes, 200, testPricing(FuelFullDistance))
	want := round2(10*110*2.2 + 10*118*2.2*0.85 + 10*95*2.2*0.80)
	if d.Revenue != want {
		t.Fatalf("revenue = %v, want %v", d.Revenue, want)
	}
}

func TestEvaluateDayEmpty(t *testing.T) {
	d := EvaluateDay(nil, 200, testPricing(FuelLoadProrated))
	if d.Units != 0 || d.Vehicles != 0 || d.Revenue != 0 || d.FuelCost != 0 || d.VehicleCost != 0 || d.NetProfit != 0 {
		t.Fatalf("empty day not zero: %+v", d)
	}
}

func TestNetProfitIdentity(t *testing.T) {
	routes := []RouteLoad{
		{Distance: 123.456, Stops: []StopLoad{{Units: 37, UnitWeight: 108.3}, {Units: 21, UnitWeight: 97.2}}},
		{Distance: 45.789, Stops: []StopLoad{{Units: 64, UnitWeight: 121.6}}},
	}
	for _, basis := range []FuelBasis{FuelFullDistance, FuelLoadProrated} {
		d := EvaluateDay(routes, 150, testPricing(basis))
		if diff := math.Abs(d.NetProfit - (d.Revenue - d.FuelCost - d.VehicleCost)); diff > 1e-9 {
			t.Fatalf("%s: net identity off by %v", basis, diff)
		}
	}
}

func TestSummarize(t *testing.T) {
	days := []Day{
		{Units: 100, Distance: 50, Vehicles: 2, Revenue: 1000, FuelCost: 100, VehicleCost: 200, NetProfit: 700},
		{Units: 50, Distance: 25, Vehicles: 1, Revenue: 500, FuelCost: 50, VehicleCost: 100, NetProfit: 350},
		{},
	}
	p := Summarize(days)
	if p.Days != 3 || p.Units != 150 {
		t.Fatalf("days=%d units=%d", p.Days, p.Units)
	}
	if p.Revenue != 1500 || p.TotalCost != 450 || p.NetProfit != 1050 {
		t.Fatalf("revenue=%v cost=%v net=%v", p.Revenue, p.TotalCost, p.NetProfit)
	}
	if p.MarginPercent != 70 {
		t.Fatalf("margin = %v, want 70", p.MarginPercent)
	}
	if p.CostPerUnit != 3 || p.RevenuePerUnit != 10 {
		t.Fatalf("cost/unit=%v revenue/unit=%v", p.CostPerUnit, p.RevenuePerUnit)
	}
	if p.MaxVehicles != 2 || p.AvgVehicles != 1 {
		t.Fatalf("max=%d avg=%v", p.MaxVehicles, p.AvgVehicles)
	}
}

func TestSummarizeZeroDenominators(t *testing.T) {
	p := Summarize([]Day{{}})
	if p.MarginPercent != 0 || p.CostPerUnit != 0 || p.RevenuePerUnit != 0 {
		t.Fatalf("ratios not zero on empty period: %+v", p)
	}
	empty := Summarize(nil)
	if empty.Days != 0 || empty.AvgVehicles != 0 {
		t.Fatalf("nil days: %+v", empty)
	}
}
