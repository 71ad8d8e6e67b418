// Package finance prices route plans: collection revenue with delivered
// weight penalties against fuel and fixed vehicle costs. Everything here is
// a pure function of its inputs so concurrent plans cannot interfere.
package finance

import "math"

// FuelBasis selects how fuel cost is charged.
type FuelBasis string

const (
	// FuelFullDistance charges every driven kilometer at the full rate.
	FuelFullDistance FuelBasis = "full_distance"
	// FuelLoadProrated scales each route's fuel charge by its load
	// fraction, the convention the business used historically.
	FuelLoadProrated FuelBasis = "load_prorated"
)

// WeightBands holds the delivered-weight penalty steps. Units delivered
// inside [IdealMin, IdealMax] sell at full price; outside [ExtremeMin,
// ExtremeMax] they lose ExtremePenalty of their value; in between they lose
// ModeratePenalty.
type WeightBands struct {
	IdealMin        float64 `yaml:"ideal_min" json:"ideal_min"`
	IdealMax        float64 `yaml:"ideal_max" json:"ideal_max"`
	ExtremeMin      float64 `yaml:"extreme_min" json:"extreme_min"`
	ExtremeMax      float64 `yaml:"extreme_max" json:"extreme_max"`
	ModeratePenalty float64 `yaml:"moderate_penalty" json:"moderate_penalty"`
	ExtremePenalty  float64 `yaml:"extreme_penalty" json:"extreme_penalty"`
}

// DefaultBands are the slaughterhouse acceptance bands in kg.
func DefaultBands() WeightBands {
	return WeightBands{
		IdealMin:        105,
		IdealMax:        115,
		ExtremeMin:      100,
		ExtremeMax:      120,
		ModeratePenalty: 0.15,
		ExtremePenalty:  0.20,
	}
}

// Penalty returns the revenue fraction lost at the given average unit
// weight. Non-positive weights price at par: absent data never penalizes.
func (b WeightBands) Penalty(weight float64) float64 {
	switch {
	case weight <= 0:
		return 0
	case weight >= b.IdealMin && weight <= b.IdealMax:
		return 0
	case weight < b.ExtremeMin || weight > b.ExtremeMax:
		return b.ExtremePenalty
	default:
		return b.ModeratePenalty
	}
}

// Pricing is the immutable financial configuration for one evaluation.
type Pricing struct {
	PricePerUnitWeight float64
	VehicleCostPerWeek float64
	FuelCostPerKm      float64
	FuelBasis          FuelBasis
	Bands              WeightBands
}

// StopLoad is one stop's financial inputs.
type StopLoad struct {
	Units      int
	UnitWeight float64
}

// RouteLoad is one vehicle's day as the evaluator sees it.
type RouteLoad struct {
	Distance float64 // km, both depot legs included
	Stops    []StopLoad
}

// Day is the financial outcome of one day's routes. Monetary fields are
// rounded to cents; NetProfit is derived from the rounded parts so the
// identity net = revenue - fuel - vehicles holds exactly.
type Day struct {
	Units       int
	WeightKg    float64
	Distance    float64
	Vehicles    int
	Revenue     float64
	FuelCost    float64
	VehicleCost float64
	NetProfit   float64
}

// EvaluateDay prices one day's routes under pr. vehicleCap is needed to
// compute load fractions when fuel is prorated.
func EvaluateDay(routes []RouteLoad, vehicleCap int, pr Pricing) Day {
	var d Day
	d.Vehicles = len(routes)
	revenue := 0.0
	fuel := 0.0
	for _, r := range routes {
		dist := round2(r.Distance)
		d.Distance += dist
		load := 0
		for _, st := range r.Stops {
			kg := float64(st.Units) * st.UnitWeight
			d.Units += st.Units
			d.WeightKg += kg
			revenue += kg * pr.PricePerUnitWeight * (1 - pr.Bands.Penalty(st.UnitWeight))
			load += st.Units
		}
		switch pr.FuelBasis {
		case FuelLoadProrated:
			if vehicleCap > 0 && load > 0 {
				fuel += dist * pr.FuelCostPerKm * float64(load) / float64(vehicleCap)
			}
		default:
			fuel += dist * pr.FuelCostPerKm
		}
	}
	d.Distance = round2(d.Distance)
	d.WeightKg = round2(d.WeightKg)
	d.Revenue = round2(revenue)
	d.FuelCost = round2(fuel)
	d.VehicleCost = round2(float64(d.Vehicles) * pr.VehicleCostPerWeek / 7)
	d.NetProfit = round2(d.Revenue - d.FuelCost - d.VehicleCost)
	return d
}

// Period aggregates day outcomes and derives the reporting ratios.
type Period struct {
	Days           int
	Revenue        float64
	FuelCost       float64
	VehicleCost    float64
	TotalCost      float64
	NetProfit      float64
	MarginPercent  float64
	Units          int
	Distance       float64
	MaxVehicles    int
	AvgVehicles    float64
	CostPerUnit    float64
	RevenuePerUnit float64
}

// Summarize folds day results into period totals. Ratio fields are zero when
// their denominator is zero rather than NaN.
func Summarize(days []Day) Period {
	var p Period
	p.Days = len(days)
	vehicles := 0
	for _, d := range days {
		p.Revenue += d.Revenue
		p.FuelCost += d.FuelCost
		p.VehicleCost += d.VehicleCost
		p.NetProfit += d.NetProfit
		p.Units += d.Units
		p.Distance += d.Distance
		vehicles += d.Vehicles
		if d.Vehicles > p.MaxVehicles {
			p.MaxVehicles = d.Vehicles
		}
	}
	p.Revenue = round2(p.Revenue)
	p.FuelCost = round2(p.FuelCost)
	p.VehicleCost = round2(p.VehicleCost)
	p.TotalCost = round2(p.FuelCost + p.VehicleCost)
	p.NetProfit = round2(p.NetProfit)
	p.Distance = round2(p.Distance)
	if p.Revenue != 0 {
		p.MarginPercent = round2(p.NetProfit / p.Revenue * 100)
	}
	if p.Units > 0 {
		p.CostPerUnit = round2(p.TotalCost / float64(p.Units))
		p.RevenuePerUnit = round2(p.Revenue / float64(p.Units))
	}
	if p.Days > 0 {
		p.AvgVehicles = round2(float64(vehicles) / float64(p.Days))
	}
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
