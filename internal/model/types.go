// Package model holds the wire types of the optimize API.
package model

import (
	"fmt"
	"time"

	"herdroute/internal/geo"
)

// Request defaults. Optional numeric fields are pointers so an omitted field
// takes its default while an explicit zero is validated on its own terms.
const (
	DefaultVehicleCapacity    = 250
	DefaultHorizonDays        = 14
	DefaultAvgUnitWeight      = 110.0
	DefaultPricePerUnitWeight = 2.2
	DefaultVehicleCostPerWeek = 2000.0
	DefaultFuelCostPerKm      = 0.35
	MaxHorizonDays            = 30
	DefaultTimeBudgetMS       = 2000
	MaxTimeBudgetMS           = 30000
)

// Fuel basis labels accepted on the wire.
const (
	FuelBasisLoadProrated = "load_prorated"
	FuelBasisFullDistance = "full_distance"
)

// FarmInput is one collection site in an optimize request.
type FarmInput struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Location       geo.Point `json:"location"`
	AvailableUnits int       `json:"available_units"`
	MaxCapacity    int       `json:"max_capacity"`
	AvgUnitWeight  float64   `json:"avg_unit_weight,omitempty"`
}

// FacilityInput is the processing plant receiving all collections.
type FacilityInput struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Location      geo.Point `json:"location"`
	DailyCapacity int       `json:"daily_capacity"`
	MaxCapacity   int       `json:"max_capacity"`
}

// OptimizeRequest is the full multi-day planning request.
type OptimizeRequest struct {
	Farms                   []FarmInput    `json:"farms"`
	Facility                *FacilityInput `json:"facility"`
	VehicleCapacity         *int           `json:"vehicle_capacity,omitempty"`
	HorizonDays             *int           `json:"horizon_days,omitempty"`
	AvgUnitWeight           *float64       `json:"avg_unit_weight,omitempty"`
	PricePerUnitWeight      *float64       `json:"price_per_unit_weight,omitempty"`
	VehicleCostPerWeek      *float64       `json:"vehicle_cost_per_week,omitempty"`
	FuelCostPerDistanceUnit *float64       `json:"fuel_cost_per_distance_unit,omitempty"`
	Seed                    int64          `json:"seed,omitempty"`
	TimeBudgetMS            int            `json:"time_budget_ms,omitempty"`
	MaxStopsPerRoute        int            `json:"max_stops_per_route,omitempty"`
	FuelCostBasis           string         `json:"fuel_cost_basis,omitempty"`
	StartDate               string         `json:"start_date,omitempty"`
}

// PlanOptions are the request knobs with defaults resolved.
type PlanOptions struct {
	VehicleCapacity    int
	HorizonDays        int
	AvgUnitWeight      float64
	PricePerUnitWeight float64
	VehicleCostPerWeek float64
	FuelCostPerKm      float64
	FuelCostBasis      string
	MaxStopsPerRoute   int
	Seed               int64
	TimeBudget         time.Duration
	StartDate          string
}

// Options resolves defaults for every omitted field. Validate must have
// passed first.
func (r *OptimizeRequest) Options() PlanOptions {
	o := PlanOptions{
		VehicleCapacity:    DefaultVehicleCapacity,
		HorizonDays:        DefaultHorizonDays,
		AvgUnitWeight:      DefaultAvgUnitWeight,
		PricePerUnitWeight: DefaultPricePerUnitWeight,
		VehicleCostPerWeek: DefaultVehicleCostPerWeek,
		FuelCostPerKm:      DefaultFuelCostPerKm,
		MaxStopsPerRoute:   r.MaxStopsPerRoute,
		Seed:               r.Seed,
		TimeBudget:         time.Duration(DefaultTimeBudgetMS) * time.Millisecond,
		FuelCostBasis:      r.FuelCostBasis,
		StartDate:          r.StartDate,
	}
	if r.VehicleCapacity != nil {
		o.VehicleCapacity = *r.VehicleCapacity
	}
	if r.HorizonDays != nil {
		o.HorizonDays = *r.HorizonDays
	}
	if r.AvgUnitWeight != nil {
		o.AvgUnitWeight = *r.AvgUnitWeight
	}
	if r.PricePerUnitWeight != nil {
		o.PricePerUnitWeight = *r.PricePerUnitWeight
	}
	if r.VehicleCostPerWeek != nil {
		o.VehicleCostPerWeek = *r.VehicleCostPerWeek
	}
	if r.FuelCostPerDistanceUnit != nil {
		o.FuelCostPerKm = *r.FuelCostPerDistanceUnit
	}
	if r.TimeBudgetMS > 0 {
		o.TimeBudget = time.Duration(r.TimeBudgetMS) * time.Millisecond
	}
	return o
}

// Validate rejects malformed requests before any day is solved. The message
// is surfaced to the caller verbatim.
func (r *OptimizeRequest) Validate() error {
	if r.Facility == nil {
		return fmt.Errorf("facility is required")
	}
	if r.Facility.ID == "" {
		return fmt.Errorf("facility.id is required")
	}
	if err := geo.Validate(r.Facility.Location); err != nil {
		return fmt.Errorf("facility.location: %v", err)
	}
	if r.Facility.DailyCapacity < 0 {
		return fmt.Errorf("facility.daily_capacity must be >= 0")
	}
	if r.Facility.MaxCapacity < 0 {
		return fmt.Errorf("facility.max_capacity must be >= 0")
	}
	if len(r.Farms) == 0 {
		return fmt.Errorf("at least one farm is required")
	}
	seen := make(map[string]bool, len(r.Farms))
	for i, f := range r.Farms {
		if f.ID == "" {
			return fmt.Errorf("farms[%d].id is required", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate farm id %q", f.ID)
		}
		seen[f.ID] = true
		if err := geo.Validate(f.Location); err != nil {
			return fmt.Errorf("farms[%d].location: %v", i, err)
		}
		if f.AvailableUnits < 0 {
			return fmt.Errorf("farms[%d].available_units must be >= 0", i)
		}
		if f.MaxCapacity < 0 {
			return fmt.Errorf("farms[%d].max_capacity must be >= 0", i)
		}
		if f.AvgUnitWeight < 0 {
			return fmt.Errorf("farms[%d].avg_unit_weight must be >= 0", i)
		}
	}
	if r.VehicleCapacity != nil && *r.VehicleCapacity <= 0 {
		return fmt.Errorf("vehicle_capacity must be > 0")
	}
	if r.HorizonDays != nil && (*r.HorizonDays < 1 || *r.HorizonDays > MaxHorizonDays) {
		return fmt.Errorf("horizon_days must be between 1 and %d", MaxHorizonDays)
	}
	if r.AvgUnitWeight != nil && *r.AvgUnitWeight <= 0 {
		return fmt.Errorf("avg_unit_weight must be > 0")
	}
	if r.PricePerUnitWeight != nil && *r.PricePerUnitWeight < 0 {
		return fmt.Errorf("price_per_unit_weight must be >= 0")
	}
	if r.VehicleCostPerWeek != nil && *r.VehicleCostPerWeek < 0 {
		return fmt.Errorf("vehicle_cost_per_week must be >= 0")
	}
	if r.FuelCostPerDistanceUnit != nil && *r.FuelCostPerDistanceUnit <= 0 {
		return fmt.Errorf("fuel_cost_per_distance_unit must be > 0")
	}
	if r.TimeBudgetMS < 0 || r.TimeBudgetMS > MaxTimeBudgetMS {
		return fmt.Errorf("time_budget_ms must be between 0 and %d", MaxTimeBudgetMS)
	}
	if r.MaxStopsPerRoute < 0 {
		return fmt.Errorf("max_stops_per_route must be >= 0")
	}
	switch r.FuelCostBasis {
	case "", FuelBasisLoadProrated, FuelBasisFullDistance:
	default:
		return fmt.Errorf("fuel_cost_basis must be %q or %q", FuelBasisLoadProrated, FuelBasisFullDistance)
	}
	if r.StartDate != "" {
		if _, err := time.Parse("2006-01-02", r.StartDate); err != nil {
			return fmt.Errorf("start_date must be YYYY-MM-DD")
		}
	}
	return nil
}

// VehicleStop is one farm visit in a day's route.
type VehicleStop struct {
	NodeID string `json:"node_id"`
	Units  int    `json:"units"`
}

// VehiclePlan is one vehicle's tour for a day.
type VehiclePlan struct {
	ID       string        `json:"id"`
	Stops    []VehicleStop `json:"stops"`
	Distance float64       `json:"distance"`
	Units    int           `json:"units"`
}

// DayPlan is one day of the period plan.
type DayPlan struct {
	Date          string        `json:"date"`
	Vehicles      []VehiclePlan `json:"vehicles"`
	TotalUnits    int           `json:"total_units"`
	TotalWeight   float64       `json:"total_weight"`
	TotalRevenue  float64       `json:"total_revenue"`
	TotalDistance float64       `json:"total_distance"`
	FuelCost      float64       `json:"fuel_cost"`
	VehicleCost   float64       `json:"vehicle_cost"`
	NetProfit     float64       `json:"net_profit"`
	Infeasible    bool          `json:"infeasible,omitempty"`
	FallbackUsed  bool          `json:"fallback_used,omitempty"`
}

// Uncollected reports demand left on a farm at horizon end.
type Uncollected struct {
	NodeID string `json:"node_id"`
	Units  int    `json:"units"`
}

// Summary aggregates a whole period plan.
type Summary struct {
	TotalDays            int           `json:"total_days"`
	TotalRevenue         float64       `json:"total_revenue"`
	TotalFuelCost        float64       `json:"total_fuel_cost"`
	TotalVehicleCost     float64       `json:"total_vehicle_cost"`
	TotalCost            float64       `json:"total_cost"`
	TotalNetProfit       float64       `json:"total_net_profit"`
	ProfitMarginPercent  float64       `json:"profit_margin_percent"`
	TotalUnitsCollected  int           `json:"total_units_collected"`
	TotalDistance        float64       `json:"total_distance"`
	MaxVehiclesPerDay    int           `json:"max_vehicles_per_day"`
	AvgVehiclesPerDay    float64       `json:"avg_vehicles_per_day"`
	CostPerUnit          float64       `json:"cost_per_unit"`
	RevenuePerUnit       float64       `json:"revenue_per_unit"`
	Uncollected          []Uncollected `json:"uncollected,omitempty"`
	ProjectedDaysToClear int           `json:"projected_days_to_clear,omitempty"`
}

// PeriodPlan is the full optimize response.
type PeriodPlan struct {
	ID        string    `json:"id"`
	Days      []DayPlan `json:"days"`
	Summary   Summary   `json:"summary"`
	Truncated bool      `json:"truncated,omitempty"`
}
