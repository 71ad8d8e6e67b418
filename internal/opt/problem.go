package opt

import (
	"errors"
	"fmt"

	"herdroute/internal/geo"
)

var (
	// ErrNoDepot reports a build attempt without a facility location.
	ErrNoDepot = errors.New("no depot")
	// ErrInfeasible reports positive demand that no vehicle can serve today.
	ErrInfeasible = errors.New("infeasible")
)

// Node is one solvable location. Index 0 of Problem.Nodes is always the depot.
type Node struct {
	ID     string
	Loc    geo.Point
	Demand int // usable units today, already clamped; 0 for the depot
}

// FleetSpec describes the homogeneous vehicle fleet.
type FleetSpec struct {
	Capacity         int
	CostPerWeek      float64
	FuelCostPerKm    float64
	MaxStopsPerRoute int // 0 = unlimited
}

// Farm is a collection site offered to the builder.
type Farm struct {
	ID       string
	Loc      geo.Point
	Residual int // units still on site
	MaxCap   int // declared site capacity
}

// Problem is one day's routing instance. It is read-only during a solve.
type Problem struct {
	Nodes            []Node
	Dist             [][]float64 // km, symmetric, indexed like Nodes
	VehicleCap       int
	DepotRemaining   int // facility intake left today
	VehiclePenaltyKm float64
	MaxStopsPerRoute int
}

// TotalDemand sums the clamped per-farm demand.
func (p Problem) TotalDemand() int {
	total := 0
	for _, n := range p.Nodes {
		total += n.Demand
	}
	return total
}

// VMin is the lower bound on vehicles needed to move today's collectable
// volume: ceil(min(total_demand, depot_remaining)/vehicle_capacity), at
// least 1.
func (p Problem) VMin() int {
	if p.VehicleCap <= 0 {
		return 1
	}
	units := p.TotalDemand()
	if p.DepotRemaining < units {
		units = p.DepotRemaining
	}
	v := (units + p.VehicleCap - 1) / p.VehicleCap
	if v < 1 {
		v = 1
	}
	return v
}

// BuildProblem assembles a one-day Problem. Farms without positive residual
// demand are dropped and per-farm demand is clamped to the declared site
// capacity. Demand above the vehicle capacity is left in place: the solver
// reports such instances infeasible and the greedy fallback serves them by
// splitting the farm across vehicles. The fixed per-vehicle cost is
// converted to equivalent kilometers so the solver trades vehicles against
// detour distance directly.
func BuildProblem(depotID string, depot *geo.Point, farms []Farm, depotRemaining int, fleet FleetSpec) (Problem, error) {
	if depot == nil {
		return Problem{}, ErrNoDepot
	}
	if fleet.FuelCostPerKm <= 0 {
		return Problem{}, fmt.Errorf("fuel cost per km must be positive, got %v", fleet.FuelCostPerKm)
	}
	nodes := []Node{{ID: depotID, Loc: *depot}}
	for _, f := range farms {
		demand := f.Residual
		if f.MaxCap > 0 && demand > f.MaxCap {
			demand = f.MaxCap
		}
		if demand <= 0 {
			continue
		}
		nodes = append(nodes, Node{ID: f.ID, Loc: f.Loc, Demand: demand})
	}
	points := make([]geo.Point, len(nodes))
	for i, n := range nodes {
		points[i] = n.Loc
	}
	dist, err := geo.Matrix(points)
	if err != nil {
		return Problem{}, fmt.Errorf("distance matrix: %w", err)
	}
	return Problem{
		Nodes:            nodes,
		Dist:             dist,
		VehicleCap:       fleet.Capacity,
		DepotRemaining:   depotRemaining,
		VehiclePenaltyKm: fleet.CostPerWeek / 7 / fleet.FuelCostPerKm,
		MaxStopsPerRoute: fleet.MaxStopsPerRoute,
	}, nil
}
