// Package plan drives one solver invocation per day over the horizon and
// owns the residual demand state for a run.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"herdroute/internal/config"
	"herdroute/internal/finance"
	"herdroute/internal/geo"
	"herdroute/internal/model"
	"herdroute/internal/opt"
)

// Scheduler runs multi-day plans. Safe for concurrent use: all run state
// lives inside Run.
type Scheduler struct {
	cfg    config.Optimizer
	runLog *opt.RunLog
}

func New(cfg config.Optimizer, runLog *opt.RunLog) *Scheduler {
	return &Scheduler{cfg: cfg, runLog: runLog}
}

type farmState struct {
	id       string
	loc      geo.Point
	residual int
	maxCap   int
	weight   float64
}

// Run executes the full horizon for req, which must already be validated.
// onDay, when non-nil, observes every emitted day in order; emitted days are
// never revised. Day-local infeasibility never fails the run. Context
// cancellation stops before the next day starts and returns the days planned
// so far with the truncation flag set.
func (s *Scheduler) Run(ctx context.Context, planID string, req model.OptimizeRequest, onDay func(model.DayPlan)) (model.PeriodPlan, error) {
	opts := req.Options()

	basis := s.cfg.Basis()
	if opts.FuelCostBasis != "" {
		basis = finance.FuelBasis(opts.FuelCostBasis)
	}
	pricing := finance.Pricing{
		PricePerUnitWeight: opts.PricePerUnitWeight,
		VehicleCostPerWeek: opts.VehicleCostPerWeek,
		FuelCostPerKm:      opts.FuelCostPerKm,
		FuelBasis:          basis,
		Bands:              s.cfg.Bands,
	}
	fleet := opt.FleetSpec{
		Capacity:         opts.VehicleCapacity,
		CostPerWeek:      opts.VehicleCostPerWeek,
		FuelCostPerKm:    opts.FuelCostPerKm,
		MaxStopsPerRoute: opts.MaxStopsPerRoute,
	}
	budget := s.cfg.TimeBudget()
	if req.TimeBudgetMS > 0 {
		budget = time.Duration(req.TimeBudgetMS) * time.Millisecond
	}

	start := time.Now().UTC()
	if opts.StartDate != "" {
		t, err := time.Parse("2006-01-02", opts.StartDate)
		if err != nil {
			return model.PeriodPlan{}, fmt.Errorf("start_date: %w", err)
		}
		start = t
	}

	farms := make([]*farmState, 0, len(req.Farms))
	byID := make(map[string]*farmState, len(req.Farms))
	for _, f := range req.Farms {
		w := f.AvgUnitWeight
		if w <= 0 {
			w = opts.AvgUnitWeight
		}
		fs := &farmState{id: f.ID, loc: f.Location, residual: f.AvailableUnits, maxCap: f.MaxCapacity, weight: w}
		farms = append(farms, fs)
		byID[f.ID] = fs
	}

	plan := model.PeriodPlan{ID: planID, Days: []model.DayPlan{}}
	finDays := make([]finance.Day, 0, opts.HorizonDays)
	for day := 0; day < opts.HorizonDays; day++ {
		if ctx.Err() != nil {
			plan.Truncated = true
			log.Printf("plan %s: truncated after %d of %d days: %v", planID, day, opts.HorizonDays, ctx.Err())
			break
		}
		date := start.AddDate(0, 0, day).Format("2006-01-02")
		dp, fin, err := s.runDay(ctx, planID, date, day, req.Facility, farms, byID, fleet, pricing, opts, budget)
		if err != nil {
			return model.PeriodPlan{}, fmt.Errorf("day %d (%s): %w", day+1, date, err)
		}
		plan.Days = append(plan.Days, dp)
		finDays = append(finDays, fin)
		if onDay != nil {
			onDay(dp)
		}
	}
	plan.Summary = s.summarize(finDays, farms)
	return plan, nil
}

func (s *Scheduler) runDay(ctx context.Context, planID, date string, day int, fac *model.FacilityInput, farms []*farmState, byID map[string]*farmState, fleet opt.FleetSpec, pricing finance.Pricing, opts model.PlanOptions, budget time.Duration) (model.DayPlan, finance.Day, error) {
	dp := model.DayPlan{Date: date, Vehicles: []model.VehiclePlan{}}

	input := make([]opt.Farm, 0, len(farms))
	for _, f := range farms {
		if f.residual > 0 {
			input = append(input, opt.Farm{ID: f.id, Loc: f.loc, Residual: f.residual, MaxCap: f.maxCap})
		}
	}
	// the facility intake resets every day
	p, err := opt.BuildProblem(fac.ID, &fac.Location, input, fac.DailyCapacity, fleet)
	if err != nil {
		return dp, finance.Day{}, fmt.Errorf("build problem: %w", err)
	}

	params := opt.Params{
		Seed:        opts.Seed + int64(day),
		TimeBudget:  budget,
		Restarts:    s.cfg.Restarts,
		StagnantMax: s.cfg.StagnantMax,
	}
	sol, tel, err := opt.Solve(ctx, p, params)
	algo := opt.AlgoSearch
	switch {
	case err == nil:
	case errors.Is(err, opt.ErrInfeasible):
		fsol, ferr := opt.GreedyFallback(p)
		switch {
		case ferr == nil:
			algo = opt.AlgoGreedy
			dp.FallbackUsed = true
			sol = fsol
		case errors.Is(ferr, opt.ErrInfeasible):
			dp.Infeasible = true
			sol = opt.Solution{}
		default:
			return dp, finance.Day{}, fmt.Errorf("greedy fallback: %w", ferr)
		}
	default:
		return dp, finance.Day{}, fmt.Errorf("solve: %w", err)
	}

	routeLoads := make([]finance.RouteLoad, 0, len(sol.Routes))
	for i, r := range sol.Routes {
		vp := model.VehiclePlan{
			ID:       fmt.Sprintf("veh-%d", i+1),
			Stops:    make([]model.VehicleStop, 0, len(r.Stops)),
			Distance: math.Round(r.Distance*100) / 100,
		}
		rl := finance.RouteLoad{Distance: r.Distance, Stops: make([]finance.StopLoad, 0, len(r.Stops))}
		for _, st := range r.Stops {
			node := p.Nodes[st.Node]
			f := byID[node.ID]
			if f == nil {
				return dp, finance.Day{}, fmt.Errorf("route references unknown farm %q", node.ID)
			}
			if st.Units > f.residual {
				return dp, finance.Day{}, fmt.Errorf("farm %s overdrawn: loading %d of %d left", f.id, st.Units, f.residual)
			}
			f.residual -= st.Units
			vp.Stops = append(vp.Stops, model.VehicleStop{NodeID: f.id, Units: st.Units})
			vp.Units += st.Units
			rl.Stops = append(rl.Stops, finance.StopLoad{Units: st.Units, UnitWeight: f.weight})
		}
		dp.Vehicles = append(dp.Vehicles, vp)
		routeLoads = append(routeLoads, rl)
	}

	fin := finance.EvaluateDay(routeLoads, opts.VehicleCapacity, pricing)
	dp.TotalUnits = fin.Units
	dp.TotalWeight = fin.WeightKg
	dp.TotalRevenue = fin.Revenue
	dp.TotalDistance = fin.Distance
	dp.FuelCost = fin.FuelCost
	dp.VehicleCost = fin.VehicleCost
	dp.NetProfit = fin.NetProfit

	if s.runLog != nil {
		s.runLog.Record(opt.NewRunRecord(planID, date, algo, tel, dp.Infeasible))
	}
	log.Printf("plan %s day %s: vehicles=%d units=%d dist=%.2f net=%.2f", planID, date, fin.Vehicles, fin.Units, fin.Distance, fin.NetProfit)
	return dp, fin, nil
}

func (s *Scheduler) summarize(days []finance.Day, farms []*farmState) model.Summary {
	p := finance.Summarize(days)
	sum := model.Summary{
		TotalDays:           p.Days,
		TotalRevenue:        p.Revenue,
		TotalFuelCost:       p.FuelCost,
		TotalVehicleCost:    p.VehicleCost,
		TotalCost:           p.TotalCost,
		TotalNetProfit:      p.NetProfit,
		ProfitMarginPercent: p.MarginPercent,
		TotalUnitsCollected: p.Units,
		TotalDistance:       p.Distance,
		MaxVehiclesPerDay:   p.MaxVehicles,
		AvgVehiclesPerDay:   p.AvgVehicles,
		CostPerUnit:         p.CostPerUnit,
		RevenuePerUnit:      p.RevenuePerUnit,
	}
	left := 0
	for _, f := range farms {
		if f.residual > 0 {
			sum.Uncollected = append(sum.Uncollected, model.Uncollected{NodeID: f.id, Units: f.residual})
			left += f.residual
		}
	}
	if s.cfg.Rollover && left > 0 && p.Units > 0 && p.Days > 0 {
		perDay := float64(p.Units) / float64(p.Days)
		sum.ProjectedDaysToClear = int(math.Ceil(float64(left) / perDay))
	}
	return sum
}
