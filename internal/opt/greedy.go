package opt

import "sort"

// GreedyFallback builds a feasible solution without searching: farms sorted
// by depot distance, the current vehicle filled before the next one opens.
// A farm holding more than the current vehicle's remaining space keeps
// loading onto fresh vehicles until it is empty or the facility intake runs
// out, so one farm may span several routes. Loading stops once the intake is
// exhausted; what is left on site carries over to the next day. Never times
// out, and fails only when nothing can move at all.
func GreedyFallback(p Problem) (Solution, error) {
	if p.TotalDemand() == 0 {
		return Solution{}, nil
	}
	if p.VehicleCap <= 0 || p.DepotRemaining <= 0 {
		return Solution{}, ErrInfeasible
	}

	order := make([]int, 0, len(p.Nodes)-1)
	for i := 1; i < len(p.Nodes); i++ {
		order = append(order, i)
	}
	sort.Slice(order, func(a, b int) bool {
		da, db := p.Dist[0][order[a]], p.Dist[0][order[b]]
		if da != db {
			return da < db
		}
		return p.Nodes[order[a]].ID < p.Nodes[order[b]].ID
	})

	var sol Solution
	var cur []Stop
	vehLeft := p.VehicleCap
	depotLeft := p.DepotRemaining
	flush := func() {
		if len(cur) == 0 {
			return
		}
		dist := stopsDistance(p, cur)
		sol.Routes = append(sol.Routes, Route{Stops: cur, Distance: dist})
		sol.TotalDistance += dist
		cur = nil
		vehLeft = p.VehicleCap
	}
	for _, nd := range order {
		if depotLeft == 0 {
			break
		}
		left := p.Nodes[nd].Demand
		for left > 0 && depotLeft > 0 {
			if vehLeft == 0 || (p.MaxStopsPerRoute > 0 && len(cur) == p.MaxStopsPerRoute) {
				flush()
			}
			load := left
			if load > vehLeft {
				load = vehLeft
			}
			if load > depotLeft {
				load = depotLeft
			}
			cur = append(cur, Stop{Node: nd, Units: load})
			vehLeft -= load
			depotLeft -= load
			left -= load
		}
	}
	flush()

	sol.VehiclesUsed = len(sol.Routes)
	sol.Cost = sol.TotalDistance + float64(sol.VehiclesUsed)*p.VehiclePenaltyKm
	return sol, nil
}
