package opt

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultTimeBudget bounds one day's search when the caller passes zero.
	DefaultTimeBudget = 2 * time.Second
	// DefaultRestarts is the number of independent searches per solve.
	DefaultRestarts = 4

	defaultStagnantMax = 30
	glsAlpha           = 0.2
	epsImprove         = 1e-9
)

// Stop is one farm visit with its planned load.
type Stop struct {
	Node  int // index into Problem.Nodes, never 0
	Units int
}

// Route is a single vehicle tour, implicitly depot -> stops -> depot.
// Distance includes both depot legs.
type Route struct {
	Stops    []Stop
	Distance float64
}

// Solution is one day's routing result. Cost is the km-equivalent objective:
// total distance plus VehiclePenaltyKm per vehicle used.
type Solution struct {
	Routes        []Route
	TotalDistance float64
	VehiclesUsed  int
	Cost          float64
}

// Params tunes Solve. Zero values take defaults.
type Params struct {
	Seed        int64
	TimeBudget  time.Duration
	Restarts    int
	StagnantMax int // penalty rounds without a new incumbent before stopping
}

// Telemetry describes how a solve went.
type Telemetry struct {
	Iterations       int
	Improvements     int
	Diversifications int
	Restarts         int
	BestRestart      int
	SeedCost         float64
	BestCost         float64
	Elapsed          time.Duration
}

type runResult struct {
	sol      Solution
	restart  int
	iters    int
	improves int
	divers   int
	seedCost float64
}

// Solve finds a low-cost feasible route set for p. Construction is cheapest
// insertion over VMin vehicles; improvement is relocate/exchange/2-opt local
// search; escape from local optima penalizes the highest-utility edges and
// resumes. Restarts run in parallel against one shared deadline and the
// winner is picked by (cost, restart index), never by completion order, so
// identical Problem and Params yield identical output whenever the search
// reaches quiescence inside the budget.
func Solve(ctx context.Context, p Problem, params Params) (Solution, Telemetry, error) {
	start := time.Now()
	if params.TimeBudget <= 0 {
		params.TimeBudget = DefaultTimeBudget
	}
	if params.Restarts <= 0 {
		params.Restarts = DefaultRestarts
	}
	if params.StagnantMax <= 0 {
		params.StagnantMax = defaultStagnantMax
	}
	if p.TotalDemand() == 0 {
		return Solution{}, Telemetry{Restarts: params.Restarts, Elapsed: time.Since(start)}, nil
	}
	if p.VehicleCap <= 0 || p.DepotRemaining <= 0 {
		return Solution{}, Telemetry{Elapsed: time.Since(start)}, ErrInfeasible
	}
	for _, nd := range p.Nodes {
		// each farm is visited at most once, so demand above one vehicle's
		// capacity has no feasible route set; callers hand such days to
		// GreedyFallback, which may split a farm
		if nd.Demand > p.VehicleCap {
			return Solution{}, Telemetry{Elapsed: time.Since(start)}, ErrInfeasible
		}
	}

	deadline := start.Add(params.TimeBudget)
	runs := make([]runResult, params.Restarts)
	var wg sync.WaitGroup
	for i := 0; i < params.Restarts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(restartSeed(params.Seed, i)))
			runs[i] = solveOne(ctx, p, rng, i, deadline, params.StagnantMax)
		}(i)
	}
	wg.Wait()

	best := runs[0]
	tel := Telemetry{Restarts: params.Restarts}
	for _, r := range runs {
		tel.Iterations += r.iters
		tel.Improvements += r.improves
		tel.Diversifications += r.divers
		if r.restart > 0 && r.sol.Cost < best.sol.Cost {
			best = r
		}
	}
	tel.BestRestart = best.restart
	tel.SeedCost = best.seedCost
	tel.BestCost = best.sol.Cost
	tel.Elapsed = time.Since(start)
	return best.sol, tel, nil
}

func restartSeed(seed int64, i int) int64 {
	return int64(uint64(seed) + uint64(i)*0x9E3779B97F4A7C15)
}

func solveOne(ctx context.Context, p Problem, rng *rand.Rand, restart int, deadline time.Time, stagnantMax int) runResult {
	n := len(p.Nodes)
	s := &search{p: p, n: n, pen: make([]int, n*n)}
	rts := s.construct(rng, restart > 0)
	s.improve(ctx, rts, deadline)
	best := cloneRoutes(rts)
	bestCost := s.trueCost(rts)
	res := runResult{restart: restart, seedCost: bestCost, iters: 1}
	if edges := edgeCount(rts); edges > 0 {
		s.lambda = glsAlpha * bestCost / float64(edges)
	}
	stagnant := 0
	for stagnant < stagnantMax && ctx.Err() == nil && time.Now().Before(deadline) {
		s.penalize(rts)
		res.divers++
		s.improve(ctx, rts, deadline)
		res.iters++
		c := s.trueCost(rts)
		if c < bestCost-epsImprove {
			best = cloneRoutes(rts)
			bestCost = c
			res.improves++
			stagnant = 0
		} else {
			stagnant++
		}
	}
	res.sol = s.extract(best)
	return res
}

type searchRoute struct {
	order []int // node indices, depot excluded
	load  int
}

type search struct {
	p      Problem
	n      int
	pen    []int // edge penalty counts, indexed a*n+b with a < b
	lambda float64
}

func (s *search) ekey(a, b int) int {
	if a > b {
		a, b = b, a
	}
	return a*s.n + b
}

// ae is the augmented edge cost: true distance plus the accumulated
// guided-local-search penalty.
func (s *search) ae(a, b int) float64 {
	d := s.p.Dist[a][b]
	if s.lambda > 0 {
		if c := s.pen[s.ekey(a, b)]; c > 0 {
			d += s.lambda * float64(c)
		}
	}
	return d
}

// construct builds an initial feasible assignment by cheapest insertion over
// VMin routes, opening an extra route only when nothing fits. With grasp set
// the pick is randomized among the three cheapest candidates, which is what
// differentiates restarts.
func (s *search) construct(rng *rand.Rand, grasp bool) []searchRoute {
	p := s.p
	rts := make([]searchRoute, p.VMin())
	unassigned := make([]int, 0, len(p.Nodes)-1)
	for i := 1; i < len(p.Nodes); i++ {
		unassigned = append(unassigned, i)
	}
	type cand struct {
		node, route, pos int
		delta            float64
	}
	for len(unassigned) > 0 {
		cands := make([]cand, 0, len(unassigned))
		for _, nd := range unassigned {
			demand := p.Nodes[nd].Demand
			best := cand{node: nd, route: -1}
			for ri := range rts {
				if rts[ri].load+demand > p.VehicleCap {
					continue
				}
				if p.MaxStopsPerRoute > 0 && len(rts[ri].order)+1 > p.MaxStopsPerRoute {
					continue
				}
				pos, add := s.bestInsert(rts[ri], nd)
				if best.route == -1 || add < best.delta {
					best.route, best.pos, best.delta = ri, pos, add
				}
			}
			if best.route >= 0 {
				cands = append(cands, best)
			}
		}
		if len(cands) == 0 {
			rts = append(rts, searchRoute{})
			continue
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].delta != cands[j].delta {
				return cands[i].delta < cands[j].delta
			}
			return cands[i].node < cands[j].node
		})
		pick := 0
		if grasp {
			k := 3
			if len(cands) < k {
				k = len(cands)
			}
			pick = rng.Intn(k)
		}
		c := cands[pick]
		r := &rts[c.route]
		r.order = append(r.order, 0)
		copy(r.order[c.pos+1:], r.order[c.pos:])
		r.order[c.pos] = c.node
		r.load += p.Nodes[c.node].Demand
		for i, v := range unassigned {
			if v == c.node {
				unassigned = append(unassigned[:i], unassigned[i+1:]...)
				break
			}
		}
	}
	return rts
}

// bestInsert returns the cheapest insertion position for node in r under the
// augmented cost. Ties keep the earliest position.
func (s *search) bestInsert(r searchRoute, node int) (int, float64) {
	bestPos, bestAdd := 0, 0.0
	for pos := 0; pos <= len(r.order); pos++ {
		prev, next := 0, 0
		if pos > 0 {
			prev = r.order[pos-1]
		}
		if pos < len(r.order) {
			next = r.order[pos]
		}
		add := s.ae(prev, node) + s.ae(node, next) - s.ae(prev, next)
		if pos == 0 || add < bestAdd {
			bestPos, bestAdd = pos, add
		}
	}
	return bestPos, bestAdd
}

// improve runs relocate, exchange and 2-opt to a local optimum of the
// augmented cost. The deadline is checked between single moves, so the
// search overruns by at most one move evaluation sweep.
func (s *search) improve(ctx context.Context, rts []searchRoute, deadline time.Time) {
	for {
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return
		}
		if s.relocateOnce(rts) {
			continue
		}
		if s.exchangeOnce(rts) {
			continue
		}
		if s.twoOptOnce(rts) {
			continue
		}
		return
	}
}

// removeDelta is the augmented cost saved by dropping the stop at position
// pi from r.
func (s *search) removeDelta(r searchRoute, pi int) float64 {
	node := r.order[pi]
	prev, next := 0, 0
	if pi > 0 {
		prev = r.order[pi-1]
	}
	if pi < len(r.order)-1 {
		next = r.order[pi+1]
	}
	return s.ae(prev, node) + s.ae(node, next) - s.ae(prev, next)
}

func (s *search) relocateOnce(rts []searchRoute) bool {
	for ri := range rts {
		for pi := 0; pi < len(rts[ri].order); pi++ {
			node := rts[ri].order[pi]
			demand := s.p.Nodes[node].Demand
			gain := s.removeDelta(rts[ri], pi)
			for rj := range rts {
				if rj == ri {
					continue
				}
				if rts[rj].load+demand > s.p.VehicleCap {
					continue
				}
				if s.p.MaxStopsPerRoute > 0 && len(rts[rj].order)+1 > s.p.MaxStopsPerRoute {
					continue
				}
				pos, add := s.bestInsert(rts[rj], node)
				delta := add - gain
				if len(rts[ri].order) == 1 {
					delta -= s.p.VehiclePenaltyKm
				}
				if len(rts[rj].order) == 0 {
					delta += s.p.VehiclePenaltyKm
				}
				if delta < -epsImprove {
					src := &rts[ri]
					src.order = append(src.order[:pi], src.order[pi+1:]...)
					src.load -= demand
					dst := &rts[rj]
					dst.order = append(dst.order, 0)
					copy(dst.order[pos+1:], dst.order[pos:])
					dst.order[pos] = node
					dst.load += demand
					return true
				}
			}
		}
	}
	return false
}

func (s *search) exchangeOnce(rts []searchRoute) bool {
	for ri := 0; ri < len(rts); ri++ {
		for rj := ri + 1; rj < len(rts); rj++ {
			for pi := 0; pi < len(rts[ri].order); pi++ {
				a := rts[ri].order[pi]
				da := s.p.Nodes[a].Demand
				for pj := 0; pj < len(rts[rj].order); pj++ {
					b := rts[rj].order[pj]
					db := s.p.Nodes[b].Demand
					if rts[ri].load-da+db > s.p.VehicleCap || rts[rj].load-db+da > s.p.VehicleCap {
						continue
					}
					delta := s.replaceDelta(rts[ri], pi, b) + s.replaceDelta(rts[rj], pj, a)
					if delta < -epsImprove {
						rts[ri].order[pi], rts[rj].order[pj] = b, a
						rts[ri].load += db - da
						rts[rj].load += da - db
						return true
					}
				}
			}
		}
	}
	return false
}

// replaceDelta is the augmented cost change of substituting node nw for the
// stop at position pi of r.
func (s *search) replaceDelta(r searchRoute, pi, nw int) float64 {
	old := r.order[pi]
	prev, next := 0, 0
	if pi > 0 {
		prev = r.order[pi-1]
	}
	if pi < len(r.order)-1 {
		next = r.order[pi+1]
	}
	return s.ae(prev, nw) + s.ae(nw, next) - s.ae(prev, old) - s.ae(old, next)
}

func (s *search) twoOptOnce(rts []searchRoute) bool {
	for ri := range rts {
		order := rts[ri].order
		for i := 0; i < len(order)-1; i++ {
			prev := 0
			if i > 0 {
				prev = order[i-1]
			}
			for j := i + 1; j < len(order); j++ {
				next := 0
				if j < len(order)-1 {
					next = order[j+1]
				}
				delta := s.ae(prev, order[j]) + s.ae(order[i], next) -
					s.ae(prev, order[i]) - s.ae(order[j], next)
				if delta < -epsImprove {
					for lo, hi := i, j; lo < hi; lo, hi = lo+1, hi-1 {
						order[lo], order[hi] = order[hi], order[lo]
					}
					return true
				}
			}
		}
	}
	return false
}

// penalize increments the penalty of every solution edge whose utility
// distance/(1+penalty) is maximal, steering the next improvement run away
// from the longest entrenched edges.
func (s *search) penalize(rts []searchRoute) {
	maxUtil := -1.0
	forEachEdge(rts, func(a, b int) {
		u := s.p.Dist[a][b] / float64(1+s.pen[s.ekey(a, b)])
		if u > maxUtil {
			maxUtil = u
		}
	})
	if maxUtil <= 0 {
		return
	}
	forEachEdge(rts, func(a, b int) {
		u := s.p.Dist[a][b] / float64(1+s.pen[s.ekey(a, b)])
		if u >= maxUtil-1e-12 {
			s.pen[s.ekey(a, b)]++
		}
	})
}

func forEachEdge(rts []searchRoute, fn func(a, b int)) {
	for _, r := range rts {
		if len(r.order) == 0 {
			continue
		}
		prev := 0
		for _, nd := range r.order {
			fn(prev, nd)
			prev = nd
		}
		fn(prev, 0)
	}
}

func edgeCount(rts []searchRoute) int {
	total := 0
	for _, r := range rts {
		if len(r.order) > 0 {
			total += len(r.order) + 1
		}
	}
	return total
}

// trueCost is the unpenalized objective of the working state.
func (s *search) trueCost(rts []searchRoute) float64 {
	total := 0.0
	used := 0
	for _, r := range rts {
		if len(r.order) == 0 {
			continue
		}
		used++
		prev := 0
		for _, nd := range r.order {
			total += s.p.Dist[prev][nd]
			prev = nd
		}
		total += s.p.Dist[prev][0]
	}
	return total + float64(used)*s.p.VehiclePenaltyKm
}

func cloneRoutes(rts []searchRoute) []searchRoute {
	out := make([]searchRoute, len(rts))
	for i, r := range rts {
		out[i] = searchRoute{order: append([]int(nil), r.order...), load: r.load}
	}
	return out
}

// extract fixes loads in visiting order under the facility's remaining
// intake, drops stops that end up loading nothing and routes that end up
// empty, and recomputes distances over the kept stops.
func (s *search) extract(rts []searchRoute) Solution {
	p := s.p
	depotLeft := p.DepotRemaining
	var sol Solution
	for _, r := range rts {
		if len(r.order) == 0 {
			continue
		}
		stops := make([]Stop, 0, len(r.order))
		vehLeft := p.VehicleCap
		for _, nd := range r.order {
			if depotLeft <= 0 {
				break
			}
			load := p.Nodes[nd].Demand
			if load > vehLeft {
				load = vehLeft
			}
			if load > depotLeft {
				load = depotLeft
			}
			if load <= 0 {
				continue
			}
			stops = append(stops, Stop{Node: nd, Units: load})
			vehLeft -= load
			depotLeft -= load
		}
		if len(stops) == 0 {
			continue
		}
		dist := stopsDistance(p, stops)
		sol.Routes = append(sol.Routes, Route{Stops: stops, Distance: dist})
		sol.TotalDistance += dist
	}
	sol.VehiclesUsed = len(sol.Routes)
	sol.Cost = sol.TotalDistance + float64(sol.VehiclesUsed)*p.VehiclePenaltyKm
	return sol
}

func stopsDistance(p Problem, stops []Stop) float64 {
	total := 0.0
	prev := 0
	for _, st := range stops {
		total += p.Dist[prev][st.Node]
		prev = st.Node
	}
	return total + p.Dist[prev][0]
}
