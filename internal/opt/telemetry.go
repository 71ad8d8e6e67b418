package opt

import "sync"

// Algorithm labels recorded with each run.
const (
	AlgoSearch = "gls"
	AlgoGreedy = "greedy"
)

// RunRecord is one day's solver outcome, kept for inspection via the admin
// surface.
type RunRecord struct {
	PlanID           string  `json:"plan_id"`
	Date             string  `json:"date"`
	Algo             string  `json:"algo"`
	Infeasible       bool    `json:"infeasible"`
	Iterations       int     `json:"iterations"`
	Improvements     int     `json:"improvements"`
	Diversifications int     `json:"diversifications"`
	Restarts         int     `json:"restarts"`
	BestRestart      int     `json:"best_restart"`
	SeedCost         float64 `json:"seed_cost"`
	BestCost         float64 `json:"best_cost"`
	ElapsedMS        float64 `json:"elapsed_ms"`
}

// NewRunRecord flattens a Telemetry into a RunRecord.
func NewRunRecord(planID, date, algo string, tel Telemetry, infeasible bool) RunRecord {
	return RunRecord{
		PlanID:           planID,
		Date:             date,
		Algo:             algo,
		Infeasible:       infeasible,
		Iterations:       tel.Iterations,
		Improvements:     tel.Improvements,
		Diversifications: tel.Diversifications,
		Restarts:         tel.Restarts,
		BestRestart:      tel.BestRestart,
		SeedCost:         tel.SeedCost,
		BestCost:         tel.BestCost,
		ElapsedMS:        float64(tel.Elapsed.Microseconds()) / 1000,
	}
}

// RunLog is a bounded in-memory log of recent solver runs.
type RunLog struct {
	mu   sync.Mutex
	max  int
	recs []RunRecord
}

func NewRunLog(capacity int) *RunLog {
	if capacity <= 0 {
		capacity = 256
	}
	return &RunLog{max: capacity}
}

// Record appends r, evicting the oldest entries beyond capacity.
func (l *RunLog) Record(r RunRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, r)
	if len(l.recs) > l.max {
		l.recs = append([]RunRecord(nil), l.recs[len(l.recs)-l.max:]...)
	}
}

// ByPlan returns the records for one plan id, oldest first.
func (l *RunLog) ByPlan(id string) []RunRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []RunRecord{}
	for _, r := range l.recs {
		if r.PlanID == id {
			out = append(out, r)
		}
	}
	return out
}

// Recent returns up to n records, newest first.
func (l *RunLog) Recent(n int) []RunRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.recs) {
		n = len(l.recs)
	}
	out := make([]RunRecord, 0, n)
	for i := len(l.recs) - 1; i >= len(l.recs)-n; i-- {
		out = append(out, l.recs[i])
	}
	return out
}
