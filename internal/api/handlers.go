package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"herdroute/internal/metrics"
	"herdroute/internal/model"
	"herdroute/internal/opt"
)

// OptimizeHandler handles POST /v1/optimize. The plan runs synchronously;
// progress is observable on the stream endpoints while it runs.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAuth(w, r) {
		return
	}
	if !s.limiter.Allow() {
		metrics.OptimizeRuns.WithLabelValues("throttled").Inc()
		writeProblem(w, http.StatusTooManyRequests, "Too many requests", "optimize rate limit exceeded", r.URL.Path)
		return
	}
	req, ok := decodeOptimizeRequest(w, r)
	if !ok {
		metrics.OptimizeRuns.WithLabelValues("invalid").Inc()
		return
	}

	planID := "opt-" + uuid.NewString()
	s.publish(Event{Type: "plan.started", PlanID: planID, Data: map[string]any{
		"farms":   len(req.Farms),
		"horizon": req.Options().HorizonDays,
	}})

	out, err := s.Sched.Run(r.Context(), planID, req, func(day model.DayPlan) {
		s.publish(Event{Type: "plan.day.completed", PlanID: planID, Data: day})
	})
	if err != nil {
		metrics.OptimizeRuns.WithLabelValues("error").Inc()
		s.publish(Event{Type: "plan.failed", PlanID: planID, Data: map[string]any{"error": err.Error()}})
		writeProblem(w, http.StatusInternalServerError, "Optimize failed", err.Error(), r.URL.Path)
		return
	}
	s.recordRunMetrics(planID)
	status := "ok"
	if out.Truncated {
		status = "truncated"
		s.publish(Event{Type: "plan.truncated", PlanID: planID, Data: out.Summary})
	}
	metrics.OptimizeRuns.WithLabelValues(status).Inc()
	s.publish(Event{Type: "plan.completed", PlanID: planID, Data: out.Summary})
	s.Notify.Emit("plan.completed", map[string]any{
		"id":        planID,
		"truncated": out.Truncated,
		"summary":   out.Summary,
	})
	writeJSON(w, http.StatusOK, out)
}

// recordRunMetrics folds the plan's per-day telemetry into the Prometheus
// collectors.
func (s *Server) recordRunMetrics(planID string) {
	for _, rec := range s.RunLog.ByPlan(planID) {
		metrics.SolverDayDuration.WithLabelValues(rec.Algo).Observe(rec.ElapsedMS / 1000)
		if rec.Algo == opt.AlgoGreedy {
			metrics.SolverFallbacks.Inc()
		}
		if rec.Infeasible {
			metrics.InfeasibleDays.Inc()
		}
	}
}

// StreamHandler handles GET /v1/optimize/stream. Without an id parameter the
// stream follows every plan on this broker; with one it follows that plan
// only.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAuth(w, r) {
		return
	}
	topic := r.URL.Query().Get("id")
	if topic == "" {
		topic = TopicAll
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"topic\":%q,\"ts\":%q}\n\n", topic, time.Now().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, _ := json.Marshal(evt)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// SolverRunsHandler handles GET /v1/admin/solver/runs: recent per-day solver
// telemetry, optionally filtered by plan_id.
func (s *Server) SolverRunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAuth(w, r) {
		return
	}
	var items []opt.RunRecord
	if id := r.URL.Query().Get("plan_id"); id != "" {
		items = s.RunLog.ByPlan(id)
	} else {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		items = s.RunLog.Recent(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check broker connectivity when events ride on Redis
	type pinger interface{ Ping(ctx context.Context) error }
	if p, ok := s.Broker.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
