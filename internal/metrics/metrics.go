package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OptimizeRuns counts plan runs by terminal status
	OptimizeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimize_runs_total", Help: "Optimization runs by outcome."},
		[]string{"status"},
	)
	// SolverDayDuration tracks per-day solve times by algorithm
	SolverDayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "solver_day_duration_seconds", Help: "Single-day solve duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}},
		[]string{"algo"},
	)
	// SolverFallbacks counts days served by the greedy fallback
	SolverFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "solver_fallbacks_total", Help: "Days planned by the greedy fallback."},
	)
	// InfeasibleDays counts days where no collection was possible
	InfeasibleDays = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "solver_infeasible_days_total", Help: "Days with demand but no feasible route."},
	)

	// NotifyDeliveries counts notification delivery outcomes by event type and status
	NotifyDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notify_deliveries_total", Help: "Notification deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// NotifyLatency tracks notification delivery latencies in milliseconds
	NotifyLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "notify_delivery_latency_ms", Help: "Notification delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OptimizeRuns)
		Registry.MustRegister(SolverDayDuration)
		Registry.MustRegister(SolverFallbacks)
		Registry.MustRegister(InfeasibleDays)
		Registry.MustRegister(NotifyDeliveries)
		Registry.MustRegister(NotifyLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
