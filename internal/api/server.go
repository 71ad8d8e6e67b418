package api

import (
	"log"
	"os"
	"strconv"

	"golang.org/x/time/rate"

	"herdroute/internal/config"
	"herdroute/internal/notify"
	"herdroute/internal/opt"
	"herdroute/internal/plan"
)

// Server wires the scheduler, event broker and notifier behind the HTTP
// handlers.
type Server struct {
	Cfg    config.Optimizer
	Sched  *plan.Scheduler
	RunLog *opt.RunLog
	Broker EventBroker
	Notify *notify.Notifier

	authToken string
	limiter   *rate.Limiter
}

// NewServer builds a Server from the environment: CONFIG_PATH points at the
// optimizer YAML, REDIS_URL switches event fanout to Redis, AUTH_TOKEN
// closes the API, RATE_RPS and RATE_BURST bound optimize load.
func NewServer() (*Server, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker unavailable, falling back to in-memory: %v", err)
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	runLog := opt.NewRunLog(cfg.RunLogSize)
	return &Server{
		Cfg:       cfg,
		Sched:     plan.New(cfg, runLog),
		RunLog:    runLog,
		Broker:    broker,
		Notify:    notify.NewFromEnv(),
		authToken: os.Getenv("AUTH_TOKEN"),
		limiter:   rate.NewLimiter(rate.Limit(envFloat("RATE_RPS", 5)), envInt("RATE_BURST", 10)),
	}, nil
}

// publish fans an event out to the plan's own topic and the firehose.
func (s *Server) publish(evt Event) {
	s.Broker.Publish(evt.PlanID, evt)
	s.Broker.Publish(TopicAll, evt)
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
