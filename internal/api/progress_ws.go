package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"herdroute/internal/metrics"
	"herdroute/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn serializes writes; the websocket package allows one writer at a time.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// ProgressWSHandler handles /v1/optimize/ws. After connection_init the
// client sends subscribe with an optimize request as payload; the server
// streams one next message per planned day, a final next with the full plan,
// then complete. A client complete cancels the run.
func (s *Server) ProgressWSHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required", r.URL.Path)
		return
	}
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw}
	defer func() { _ = raw.Close() }()

	raw.SetReadLimit(1 << 20)
	resetDeadline := func() { _ = raw.SetReadDeadline(time.Now().Add(60 * time.Second)) }
	resetDeadline()
	raw.SetPongHandler(func(string) error { resetDeadline(); return nil })

	// id -> cancel for in-flight runs
	subs := map[string]context.CancelFunc{}
	var wg sync.WaitGroup
	defer func() {
		for _, cancel := range subs {
			cancel()
		}
		wg.Wait()
	}()

	for {
		var msg wsMessage
		if err := raw.ReadJSON(&msg); err != nil {
			return
		}
		resetDeadline()
		switch msg.Type {
		case "connection_init":
			_ = conn.writeJSON(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := conn.writeJSON(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = conn.writeJSON(wsMessage{Type: "pong"})
		case "pong":
			// deadline already extended by the read
		case "subscribe":
			fail := func(detail string) {
				p, _ := json.Marshal(map[string]string{"message": detail})
				_ = conn.writeJSON(wsMessage{Type: "error", ID: msg.ID, Payload: p})
				_ = conn.writeJSON(wsMessage{Type: "complete", ID: msg.ID})
			}
			if msg.ID == "" {
				fail("subscription id required")
				continue
			}
			if _, exists := subs[msg.ID]; exists {
				fail("subscription id in use")
				continue
			}
			if !s.limiter.Allow() {
				metrics.OptimizeRuns.WithLabelValues("throttled").Inc()
				fail("optimize rate limit exceeded")
				continue
			}
			var req model.OptimizeRequest
			dec := json.NewDecoder(bytes.NewReader(msg.Payload))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				metrics.OptimizeRuns.WithLabelValues("invalid").Inc()
				fail("invalid request: " + err.Error())
				continue
			}
			if err := req.Validate(); err != nil {
				metrics.OptimizeRuns.WithLabelValues("invalid").Inc()
				fail("invalid request: " + err.Error())
				continue
			}
			ctx, cancel := context.WithCancel(r.Context())
			subs[msg.ID] = cancel
			wg.Add(1)
			go s.runSubscription(ctx, conn, msg.ID, req, &wg)
		case "complete":
			if cancel, ok := subs[msg.ID]; ok {
				cancel()
				delete(subs, msg.ID)
			}
		default:
			// ignore
		}
	}
}

func (s *Server) runSubscription(ctx context.Context, conn *wsConn, subID string, req model.OptimizeRequest, wg *sync.WaitGroup) {
	defer wg.Done()
	planID := "opt-" + uuid.NewString()
	next := func(eventType string, data any) {
		payload, _ := json.Marshal(Event{Type: eventType, PlanID: planID, Data: data})
		_ = conn.writeJSON(wsMessage{Type: "next", ID: subID, Payload: payload})
	}

	started := Event{Type: "plan.started", PlanID: planID, Data: map[string]any{
		"farms":   len(req.Farms),
		"horizon": req.Options().HorizonDays,
	}}
	next(started.Type, started.Data)
	s.publish(started)

	out, err := s.Sched.Run(ctx, planID, req, func(day model.DayPlan) {
		next("plan.day.completed", day)
		s.publish(Event{Type: "plan.day.completed", PlanID: planID, Data: day})
	})
	if err != nil {
		metrics.OptimizeRuns.WithLabelValues("error").Inc()
		s.publish(Event{Type: "plan.failed", PlanID: planID, Data: map[string]any{"error": err.Error()}})
		p, _ := json.Marshal(map[string]string{"message": err.Error()})
		_ = conn.writeJSON(wsMessage{Type: "error", ID: subID, Payload: p})
		_ = conn.writeJSON(wsMessage{Type: "complete", ID: subID})
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
	next("plan.completed", out)
	_ = conn.writeJSON(wsMessage{Type: "complete", ID: subID})
}
