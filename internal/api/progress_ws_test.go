package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"herdroute/internal/model"
)

func dialWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(s.ProgressWSHandler))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// wireEvent mirrors the Event envelope with the payload left raw.
type wireEvent struct {
	Type   string          `json:"type"`
	PlanID string          `json:"plan_id"`
	Data   json.RawMessage `json:"data"`
}

func TestProgressWSRunsPlan(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s)

	if err := conn.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != "connection_ack" {
		t.Fatalf("want connection_ack, got %+v", msg)
	}

	if err := conn.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: optimizeBody(t, 2)}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var types []string
	var final wireEvent
	for {
		msg := readWS(t, conn)
		if msg.Type == "ping" {
			continue
		}
		if msg.Type == "complete" {
			if msg.ID != "1" {
				t.Fatalf("complete for wrong subscription: %+v", msg)
			}
			break
		}
		if msg.Type != "next" || msg.ID != "1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
		var evt wireEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if !strings.HasPrefix(evt.PlanID, "opt-") {
			t.Fatalf("bad plan id %q", evt.PlanID)
		}
		types = append(types, evt.Type)
		if evt.Type == "plan.completed" {
			final = evt
		}
	}

	want := []string{"plan.started", "plan.day.completed", "plan.day.completed", "plan.completed"}
	if len(types) != len(want) {
		t.Fatalf("want events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d: want %s, got %s", i, want[i], types[i])
		}
	}

	var out model.PeriodPlan
	if err := json.Unmarshal(final.Data, &out); err != nil {
		t.Fatalf("decode final plan: %v", err)
	}
	if len(out.Days) != 2 || out.Summary.TotalUnitsCollected != 140 {
		t.Fatalf("bad final plan: days=%d summary=%+v", len(out.Days), out.Summary)
	}
}

func TestProgressWSPingPong(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s)
	if err := conn.WriteJSON(wsMessage{Type: "ping"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != "pong" {
		t.Fatalf("want pong, got %+v", msg)
	}
}

func TestProgressWSRejectsInvalidRequest(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s)

	if err := conn.WriteJSON(wsMessage{Type: "subscribe", ID: "bad", Payload: json.RawMessage(`{"farms":[]}`)}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msg := readWS(t, conn)
	if msg.Type != "error" || msg.ID != "bad" {
		t.Fatalf("want error for bad, got %+v", msg)
	}
	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(msg.Payload, &detail); err != nil || detail.Message == "" {
		t.Fatalf("error payload should carry a message: %s", msg.Payload)
	}
	if msg = readWS(t, conn); msg.Type != "complete" || msg.ID != "bad" {
		t.Fatalf("want complete after error, got %+v", msg)
	}
}

func TestProgressWSRequiresSubscriptionID(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s)

	if err := conn.WriteJSON(wsMessage{Type: "subscribe", Payload: optimizeBody(t, 1)}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != "error" {
		t.Fatalf("want error, got %+v", msg)
	}
	if msg := readWS(t, conn); msg.Type != "complete" {
		t.Fatalf("want complete, got %+v", msg)
	}
}

func TestProgressWSAuthBeforeUpgrade(t *testing.T) {
	s := newTestServer(t)
	s.authToken = "sesame"
	srv := httptest.NewServer(http.HandlerFunc(s.ProgressWSHandler))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial should fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want a 401 handshake response, got %+v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer sesame"}})
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	_ = conn.Close()
}
