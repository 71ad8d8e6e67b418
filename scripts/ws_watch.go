// Package main runs a demo WebSocket client: it submits an optimize request
// over /v1/optimize/ws and prints the per-day progress events.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var demoRequest = []byte(`{
  "facility": {"id": "plant-1", "name": "Demo Plant", "location": {"lat": 40.0, "lng": -3.0}, "daily_capacity": 300},
  "farms": [
    {"id": "farm-1", "location": {"lat": 40.12, "lng": -3.02}, "available_units": 120},
    {"id": "farm-2", "location": {"lat": 40.21, "lng": -2.95}, "available_units": 90},
    {"id": "farm-3", "location": {"lat": 39.88, "lng": -3.11}, "available_units": 150}
  ],
  "vehicle_capacity": 150,
  "horizon_days": 3,
  "seed": 42
}`)

func main() {
	reqPath := flag.String("f", "", "optimize request JSON, demo request when empty")
	flag.Parse()

	payload := demoRequest
	if *reqPath != "" {
		b, err := os.ReadFile(*reqPath)
		if err != nil {
			log.Fatal(err)
		}
		payload = b
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/optimize/ws"}
	hdr := http.Header{}
	if tok := os.Getenv("AUTH_TOKEN"); tok != "" {
		hdr.Set("Authorization", "Bearer "+tok)
	}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	var ack wsMessage
	if err := c.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" {
		log.Fatalf("handshake failed: %+v err=%v", ack, err)
	}

	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: payload}); err != nil {
		log.Fatal(err)
	}

	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			log.Fatalf("read: %v", err)
		}
		switch m.Type {
		case "ping":
			_ = c.WriteJSON(wsMessage{Type: "pong"})
		case "next", "error":
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		case "complete":
			log.Printf("WS <- complete")
			return
		}
	}
}
