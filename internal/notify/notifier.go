// Package notify delivers plan lifecycle events to a configured HTTP
// endpoint with signed payloads and retry backoff. The queue is held in
// memory only: a restart drops undelivered events.
package notify

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type delivery struct {
	id        string
	eventType string
	payload   []byte
	attempts  int
	dueAt     time.Time
}

// Notifier queues events for the background worker. A Notifier with an empty
// URL is disabled and Emit becomes a no-op, so callers never need to branch.
type Notifier struct {
	URL         string
	Secret      string
	MaxAttempts int
	HTTP        *http.Client

	mu    sync.Mutex
	queue []*delivery
	stop  chan struct{}
	once  sync.Once
}

// NewFromEnv builds a Notifier from NOTIFY_URL, NOTIFY_SECRET and
// NOTIFY_MAX_ATTEMPTS.
func NewFromEnv() *Notifier {
	max := 10
	if v := os.Getenv("NOTIFY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}
	return &Notifier{
		URL:         os.Getenv("NOTIFY_URL"),
		Secret:      os.Getenv("NOTIFY_SECRET"),
		MaxAttempts: max,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		stop:        make(chan struct{}),
	}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.URL != ""
}

// Emit wraps data in the event envelope and queues it for delivery.
func (n *Notifier) Emit(eventType string, data any) {
	if !n.Enabled() {
		return
	}
	payload := map[string]any{
		"id":   "evt_" + uuid.NewString(),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	n.mu.Lock()
	n.queue = append(n.queue, &delivery{
		id:        uuid.NewString(),
		eventType: eventType,
		payload:   body,
		dueAt:     time.Now(),
	})
	n.mu.Unlock()
}

// Pending reports how many deliveries are still queued.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// popDue removes and returns up to limit deliveries whose retry time has
// passed. Items requeue through push on failure.
func (n *Notifier) popDue(now time.Time, limit int) []*delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	var due []*delivery
	rest := n.queue[:0]
	for _, d := range n.queue {
		if len(due) < limit && !d.dueAt.After(now) {
			due = append(due, d)
			continue
		}
		rest = append(rest, d)
	}
	n.queue = rest
	return due
}

func (n *Notifier) push(d *delivery) {
	n.mu.Lock()
	n.queue = append(n.queue, d)
	n.mu.Unlock()
}
