package notify

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"

	"herdroute/internal/metrics"
)

// Start launches the delivery loop. It is a no-op when the notifier is
// disabled.
func (n *Notifier) Start() {
	if !n.Enabled() {
		return
	}
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-n.stop:
				return
			case <-ticker.C:
				n.processOnce()
			}
		}
	}()
}

// Close stops the delivery loop. Queued deliveries are discarded.
func (n *Notifier) Close() {
	if n == nil || n.stop == nil {
		return
	}
	n.once.Do(func() { close(n.stop) })
}

func (n *Notifier) processOnce() {
	due := n.popDue(time.Now(), 50)
	if len(due) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, d := range due {
		status := "error"
		start := time.Now()
		code, err := n.deliver(ctx, d)
		latency := float64(time.Since(start).Milliseconds())
		if err == nil && code >= 200 && code < 300 {
			status = "ok"
			metrics.NotifyDeliveries.WithLabelValues(d.eventType, status).Inc()
			metrics.NotifyLatency.WithLabelValues(d.eventType, status).Observe(latency)
			continue
		}
		d.attempts++
		metrics.NotifyDeliveries.WithLabelValues(d.eventType, status).Inc()
		metrics.NotifyLatency.WithLabelValues(d.eventType, status).Observe(latency)
		if d.attempts >= n.MaxAttempts {
			log.Printf("notify: giving up on %s after %d attempts (last code %d, err %v)", d.eventType, d.attempts, code, err)
			metrics.NotifyDeliveries.WithLabelValues(d.eventType, "dropped").Inc()
			continue
		}
		d.dueAt = time.Now().Add(nextBackoff(d.attempts))
		n.push(d)
	}
}

func (n *Notifier) deliver(ctx context.Context, d *delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(d.payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.eventType)
	if n.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(n.Secret, d.payload))
	}
	resp, err := n.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
	return resp.StatusCode, nil
}

// nextBackoff doubles from one second up to an hour. The shift clamp keeps
// the arithmetic in range; the hour cap is what callers see.
func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		attempts = 12
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
