package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testNotifier(url, secret string, maxAttempts int, client *http.Client) *Notifier {
	return &Notifier{
		URL:         url,
		Secret:      secret,
		MaxAttempts: maxAttempts,
		HTTP:        client,
		stop:        make(chan struct{}),
	}
}

func TestProcessOnceDeliversSignedEvent(t *testing.T) {
	var mu sync.Mutex
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody = body
		mu.Unlock()
		w.WriteHeader(200)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, "secret", 3, srv.Client())
	n.Emit("plan.completed", map[string]any{"id": "opt-1"})
	if n.Pending() != 1 {
		t.Fatalf("expected one queued delivery, got %d", n.Pending())
	}

	n.processOnce()

	mu.Lock()
	defer mu.Unlock()
	if gotType != "plan.completed" {
		t.Fatalf("wrong event type header: %q", gotType)
	}
	if gotSig == "" || !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature did not verify: sig=%q body=%s", gotSig, gotBody)
	}
	if n.Pending() != 0 {
		t.Fatalf("delivered event should leave the queue, %d left", n.Pending())
	}
}

func TestProcessOnceRetriesLater(t *testing.T) {
	hits := 0
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(500)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, "", 3, srv.Client())
	n.Emit("plan.completed", nil)
	n.processOnce()

	if n.Pending() != 1 {
		t.Fatalf("failed delivery should be requeued, %d queued", n.Pending())
	}
	// the retry is scheduled in the future, an immediate pass skips it
	n.processOnce()
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("retry should wait for backoff, got %d hits", hits)
	}
}

func TestProcessOnceDropsAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	n := testNotifier(srv.URL, "", 1, srv.Client())
	n.Emit("plan.truncated", nil)
	n.processOnce()
	if n.Pending() != 0 {
		t.Fatalf("exhausted delivery should be dropped, %d queued", n.Pending())
	}
}

func TestDisabledNotifierIgnoresEmit(t *testing.T) {
	n := testNotifier("", "secret", 3, http.DefaultClient)
	n.Emit("plan.completed", nil)
	if n.Pending() != 0 {
		t.Fatalf("disabled notifier queued a delivery")
	}
	var nilNotifier *Notifier
	if nilNotifier.Enabled() {
		t.Fatalf("nil notifier reported enabled")
	}
	nilNotifier.Close()
}

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	sig := SignHMAC("s3cret", body)
	if !VerifyHMAC("s3cret", body, sig) {
		t.Fatalf("signature should verify")
	}
	if VerifyHMAC("s3cret", []byte(`{"id":"evt_2"}`), sig) {
		t.Fatalf("tampered body should not verify")
	}
	if VerifyHMAC("other", body, sig) {
		t.Fatalf("wrong secret should not verify")
	}
	if VerifyHMAC("s3cret", body, "not-hex") {
		t.Fatalf("malformed signature should not verify")
	}
}

func TestNextBackoffCapsAtOneHour(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{11, 2048 * time.Second},
		{12, time.Hour},
		{20, time.Hour},
		{-1, time.Second},
	}
	for _, c := range cases {
		if got := nextBackoff(c.attempts); got != c.want {
			t.Fatalf("nextBackoff(%d) = %v, want %v", c.attempts, got, c.want)
		}
	}
}
