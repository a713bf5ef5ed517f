package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/54b3r/docintel-go/internal/logging"
)

// okHandler answers 200 so tests can tell pass-through from rejection.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func hit(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/query", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 3, logging.Discard())
	defer stop()
	h := rl.middleware(okHandler)

	for i := range 3 {
		if w := hit(h, "10.0.0.1:1000"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: want 200, got %d", i, w.Code)
		}
	}

	w := hit(h, "10.0.0.1:1001")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over burst: want 429, got %d", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra == "" || ra == "0" {
		t.Errorf("Retry-After: got %q", ra)
	}
	if got := decode[errorResponse](t, w).Error; got != "rate limit exceeded" {
		t.Errorf("error body: got %q", got)
	}
}

func TestRateLimit_RejectionDoesNotConsumeTokens(t *testing.T) {
	t.Parallel()

	// One token per 50ms; rejected attempts must not push the refill back.
	rl, stop := newRateLimiter(20, 1, logging.Discard())
	defer stop()
	h := rl.middleware(okHandler)

	hit(h, "10.0.0.9:1")
	for range 5 {
		hit(h, "10.0.0.9:1")
	}
	time.Sleep(80 * time.Millisecond)
	if w := hit(h, "10.0.0.9:1"); w.Code != http.StatusOK {
		t.Errorf("after refill: want 200, got %d", w.Code)
	}
}

func TestRateLimit_ClientsAreIsolated(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 1, logging.Discard())
	defer stop()
	h := rl.middleware(okHandler)

	for range 4 {
		hit(h, "192.168.1.1:1111")
	}
	if w := hit(h, "192.168.1.2:2222"); w.Code != http.StatusOK {
		t.Errorf("second client: want 200, got %d", w.Code)
	}
}

func TestRateLimit_SweepDropsIdleClients(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, logging.Discard())
	defer stop()

	now := time.Now()
	rl.bucket("a", now.Add(-10*time.Minute))
	rl.bucket("b", now)
	rl.sweep(now)

	if got := rl.size(); got != 1 {
		t.Errorf("want 1 client after sweep, got %d", got)
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		0:                       "1",
		300 * time.Millisecond:  "1",
		1500 * time.Millisecond: "2",
		42 * time.Second:        "42",
	}
	for d, want := range cases {
		if got := retryAfter(d); got != want {
			t.Errorf("retryAfter(%v): want %q, got %q", d, want, got)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"127.0.0.1:54321": "127.0.0.1",
		"[::1]:8080":      "::1",
		"10.0.0.1:80":     "10.0.0.1",
		"noport":          "noport",
	}
	for addr, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if got := clientIP(req); got != want {
			t.Errorf("RemoteAddr=%q: want %q, got %q", addr, want, got)
		}
	}
}
