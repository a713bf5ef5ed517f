package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/version"
)

// probeTimeout bounds each dependency probe so /api/ready answers quickly
// even when the model backend or Qdrant hangs.
const probeTimeout = 5 * time.Second

// Pinger reports whether one external dependency is reachable.
// Implementations must be safe for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency answered within ctx.
	Ping(ctx context.Context) error
	// Name labels the dependency in the readiness body (e.g. "ollama", "qdrant").
	Name() string
}

// healthResponse is the body of GET /api/health.
type healthResponse struct {
	// Status is always "ok"; the process answering is the liveness signal.
	Status string `json:"status"`
	// Version is the running build.
	Version string `json:"version"`
}

// readyCheck is the outcome of one probe.
type readyCheck struct {
	// Name is the Pinger's label.
	Name string `json:"name"`
	// OK is true when the probe succeeded.
	OK bool `json:"ok"`
	// Error is the probe failure, empty on success.
	Error string `json:"error,omitempty"`
	// LatencyMS is how long the probe took.
	LatencyMS int64 `json:"latency_ms"`
}

// readyResponse is the body of GET /api/ready.
type readyResponse struct {
	// Ready is true only when every check passed.
	Ready bool `json:"ready"`
	// Checks lists probe results in registration order.
	Checks []readyCheck `json:"checks"`
}

// handleHealth handles GET /api/health. It never touches a dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Version: version.Version})
}

// handleReady handles GET /api/ready. All probes run concurrently, each under
// probeTimeout; the endpoint answers 503 when any of them fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := runProbes(r.Context(), s.pingers)

	resp := readyResponse{Ready: true, Checks: checks}
	log := logging.FromContext(r.Context())
	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", c.Name),
				slog.String("error", c.Error),
			)
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

// runProbes pings every dependency in parallel. A failed probe is recorded
// in its check rather than returned, so one slow dependency cannot hide the
// state of the others.
func runProbes(ctx context.Context, pingers []Pinger) []readyCheck {
	checks := make([]readyCheck, len(pingers))
	var g errgroup.Group
	for i, p := range pingers {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(probeCtx)
			checks[i] = readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return checks
}
