package server

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/response"
)

// histogramCount returns the sample count of the histogram series of name
// carrying label=value.
func histogramCount(t *testing.T, reg *prometheus.Registry, name, label, value string) uint64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func Test_Metrics_ExposedOnRoute(t *testing.T) {
	t.Parallel()
	s, _ := newRoutedServer(t, newFakeService(), nil)

	// Touch one series so the exposition is not empty.
	do(s, http.MethodGet, "/api/health", "", nil)

	w := do(s, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain exposition, got %q", ct)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `docintel_http_requests_total{code="200",handler="health",method="GET"} 1`) {
		t.Errorf("health request not in exposition:\n%s", body)
	}
}

func Test_Metrics_QueryRecordsCategoryAndDuration(t *testing.T) {
	t.Parallel()
	svc := newFakeService()
	svc.envelope = response.Envelope{Success: true, Category: classifier.Chat, Confidence: 0.95,
		Result: response.MessagePayload{Message: "Hello!"}}
	s, reg := newRoutedServer(t, svc, nil)

	w := do(s, http.MethodPost, "/api/query", "application/json", strings.NewReader(`{"message":"hello there"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}

	if got := counterValue(t, reg, "docintel_query_requests_total", "outcome", "ok"); got != 1 {
		t.Errorf("ok queries: want 1, got %v", got)
	}
	if got := histogramCount(t, reg, "docintel_query_duration_seconds", "category", "chat"); got != 1 {
		t.Errorf("chat duration samples: want 1, got %d", got)
	}
}

func Test_Metrics_RejectedQueryCounted(t *testing.T) {
	t.Parallel()
	s, reg := newRoutedServer(t, newFakeService(), nil)

	w := do(s, http.MethodPost, "/api/query", "application/json",
		strings.NewReader(`{"message":"hi","session_id":"missing"}`))
	if w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
	if got := counterValue(t, reg, "docintel_query_requests_total", "outcome", "rejected"); got != 1 {
		t.Errorf("rejected queries: want 1, got %v", got)
	}
}

func Test_Metrics_ActiveStreamsReturnToZero(t *testing.T) {
	t.Parallel()
	s, reg := newRoutedServer(t, newFakeService(), nil)

	w := do(s, http.MethodPost, "/api/chat", "application/json", strings.NewReader(`{"message":"hi"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "docintel_chat_active_streams" {
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 0 {
				t.Errorf("want 0 open streams after completion, got %v", v)
			}
			return
		}
	}
	t.Error("docintel_chat_active_streams not registered")
}
