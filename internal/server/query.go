package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/docintel-go/internal/agent"
	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/response"
	"github.com/54b3r/docintel-go/internal/task"
)

// handleQuery handles POST /api/query. The body is an agent.QueryRequest; a
// missing session_id starts a new session. The response is always the query
// envelope, whose success flag reports handler failures.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req agent.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = s.svc.CreateSession()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	env, err := s.svc.Query(ctx, req)
	if err != nil {
		s.metrics.queryRequestsTotal.WithLabelValues("none", "rejected").Inc()
		writeServiceError(w, r, err)
		return
	}
	s.observeQuery(env, start)
	writeJSON(w, r, http.StatusOK, env)
}

// handleSummarize handles POST /api/summarize.
func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	sum, err := s.svc.Summarize(ctx, req.Text, req.Style, req.Audience)
	s.writeDirect(w, r, start, classifier.Summarization, "direct summarization request", req.Text, sum, err)
}

// handleCompare handles POST /api/compare.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	cmp, err := s.svc.Compare(ctx, req.TextA, req.TextB, req.Mode)
	s.writeDirect(w, r, start, classifier.Comparison, "direct comparison request", "", cmp, err)
}

// writeDirect answers a summarize or compare request with the same envelope
// a classified query would produce. Invalid options are rejected with 400.
func (s *Server) writeDirect(w http.ResponseWriter, r *http.Request, start time.Time,
	cat classifier.Category, reasoning, query string, res task.Result, err error) {
	if errors.Is(err, agent.ErrInvalidOption) {
		writeServiceError(w, r, err)
		return
	}
	if err != nil {
		res = nil
	}

	c := classifier.Classification{Category: cat, Confidence: 1, Reasoning: reasoning}
	env := response.Assemble(query, c, res, err)
	s.observeQuery(env, start)
	writeJSON(w, r, http.StatusOK, env)
}

// observeQuery records the query metrics for one envelope.
func (s *Server) observeQuery(env *response.Envelope, start time.Time) {
	outcome := "ok"
	if !env.Success {
		outcome = "error"
	}
	cat := string(env.Category)
	s.metrics.queryRequestsTotal.WithLabelValues(cat, outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(cat).Observe(time.Since(start).Seconds())
}
