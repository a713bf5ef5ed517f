package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docintel-go/internal/agent"
	"github.com/54b3r/docintel-go/internal/docstore"
	"github.com/54b3r/docintel-go/internal/response"
	"github.com/54b3r/docintel-go/internal/session"
	"github.com/54b3r/docintel-go/internal/task"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds one query, summarize, compare or chat request,
	// generation included. Defaults to 5 minutes if zero.
	ChatTimeout time.Duration
	// UploadMaxBytes caps the body of POST /api/documents.
	// Defaults to 50 MiB if zero.
	UploadMaxBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is exposed on GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// service is the set of operations the handlers call.
// *agent.Agent satisfies it; tests inject a fake.
type service interface {
	Upload(ctx context.Context, sessionID string, files []agent.File) (*agent.UploadResult, error)
	Documents() []docstore.Document
	RemoveDocument(ctx context.Context, id string) bool
	CreateSession() string
	SessionInfo(ctx context.Context, sessionID string) (*session.Info, error)
	ClearSession(ctx context.Context, sessionID string) error
	Deactivate(sessionID, documentID string) (bool, error)
	Query(ctx context.Context, req agent.QueryRequest) (*response.Envelope, error)
	StreamChat(ctx context.Context, sessionID, message string, w io.Writer) error
	Summarize(ctx context.Context, text, style, audience string) (*task.Summary, error)
	Compare(ctx context.Context, textA, textB, mode string) (*task.Comparison, error)
}

var _ service = (*agent.Agent)(nil)

// Server is the HTTP transport over the document intelligence agent.
type Server struct {
	// svc handles every API operation; the agent in production, a fake in
	// tests.
	svc service
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's natural language message.
	Message string `json:"message"`
	// SessionID is the conversation to continue. A new session is created
	// when empty.
	SessionID string `json:"session_id"`
}

// summarizeRequest is the JSON body for POST /api/summarize.
type summarizeRequest struct {
	// Text is the content to summarise.
	Text string `json:"text"`
	// Style is brief, detailed, bullet_points, micro or audience.
	Style string `json:"style"`
	// Audience is general or professional; used by the audience style.
	Audience string `json:"audience"`
}

// compareRequest is the JSON body for POST /api/compare.
type compareRequest struct {
	// TextA and TextB are the texts to compare.
	TextA string `json:"text_a"`
	TextB string `json:"text_b"`
	// Mode is similarities, differences or comprehensive.
	Mode string `json:"mode"`
}

// sessionResponse is the JSON body returned by POST /api/sessions.
type sessionResponse struct {
	// SessionID is the new session id.
	SessionID string `json:"session_id"`
}

// documentsResponse is the JSON body returned by GET /api/documents.
type documentsResponse struct {
	// Documents lists every stored document, oldest first.
	Documents []docstore.Document `json:"documents"`
}

// ackResponse acknowledges a mutating request.
type ackResponse struct {
	// OK is always true.
	OK bool `json:"ok"`
	// Removed reports whether the target existed, where applicable.
	Removed *bool `json:"removed,omitempty"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	// Error is a human-readable message.
	Error string `json:"error"`
}
