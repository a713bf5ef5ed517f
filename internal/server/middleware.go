package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/54b3r/docintel-go/internal/logging"
)

// requestIDHeader carries the request id back to the client so it can be
// matched against server logs.
const requestIDHeader = "X-Request-ID"

// requestLogger attaches a child logger carrying request_id, method and path
// to every request context and writes one access line when the handler
// returns. 5xx responses are logged at error level, 4xx at warn.
func requestLogger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := ulid.Make().String()
		w.Header().Set(requestIDHeader, reqID)

		ctx, log := logging.With(logging.WithLogger(r.Context(), base),
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r.WithContext(ctx))

		log.LogAttrs(ctx, accessLevel(rw.status), "request",
			slog.Int("status", rw.status),
			slog.Int64("bytes", rw.written),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// accessLevel maps a status code to the access-log level.
func accessLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// responseWriter records the status and body size written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

// WriteHeader records the first status code and forwards it.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write counts body bytes.
func (rw *responseWriter) Write(p []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(p)
	rw.written += int64(n)
	return n, err
}

// Flush lets SSE handlers stream through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to [http.ResponseController].
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
