package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/docintel-go/internal/logging"
)

// authRealm is the realm advertised in WWW-Authenticate challenges.
const authRealm = "docintel"

// authMiddleware guards next with a static bearer token. An empty apiKey
// disables the check entirely; New logs a warning in that case.
//
// Clients send:
//
//	Authorization: Bearer <DOCINTEL_API_KEY>
//
// Failures answer 401 with a JSON error body and a Bearer challenge. The
// presented token is never logged.
func authMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		switch {
		case token == "":
			reject(w, r, "missing bearer token", `Bearer realm="`+authRealm+`"`)
		case subtle.ConstantTimeCompare([]byte(token), want) != 1:
			reject(w, r, "invalid token", `Bearer realm="`+authRealm+`", error="invalid_token"`)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// reject writes a 401 with the given challenge.
func reject(w http.ResponseWriter, r *http.Request, reason, challenge string) {
	logging.FromContext(r.Context()).Warn("auth: request rejected",
		slog.String("path", r.URL.Path),
		slog.String("reason", reason),
	)
	w.Header().Set("WWW-Authenticate", challenge)
	writeError(w, http.StatusUnauthorized, reason)
}

// bearerToken returns the credentials of a Bearer Authorization header, or
// "" when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
