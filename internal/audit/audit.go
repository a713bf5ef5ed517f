// Package audit records one structured entry per CLI invocation: which
// command ran, which config file was loaded, and the effective settings of
// every subsystem, grouped the way the config file groups them. Credentials
// appear only as "set" or "unset".
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/docintel-go/internal/version"
)

// setting is one audited environment variable.
type setting struct {
	key    string
	secret bool
}

// section groups the settings of one subsystem under a log attribute group.
type section struct {
	name     string
	settings []setting
}

func plain(keys ...string) []setting {
	out := make([]setting, len(keys))
	for i, k := range keys {
		out[i] = setting{key: k}
	}
	return out
}

func secret(key string) setting { return setting{key: key, secret: true} }

// sections is the audited configuration surface, in log order.
var sections = []section{
	{"model", append(plain("MODEL_PROVIDER", "OLLAMA_HOST", "OLLAMA_MODEL", "OPENAI_MODEL",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT", "GEMINI_MODEL", "AWS_REGION", "BEDROCK_MODEL_ID"),
		secret("OPENAI_API_KEY"), secret("AZURE_OPENAI_API_KEY"), secret("GOOGLE_API_KEY"),
		secret("AWS_SECRET_ACCESS_KEY"), secret("AWS_SESSION_TOKEN"))},
	{"embedding", append(plain("EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS"),
		secret("EMBEDDING_API_KEY"))},
	{"index", append(plain("INDEX_BACKEND", "RETRIEVAL_TOP_K", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION"),
		secret("QDRANT_API_KEY"))},
	{"ingestion", plain("CHUNK_SIZE", "CHUNK_OVERLAP", "PDFTOTEXT_PATH", "UPLOAD_MAX_BYTES")},
	{"session", plain("SESSION_MAX_MESSAGES", "SESSION_MAX_ACTIVE_DOCS", "DOCINTEL_HISTORY_DB")},
	{"server", []setting{secret("DOCINTEL_API_KEY")}},
	{"logging", plain("LOG_LEVEL", "LOG_FORMAT")},
	{"tracing", []setting{{key: "LANGFUSE_HOST"}, secret("LANGFUSE_PUBLIC_KEY"), secret("LANGFUSE_SECRET_KEY")}},
}

// secretKeys indexes every secret setting for SanitiseKey.
var secretKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, sec := range sections {
		for _, s := range sec.settings {
			if s.secret {
				m[s.key] = true
			}
		}
	}
	return m
}()

// LogCommandStart logs the "audit: command start" entry for command.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("version", version.Version),
		slog.String("config_file", displayPath(configPath)),
	}
	for _, sec := range sections {
		group := make([]any, 0, len(sec.settings))
		for _, s := range sec.settings {
			group = append(group, slog.String(s.key, SanitiseKey(s.key, os.Getenv(s.key))))
		}
		attrs = append(attrs, slog.Group(sec.name, group...))
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey renders value for logging: "set"/"unset" for secret keys,
// the value itself (or "unset") otherwise.
func SanitiseKey(key, value string) string {
	if secretKeys[key] {
		return presence(value)
	}
	if value == "" {
		return "unset"
	}
	return value
}

func presence(v string) string {
	if v == "" {
		return "unset"
	}
	return "set"
}

// displayPath shortens the home directory to "~"; an empty path is "none".
func displayPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
