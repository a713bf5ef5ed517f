// Package tracing wires optional Langfuse tracing into the eino callback
// chain so that every classifier, task and chat model call is recorded as a
// span.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is the Langfuse endpoint used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Config holds the Langfuse credentials.
type Config struct {
	// Host is the Langfuse base URL.
	Host string
	// PublicKey and SecretKey authenticate the project.
	PublicKey string
	SecretKey string
	// Release tags every trace with the running binary version.
	Release string
}

// Enabled reports whether both keys are present.
func (c *Config) Enabled() bool {
	return c != nil && c.PublicKey != "" && c.SecretKey != ""
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func ConfigFromEnv() *Config {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = DefaultHost
	}
	return &Config{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// New builds the callback handler for cfg. The returned flush func must run
// before process exit or buffered traces are lost. ok is false, and the
// other values nil, when cfg is not enabled.
func New(cfg *Config) (handler callbacks.Handler, flush func(), ok bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Release:   cfg.Release,
	})
	return handler, flush, true
}
