package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/provider"
	"github.com/54b3r/docintel-go/internal/rag"
)

// LLMPinger probes the backend that writes answers, summaries and
// comparisons.
type LLMPinger struct {
	// model answers the single-token probe when no healthCheck exists.
	model model.BaseChatModel
	// healthCheck is the zero-token probe for the backend, nil for backends
	// that have none.
	healthCheck provider.HealthCheckConfig
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.BaseChatModel, hc provider.HealthCheckConfig, name string) *LLMPinger {
	return &LLMPinger{model: m, healthCheck: hc, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping uses the zero-token health check when the backend has one and falls
// back to a single-token Generate call otherwise.
func (p *LLMPinger) Ping(ctx context.Context) error {
	if p.healthCheck != nil {
		if err := p.healthCheck.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check failed: %w", p.name, err)
		}
		return nil
	}
	if p.model == nil {
		return fmt.Errorf("%s: no probe available", p.name)
	}

	logging.FromContext(ctx).Debug("pinger: probing with a generate call", slog.String("backend", p.name))
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("%s generate probe failed: %w", p.name, err)
	}
	if resp == nil {
		return fmt.Errorf("%s generate probe returned no message", p.name)
	}
	return nil
}

// EmbedderPinger probes the embedding backend by embedding one short text.
// Without it a dead embedder only shows up when the first upload fails.
type EmbedderPinger struct {
	embedder rag.Embedder
	name     string
}

// NewEmbedderPinger returns a Pinger labelled "embedder-<backend>".
func NewEmbedderPinger(e rag.Embedder, backend string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: "embedder-" + backend}
}

// Name implements Pinger.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds "ping" and checks a non-empty vector comes back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embedder returned %d vectors for one input", len(vecs))
	}
	return nil
}

// QdrantPinger probes the Qdrant index backend over its HealthCheck RPC.
type QdrantPinger struct {
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	reply, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	logging.FromContext(ctx).Debug("pinger: qdrant healthy", slog.String("version", reply.GetVersion()))
	return nil
}
