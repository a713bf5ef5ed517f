package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/docintel-go/internal/agent"
	"github.com/54b3r/docintel-go/internal/docstore"
	"github.com/54b3r/docintel-go/internal/embedder"
	"github.com/54b3r/docintel-go/internal/index"
	"github.com/54b3r/docintel-go/internal/ingestion"
	"github.com/54b3r/docintel-go/internal/provider"
	"github.com/54b3r/docintel-go/internal/rag"
	"github.com/54b3r/docintel-go/internal/server"
	"github.com/54b3r/docintel-go/internal/session"
	"github.com/54b3r/docintel-go/internal/store"
)

// defaultUploadMaxBytes is the per-upload cap when UPLOAD_MAX_BYTES is unset.
const defaultUploadMaxBytes = 50 << 20

// documentRuntime is the ingestion half of the service: everything needed to
// store documents and build indexes, without a generation backend.
type documentRuntime struct {
	// docs is the document store.
	docs *docstore.Store
	// indexes caches per-set indexes over docs.
	indexes *index.Manager
	// qdrant is set when INDEX_BACKEND=qdrant.
	qdrant *rag.QdrantBuilder
	// embedder is the retried embedding backend.
	embedder rag.Embedder
}

// Close releases the Qdrant connection, if any.
func (r *documentRuntime) Close() {
	if r.qdrant != nil {
		_ = r.qdrant.Close()
	}
}

// buildDocuments wires the embedder, ingestion pipeline, document store and
// index manager from environment variables.
func buildDocuments(log *slog.Logger) (*documentRuntime, error) {
	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

	pipeline, err := ingestion.NewPipeline(emb, &ingestion.Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", ingestion.DefaultChunkSize),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", ingestion.DefaultChunkOverlap),
		PDFToText:    getEnvOrDefault("PDFTOTEXT_PATH", "pdftotext"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	rt := &documentRuntime{docs: docstore.New(pipeline), embedder: emb}

	var builder rag.Builder
	switch backend := getEnvOrDefault("INDEX_BACKEND", "memory"); backend {
	case "memory":
		builder = rag.NewMemoryBuilder()
	case "qdrant":
		qb, err := rag.NewQdrantBuilder(&rag.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "docintel-chunks"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		rt.qdrant = qb
		builder = qb
	default:
		return nil, fmt.Errorf("unsupported INDEX_BACKEND %q (want memory or qdrant)", backend)
	}
	log.Info("index backend ready", slog.String("backend", getEnvOrDefault("INDEX_BACKEND", "memory")))

	rt.indexes = index.NewManager(rt.docs, builder, emb, &index.Config{
		DefaultK: getEnvInt("RETRIEVAL_TOP_K", index.DefaultK),
	})
	return rt, nil
}

// serviceRuntime is the full service: documents plus sessions and the agent.
type serviceRuntime struct {
	*documentRuntime

	// agent is the orchestrator.
	agent *agent.Agent
	// chatModel is the raw backend model, kept for the readiness probe.
	chatModel model.BaseChatModel
	// providerCfg is the resolved generation config.
	providerCfg *provider.Config
	// history is the conversation log.
	history store.ConversationStore
}

// Close releases the conversation log and the document runtime.
func (r *serviceRuntime) Close() {
	_ = r.history.Close()
	r.documentRuntime.Close()
}

// buildService wires the complete agent from environment variables.
func buildService(ctx context.Context, log *slog.Logger) (*serviceRuntime, error) {
	providerCfg := provider.ConfigFromEnv()
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.ModelName()),
	)

	history, err := openHistory(log)
	if err != nil {
		return nil, err
	}

	docs, err := buildDocuments(log)
	if err != nil {
		_ = history.Close()
		return nil, err
	}

	depth := getEnvInt("SESSION_MAX_MESSAGES", session.DefaultHistoryDepth)
	sessions := session.NewManager(history, docs.docs, &session.Config{
		MaxActive:    getEnvInt("SESSION_MAX_ACTIVE_DOCS", session.DefaultMaxActive),
		HistoryDepth: depth,
	})

	a, err := agent.New(&agent.Config{
		Documents:    docs.docs,
		Indexes:      docs.indexes,
		Sessions:     sessions,
		Generator:    provider.NewGenerator(chatModel, 0),
		TopK:         getEnvInt("RETRIEVAL_TOP_K", index.DefaultK),
		HistoryDepth: depth,
	})
	if err != nil {
		docs.Close()
		_ = history.Close()
		return nil, fmt.Errorf("failed to initialise agent: %w", err)
	}

	return &serviceRuntime{
		documentRuntime: docs,
		agent:           a,
		chatModel:       chatModel,
		providerCfg:     providerCfg,
		history:         history,
	}, nil
}

// openHistory opens the conversation log. DOCINTEL_HISTORY_DB selects a
// SQLite file; when unset, messages live in a bounded in-memory log.
func openHistory(log *slog.Logger) (store.ConversationStore, error) {
	path := os.Getenv("DOCINTEL_HISTORY_DB")
	if path == "" {
		log.Info("history: in-memory")
		return store.NewMemoryStore(getEnvInt("SESSION_MAX_MESSAGES", session.DefaultHistoryDepth)), nil
	}
	if path == "default" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	hs, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	log.Info("history: store opened", slog.String("path", path))
	return hs, nil
}

// buildPingers returns the readiness probes for the configured dependencies.
func buildPingers(rt *serviceRuntime) []server.Pinger {
	pingers := []server.Pinger{
		server.NewLLMPinger(rt.chatModel, provider.NewHealthCheck(rt.providerCfg), string(rt.providerCfg.Backend)),
	}
	if backend := embedder.Backend(); backend != "hash" {
		pingers = append(pingers, server.NewEmbedderPinger(rt.embedder, backend))
	}
	if rt.qdrant != nil {
		pingers = append(pingers, server.NewQdrantPinger(rt.qdrant.Client()))
	}
	return pingers
}

// readFiles loads each path as an agent.File named by its base name.
func readFiles(paths []string) ([]agent.File, error) {
	files := make([]agent.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, agent.File{Name: filepath.Base(p), Data: data})
	}
	return files, nil
}

// getEnvOrDefault returns the value of key, or fallback when it is unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns key parsed as an int, or fallback when it is unset or
// malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvInt64 is getEnvInt for int64 values.
func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
