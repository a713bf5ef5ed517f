package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// defaultOllamaBatch is how many chunks go into one /api/embed call.
const defaultOllamaBatch = 64

// OllamaEmbedder embeds chunks and queries through a local Ollama server's
// /api/embed endpoint. It is safe for concurrent use.
type OllamaEmbedder struct {
	// endpoint is the full /api/embed URL.
	endpoint string
	// model is the embedding model name.
	model string
	// batch caps the inputs per request.
	batch int
	// client carries the request timeout.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// BatchSize caps the inputs per request. Defaults to 64.
	BatchSize int
	// Timeout bounds one request. Defaults to 60s; large first-load models
	// can take a while to answer.
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultOllamaBatch
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		endpoint: strings.TrimRight(cfg.Host, "/") + "/api/embed",
		model:    cfg.Model,
		batch:    batch,
		client:   &http.Client{Timeout: timeout},
	}
}

// ollamaEmbedRequest is the /api/embed request body.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the /api/embed response body.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed implements rag.Embedder. Inputs are sent in batches; the result is
// parallel to texts.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := embedBatches(texts, e.batch, func(batch []string) ([][]float32, error) {
		var resp ollamaEmbedResponse
		err := postJSON(ctx, e.client, e.endpoint, nil,
			ollamaEmbedRequest{Model: e.model, Input: batch}, &resp, ollamaErrorMessage)
		return resp.Embeddings, err
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return vecs, nil
}

// ollamaErrorMessage extracts the "error" field of an Ollama failure body.
func ollamaErrorMessage(body []byte) string {
	var r ollamaEmbedResponse
	if json.Unmarshal(body, &r) != nil {
		return ""
	}
	return r.Error
}
