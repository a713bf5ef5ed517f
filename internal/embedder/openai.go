// Package embedder provides the rag.Embedder implementations used to turn
// chunks and queries into vectors: a local feature-hashing embedder, and
// HTTP clients for Ollama and OpenAI-compatible (including Azure) embedding
// endpoints. NewFromEnv selects one and wraps it with a bounded retry.
package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// openAIMaxBatch is the input limit of one OpenAI embeddings request.
const openAIMaxBatch = 2048

// OpenAIEmbedder embeds through the OpenAI embeddings API or an Azure OpenAI
// deployment. It is safe for concurrent use.
type OpenAIEmbedder struct {
	// endpoint is the fully resolved embeddings URL.
	endpoint string
	// header carries the auth header for the selected flavour.
	header http.Header
	// model is sent in the body; for Azure it also names the deployment.
	model string
	// dimensions is the requested vector length (0 = model default).
	dimensions int
	// client carries the request timeout.
	client *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. For OpenAI: "https://api.openai.com/v1".
	// For Azure: "https://<resource>.openai.azure.com/openai".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name, or the deployment name on Azure.
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Azure selects the api-key header and deployment-scoped URL.
	Azure bool
	// APIVersion is the Azure api-version query parameter.
	APIVersion string
	// Timeout bounds one request. Defaults to 30s.
	Timeout time.Duration
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	base := strings.TrimRight(cfg.BaseURL, "/")
	header := http.Header{}
	endpoint := base + "/embeddings"
	if cfg.Azure {
		endpoint = base + "/deployments/" + url.PathEscape(cfg.Model) +
			"/embeddings?api-version=" + url.QueryEscape(cfg.APIVersion)
		header.Set("api-key", cfg.APIKey)
	} else {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		endpoint:   endpoint,
		header:     header,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}
}

// openaiEmbedRequest is the embeddings request body.
type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openaiEmbedResponse is the embeddings response body. Items may arrive out
// of order and carry their input position in Index.
type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed implements rag.Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := embedBatches(texts, openAIMaxBatch, func(batch []string) ([][]float32, error) {
		var resp openaiEmbedResponse
		body := openaiEmbedRequest{Input: batch, Model: e.model, Dimensions: e.dimensions}
		if err := postJSON(ctx, e.client, e.endpoint, e.header, body, &resp, openAIErrorMessage); err != nil {
			return nil, err
		}
		return resp.ordered(len(batch))
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	return vecs, nil
}

// ordered places each item at its reported index.
func (r *openaiEmbedResponse) ordered(n int) ([][]float32, error) {
	if len(r.Data) != n {
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(r.Data))
	}
	out := make([][]float32, n)
	for _, d := range r.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("index %d out of range [0, %d)", d.Index, n)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// openAIErrorMessage extracts error.message from an OpenAI failure body.
func openAIErrorMessage(body []byte) string {
	var r openaiEmbedResponse
	if json.Unmarshal(body, &r) != nil || r.Error == nil {
		return ""
	}
	return r.Error.Message
}
