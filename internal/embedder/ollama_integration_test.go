//go:build integration

package embedder

import (
	"context"
	"math"
	"os"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration embeds three passages against a running
// Ollama server and checks that the two passages about the same topic sit
// closer together than the unrelated one.
//
//	ollama pull nomic-embed-text
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
//
// OLLAMA_HOST and EMBEDDING_MODEL override the defaults.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := WithRetry(NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}), time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vecs, err := emb.Embed(ctx, []string{
		"Revenue from subscription contracts is recognised ratably over the term.",
		"Subscription revenue is spread evenly across the contract period.",
		"The retail stores lease their premises under ten-year agreements.",
	})
	if err != nil {
		t.Fatalf("embed against %s with %q: %v", host, model, err)
	}
	if len(vecs) != 3 || len(vecs[0]) == 0 {
		t.Fatalf("unexpected embeddings shape: %d vectors", len(vecs))
	}

	related := cosine(vecs[0], vecs[1])
	unrelated := cosine(vecs[0], vecs[2])
	t.Logf("dim=%d related=%.3f unrelated=%.3f", len(vecs[0]), related, unrelated)
	if related <= unrelated {
		t.Errorf("related passages (%.3f) should score above unrelated (%.3f)", related, unrelated)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
