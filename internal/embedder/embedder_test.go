package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/54b3r/docintel-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Hashing
// ---------------------------------------------------------------------------

func TestHashing_Deterministic(t *testing.T) {
	t.Parallel()

	h := NewHashing(64)
	a, err := h.Embed(context.Background(), []string{"Revenue grew in the third quarter."})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := h.Embed(context.Background(), []string{"Revenue grew in the third quarter."})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(a[0]) != 64 {
		t.Fatalf("want dim 64, got %d", len(a[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func TestHashing_SharedVocabularyIsCloser(t *testing.T) {
	t.Parallel()

	h := NewHashing(0)
	vecs, err := h.Embed(context.Background(), []string{
		"quarterly revenue and operating margin",
		"revenue and margin for the quarter",
		"the cat sat on a warm windowsill",
	})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	related := rag.CosineSimilarity(vecs[0], vecs[1])
	unrelated := rag.CosineSimilarity(vecs[0], vecs[2])
	if related <= unrelated {
		t.Errorf("want related (%v) > unrelated (%v)", related, unrelated)
	}
}

func TestHashing_EmptyTextIsZeroVector(t *testing.T) {
	t.Parallel()

	vecs, err := NewHashing(16).Embed(context.Background(), []string{"  ...  "})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i, x := range vecs[0] {
		if x != 0 {
			t.Fatalf("want zero vector, got %v at %d", x, i)
		}
	}
}

// ---------------------------------------------------------------------------
// Retry
// ---------------------------------------------------------------------------

// flakyEmbedder fails the first `failures` calls, then succeeds.
type flakyEmbedder struct {
	calls    atomic.Int32
	failures int32
}

func (f *flakyEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, errors.New("connection refused")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestWithRetry_RecoversAfterOneFailure(t *testing.T) {
	t.Parallel()

	inner := &flakyEmbedder{failures: 1}
	vecs, err := WithRetry(inner, time.Millisecond).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Errorf("want 2 vectors, got %d", len(vecs))
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("want 2 calls, got %d", got)
	}
}

func TestWithRetry_GivesUpAfterSecondFailure(t *testing.T) {
	t.Parallel()

	inner := &flakyEmbedder{failures: 5}
	_, err := WithRetry(inner, time.Millisecond).Embed(context.Background(), []string{"a"})

	var ee *rag.EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("want *rag.EmbeddingError, got %T: %v", err, err)
	}
	if got := inner.calls.Load(); got != 2 {
		t.Errorf("want exactly 2 calls (one retry), got %d", got)
	}
}

func TestWithRetry_CanceledContextSkipsRetry(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakyEmbedder{failures: 5}
	_, err := WithRetry(inner, time.Hour).Embed(ctx, []string{"a"})

	var ee *rag.EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("want *rag.EmbeddingError, got %T: %v", err, err)
	}
	if got := inner.calls.Load(); got != 1 {
		t.Errorf("want 1 call, got %d", got)
	}
}

func TestWithRetry_EmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	inner := &flakyEmbedder{}
	vecs, err := WithRetry(inner, time.Millisecond).Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("want nil, nil; got %v, %v", vecs, err)
	}
	if inner.calls.Load() != 0 {
		t.Error("inner embedder must not be called for an empty batch")
	}
}

// ---------------------------------------------------------------------------
// HTTP backends
// ---------------------------------------------------------------------------

func TestOllamaEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("want model nomic-embed-text, got %q", req.Model)
		}
		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	vecs, err := emb.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[1]) != 3 {
		t.Errorf("unexpected vectors: %v", vecs)
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model \"missing\" not found"}`)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	if _, err := emb.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOpenAIEmbedder_ReordersByIndex(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("want bearer auth, got %q", got)
		}
		_, _ = io.WriteString(w, `{"data":[
			{"embedding":[2,2],"index":1},
			{"embedding":[1,1],"index":0}
		]}`)
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "text-embedding-3-small"})
	vecs, err := emb.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("vectors not reordered by index: %v", vecs)
	}
}

func TestOpenAIEmbedder_AzureHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "az-key" {
			t.Errorf("want api-key header, got %q", got)
		}
		if r.URL.Path != "/openai/deployments/embed-dep/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2025-04-01-preview" {
			t.Errorf("unexpected api-version %q", got)
		}
		_, _ = io.WriteString(w, `{"data":[{"embedding":[1],"index":0}]}`)
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL + "/openai",
		APIKey:     "az-key",
		Model:      "embed-dep",
		Azure:      true,
		APIVersion: "2025-04-01-preview",
	})
	if _, err := emb.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
}

func TestOllamaEmbedder_SplitsBatches(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req ollamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) > 2 {
			t.Errorf("batch of %d exceeds limit 2", len(req.Input))
		}
		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{1, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL + "/", Model: "m", BatchSize: 2})
	vecs, err := emb.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 5 {
		t.Errorf("want 5 vectors, got %d", len(vecs))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("want 3 requests, got %d", got)
	}
}

func TestOllamaEmbedder_ErrorMessageSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"}).Embed(context.Background(), []string{"x"})
	var se *httpStatusError
	if !errors.As(err, &se) {
		t.Fatalf("want *httpStatusError, got %v", err)
	}
	if se.Status != http.StatusNotFound || se.Message != "model not found" {
		t.Errorf("unexpected status error: %+v", se)
	}
}

func TestOpenAIEmbedder_RejectsMixedDimensions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":[
			{"embedding":[1,1],"index":0},
			{"embedding":[1],"index":1}
		]}`)
	}))
	defer srv.Close()

	emb := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := emb.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected dimension mismatch error, got nil")
	}
}

// ---------------------------------------------------------------------------
// Factory and validation
// ---------------------------------------------------------------------------

func TestNewFromEnv_DefaultsToHashing(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("EMBEDDING_DIMENSIONS", "32")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	vecs, err := emb.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs[0]) != 32 {
		t.Errorf("want dim 32, got %d", len(vecs[0]))
	}
}

func TestNewFromEnv_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error for missing OpenAI key")
	}
}

func TestNewFromEnv_UnknownBackend(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "word2vec")

	if _, err := NewFromEnv(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestDefaultDimensions(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSIONS", "")

	cases := map[string]int{
		"hash":   DefaultHashDimensions,
		"ollama": defaultOllamaDimensions,
		"openai": defaultOpenAIDimensions,
	}
	for backend, want := range cases {
		if got := DefaultDimensions(backend); got != want {
			t.Errorf("%s: want %d, got %d", backend, want, got)
		}
	}
}

func TestValidateForRAG_AzureMissingEndpoint(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("EMBEDDING_API_KEY", "k")
	t.Setenv("EMBEDDING_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := ValidateForRAG(log); err == nil {
		t.Fatal("expected error for missing azure endpoint")
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	for _, m := range []string{"gpt-4o", "llama3.1:8b", "Mistral-7B"} {
		if !looksLikeChatModel(m) {
			t.Errorf("%q should look like a chat model", m)
		}
	}
	for _, m := range []string{"nomic-embed-text", "text-embedding-3-small", "mxbai-embed-large"} {
		if looksLikeChatModel(m) {
			t.Errorf("%q should not look like a chat model", m)
		}
	}
}
