package embedder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/rag"
)

// retrying wraps an embedder with one bounded retry.
type retrying struct {
	// next is the wrapped embedder.
	next rag.Embedder
	// backoff is the pause before the retry.
	backoff time.Duration
}

// WithRetry returns an embedder that retries a failed call exactly once
// after backoff. When both attempts fail, or the context ends, the error is
// returned as a *rag.EmbeddingError.
func WithRetry(e rag.Embedder, backoff time.Duration) rag.Embedder {
	return &retrying{next: e, backoff: backoff}
}

// Embed implements rag.Embedder.
func (r *retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vecs, err := r.next.Embed(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	if ctx.Err() != nil {
		return nil, asEmbeddingError(err)
	}

	logging.FromContext(ctx).Warn("embedder: call failed, retrying once",
		slog.Int("texts", len(texts)),
		slog.String("error", err.Error()),
	)

	timer := time.NewTimer(r.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, asEmbeddingError(ctx.Err())
	case <-timer.C:
	}

	vecs, err = r.next.Embed(ctx, texts)
	if err != nil {
		return nil, asEmbeddingError(err)
	}
	return vecs, nil
}

// asEmbeddingError wraps err unless it already is an EmbeddingError.
func asEmbeddingError(err error) error {
	var ee *rag.EmbeddingError
	if errors.As(err, &ee) {
		return err
	}
	return &rag.EmbeddingError{Err: err}
}
