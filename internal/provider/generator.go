package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docintel-go/internal/logging"
)

// DefaultRetryBackoff is the pause before the single retry of a failed call.
const DefaultRetryBackoff = 750 * time.Millisecond

// GenerationError reports that the generation backend failed after its retry.
type GenerationError struct {
	// Err is the last backend error.
	Err error
}

// Error implements error.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

// Unwrap returns the underlying backend error.
func (e *GenerationError) Unwrap() error { return e.Err }

// Generator turns prompts into text with one bounded retry. It is safe for
// concurrent use when the wrapped model is.
type Generator struct {
	// model is the underlying eino chat model.
	model model.BaseChatModel
	// backoff is the pause before the retry.
	backoff time.Duration
}

// NewGenerator wraps m. A non-positive backoff uses DefaultRetryBackoff.
func NewGenerator(m model.BaseChatModel, backoff time.Duration) *Generator {
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &Generator{model: m, backoff: backoff}
}

// Generate sends msgs and returns the trimmed reply text. A failure is retried
// once unless ctx is already done; the final failure is a *GenerationError.
func (g *Generator) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 && !g.wait(ctx, lastErr) {
			break
		}
		resp, err := g.model.Generate(ctx, msgs)
		if err == nil && resp == nil {
			err = errors.New("model returned no message")
		}
		if err == nil {
			return strings.TrimSpace(resp.Content), nil
		}
		lastErr = err
	}
	return "", &GenerationError{Err: lastErr}
}

// Stream sends msgs and copies each content delta to w as it arrives. It
// returns the full reply. Only opening the stream is retried: once a delta has
// been written a failure ends the call.
func (g *Generator) Stream(ctx context.Context, msgs []*schema.Message, w io.Writer) (string, error) {
	var (
		sr      *schema.StreamReader[*schema.Message]
		lastErr error
	)
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 && !g.wait(ctx, lastErr) {
			break
		}
		s, err := g.model.Stream(ctx, msgs)
		if err == nil {
			sr = s
			break
		}
		lastErr = err
	}
	if sr == nil {
		return "", &GenerationError{Err: lastErr}
	}
	defer sr.Close()

	var full strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), &GenerationError{Err: err}
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if _, err := io.WriteString(w, chunk.Content); err != nil {
			return full.String(), fmt.Errorf("provider: write stream delta: %w", err)
		}
	}
	return full.String(), nil
}

// wait logs the failure and sleeps for the backoff. It returns false when ctx
// ends first.
func (g *Generator) wait(ctx context.Context, cause error) bool {
	if ctx.Err() != nil {
		return false
	}
	logging.FromContext(ctx).Warn("provider: generation failed, retrying",
		slog.Duration("backoff", g.backoff),
		slog.Any("error", cause),
	)
	t := time.NewTimer(g.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
