package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/docintel-go/internal/budget"
)

// Comparer contrasts two texts.
type Comparer struct {
	// gen writes the comparison.
	gen Generator
	// maxTextTokens bounds each text placed in the prompt.
	maxTextTokens int
}

// NewComparer returns a Comparer. A non-positive maxTextTokens uses
// budget.DefaultDocumentTokens.
func NewComparer(g Generator, maxTextTokens int) *Comparer {
	if maxTextTokens <= 0 {
		maxTextTokens = budget.DefaultDocumentTokens
	}
	return &Comparer{gen: g, maxTextTokens: maxTextTokens}
}

// Compare analyses a and b in the given mode. Both must be non-blank or the
// result is an *InsufficientInputError.
func (c *Comparer) Compare(ctx context.Context, a, b string, mode Mode) (*Comparison, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	got := 0
	for _, s := range []string{a, b} {
		if s != "" {
			got++
		}
	}
	if got < 2 {
		return nil, &InsufficientInputError{Got: got}
	}
	if mode == "" {
		mode = ModeComprehensive
	}

	msgs, err := compareTemplate.Format(ctx, map[string]any{
		"instruction": compareInstruction(mode),
		"text_a":      budget.Truncate(a, c.maxTextTokens),
		"text_b":      budget.Truncate(b, c.maxTextTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("task: format comparison prompt: %w", err)
	}

	out, err := c.gen.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &Comparison{Text: out, Mode: mode}, nil
}
