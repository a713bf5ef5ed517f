package task

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/docintel-go/internal/budget"
)

// Summarizer condenses text in a chosen style.
type Summarizer struct {
	// gen writes the summary.
	gen Generator
	// maxInputTokens bounds the text placed in the prompt.
	maxInputTokens int
}

// NewSummarizer returns a Summarizer. A non-positive maxInputTokens uses
// budget.DefaultMaxContextTokens less room for the instructions.
func NewSummarizer(g Generator, maxInputTokens int) *Summarizer {
	if maxInputTokens <= 0 {
		maxInputTokens = budget.DefaultMaxContextTokens - 500
	}
	return &Summarizer{gen: g, maxInputTokens: maxInputTokens}
}

// Summarize returns a summary of text. Blank text is an *EmptyInputError.
// An audience applies only to StyleAudience and defaults to general there.
func (s *Summarizer) Summarize(ctx context.Context, text string, style Style, audience Audience) (*Summary, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &EmptyInputError{Task: "summarization"}
	}
	if style == "" {
		style = StyleBrief
	}
	if style != StyleAudience {
		audience = ""
	} else if audience == "" {
		audience = AudienceGeneral
	}

	msgs, err := summaryTemplate.Format(ctx, map[string]any{
		"instruction": summaryInstruction(style, audience),
		"text":        budget.Truncate(strings.TrimSpace(text), s.maxInputTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("task: format summary prompt: %w", err)
	}

	out, err := s.gen.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &Summary{Text: out, Style: style, Audience: audience}, nil
}
