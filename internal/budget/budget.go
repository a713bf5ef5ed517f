// Package budget provides token budget estimation, input truncation and
// history trimming for prompts sent to the generation backend. Backends use
// different tokenizers, so counts come from a character heuristic:
// 1 token ≈ 4 characters of English prose.
package budget

import (
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B, GPT-3.5)
	// while leaving room for the output. Override via Config.MaxContextTokens.
	DefaultMaxContextTokens = 6000

	// DefaultDocumentTokens is the budget for a single document or inline
	// text embedded in a summarization or comparison prompt.
	DefaultDocumentTokens = 2500

	// truncationMarker is appended to text cut by Truncate.
	truncationMarker = "\n[...truncated]"
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory removes the oldest messages from history until the total
// estimated token count of fixed + history + current fits within maxTokens.
// fixed contains messages that must not be trimmed (system prompt, retrieved
// context, current user message). history contains prior conversation
// turns that may be dropped oldest-first.
//
// Returns the trimmed history slice. If even an empty history exceeds the
// budget, the empty slice is returned (fixed messages are never dropped here;
// callers should warn separately if fixed alone exceeds the budget).
func TrimHistory(fixed, history []*schema.Message, maxTokens int) []*schema.Message {
	if len(history) == 0 {
		return history
	}

	fixedTokens := EstimateMessages(fixed)

	// Binary search would be more efficient but history is typically ≤20 msgs;
	// linear scan from the front (dropping oldest) is clear and correct.
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		// Drop the oldest message.
		history = history[1:]
	}
	return history
}

// Truncate shortens s so its estimated size fits within maxTokens. The cut
// lands on a rune boundary, backs up to the last whitespace when one is close,
// and is marked with a trailing "[...truncated]". A non-positive maxTokens
// returns s unchanged.
func Truncate(s string, maxTokens int) string {
	if maxTokens <= 0 || Estimate(s) <= maxTokens {
		return s
	}

	limit := maxTokens*charsPerToken - len(truncationMarker)
	if limit <= 0 {
		return truncationMarker[1:]
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	cut := s[:limit]
	if i := strings.LastIndexAny(cut, " \n\t"); i > limit*9/10 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n\t") + truncationMarker
}
