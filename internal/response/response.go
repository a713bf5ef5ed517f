// Package response normalises handler results and failures into the single
// envelope returned for every query.
package response

import (
	"errors"
	"fmt"

	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/index"
	"github.com/54b3r/docintel-go/internal/provider"
	"github.com/54b3r/docintel-go/internal/rag"
	"github.com/54b3r/docintel-go/internal/task"
)

// Envelope is the response to one query.
type Envelope struct {
	// Success is false only for unrecoverable failures: the generation or
	// embedding service failed, or an index could not be built.
	Success bool `json:"success"`

	// Category is the classified task category.
	Category classifier.Category `json:"category"`

	// Confidence is the classifier confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Reasoning is the classifier justification.
	Reasoning string `json:"reasoning"`

	// Result is the category-specific payload. It is nil on failure.
	Result any `json:"result"`

	// OriginalQuery echoes the query text.
	OriginalQuery string `json:"original_query"`

	// SessionID is the session the query ran in.
	SessionID string `json:"session_id,omitempty"`

	// Error is a human-readable failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// AnswerPayload is the result of a retrieval_qa query.
type AnswerPayload struct {
	Answer           string          `json:"answer"`
	Citations        []task.Citation `json:"citations"`
	Documents        []string        `json:"documents"`
	DocumentRequired bool            `json:"document_required"`
}

// SummaryPayload is the result of a summarization query.
type SummaryPayload struct {
	Summary  string `json:"summary"`
	Style    string `json:"style"`
	Audience string `json:"audience,omitempty"`
}

// ComparisonPayload is the result of a comparison query.
type ComparisonPayload struct {
	Comparison string `json:"comparison"`
	Mode       string `json:"mode"`
}

// MessagePayload is the result of a chat query or of a recoverable input
// error.
type MessagePayload struct {
	Message string `json:"message"`
}

// Assemble builds the envelope for query from its classification and the
// handler outcome. Exactly one of res and err is expected to be non-nil.
//
// Recoverable input errors (task.EmptyInputError, task.InsufficientInputError)
// yield success with their explanation as a message payload. Any other error
// yields success=false with a human-readable message.
func Assemble(query string, c classifier.Classification, res task.Result, err error) *Envelope {
	env := &Envelope{
		Success:       true,
		Category:      c.Category,
		Confidence:    c.Confidence,
		Reasoning:     c.Reasoning,
		OriginalQuery: query,
	}

	if err != nil {
		if msg, ok := Recoverable(err); ok {
			env.Result = MessagePayload{Message: msg}
			return env
		}
		env.Success = false
		env.Error = Describe(err)
		return env
	}

	if res != nil {
		env.Category = res.Category()
		env.Result = Payload(res)
	}
	return env
}

// Payload converts a handler result into its wire payload.
func Payload(res task.Result) any {
	switch r := res.(type) {
	case *task.Answer:
		citations := r.Citations
		if citations == nil {
			citations = []task.Citation{}
		}
		docs := r.Documents
		if docs == nil {
			docs = []string{}
		}
		return AnswerPayload{
			Answer:           r.Text,
			Citations:        citations,
			Documents:        docs,
			DocumentRequired: r.DocumentRequired,
		}
	case *task.Summary:
		return SummaryPayload{Summary: r.Text, Style: string(r.Style), Audience: string(r.Audience)}
	case *task.Comparison:
		return ComparisonPayload{Comparison: r.Text, Mode: string(r.Mode)}
	case *task.Reply:
		return MessagePayload{Message: r.Text}
	default:
		panic(fmt.Sprintf("response: unhandled result type %T", res))
	}
}

// Recoverable reports whether err is an input error that should be returned
// as a successful conversational reply, and that reply.
func Recoverable(err error) (string, bool) {
	var empty *task.EmptyInputError
	if errors.As(err, &empty) {
		return empty.Message(), true
	}
	var insufficient *task.InsufficientInputError
	if errors.As(err, &insufficient) {
		return insufficient.Message(), true
	}
	return "", false
}

// Describe turns an unrecoverable error into a message fit for end users.
// Upstream details stay in the logs.
func Describe(err error) string {
	var gen *provider.GenerationError
	var emb *rag.EmbeddingError
	var build *index.BuildError
	switch {
	case errors.As(err, &gen):
		return "The language model is unavailable right now. Please try again shortly."
	case errors.As(err, &emb):
		return "The embedding service is unavailable right now. Please try again shortly."
	case errors.As(err, &build):
		return "The document index could not be built. Please re-upload the documents and try again."
	default:
		return "Sorry, I encountered an error processing your request. Please try again."
	}
}
