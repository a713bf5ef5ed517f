// Package task implements the handlers behind each query category: grounded
// question answering over the active documents, summarization, two-text
// comparison and the conversational fallback. Every handler returns one
// variant of the sealed Result union.
package task

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/rag"
)

// Generator produces text from a prompt. provider.Generator implements it.
type Generator interface {
	// Generate returns the complete reply to msgs.
	Generate(ctx context.Context, msgs []*schema.Message) (string, error)
	// Stream writes reply deltas to w and returns the complete reply.
	Stream(ctx context.Context, msgs []*schema.Message, w io.Writer) (string, error)
}

// Retriever returns the chunks of a document set most similar to a query.
// index.Manager implements it.
type Retriever interface {
	Retrieve(ctx context.Context, documentIDs []string, query string, k int) ([]rag.ScoredChunk, error)
}

// DocumentRef names a document for prompts and citations.
type DocumentRef struct {
	// ID is the content hash.
	ID string `json:"id"`
	// Name is the original filename.
	Name string `json:"name"`
}

// Result is the payload of a handled query. The concrete type is one of
// *Answer, *Summary, *Comparison or *Reply.
type Result interface {
	// Category is the query category the result belongs to.
	Category() classifier.Category
	// Message renders the result as the assistant turn stored in the session.
	Message() string

	isResult()
}

// Citation is one retrieved chunk supporting an answer.
type Citation struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Ordinal      int     `json:"ordinal"`
	Page         int     `json:"page"`
	Text         string  `json:"text"`
	Score        float32 `json:"score"`
}

// Answer is the result of a retrieval_qa query.
type Answer struct {
	// Text is the generated answer, or a notice when DocumentRequired.
	Text string
	// Citations lists the supporting chunks in rank order.
	Citations []Citation
	// Documents are the ids of the documents searched.
	Documents []string
	// DocumentRequired is set when no document was active.
	DocumentRequired bool
}

// Summary is the result of a summarization query.
type Summary struct {
	Text     string
	Style    Style
	Audience Audience
}

// Comparison is the result of a comparison query.
type Comparison struct {
	Text string
	Mode Mode
}

// Reply is the result of the chat fallback.
type Reply struct {
	// Text is the reply shown to the user.
	Text string
	// Canned is set for greeting and out-of-scope replies that skipped
	// generation.
	Canned bool
}

func (*Answer) Category() classifier.Category     { return classifier.RetrievalQA }
func (*Summary) Category() classifier.Category    { return classifier.Summarization }
func (*Comparison) Category() classifier.Category { return classifier.Comparison }
func (*Reply) Category() classifier.Category      { return classifier.Chat }

func (*Answer) isResult()     {}
func (*Summary) isResult()    {}
func (*Comparison) isResult() {}
func (*Reply) isResult()      {}

// citationPreview is the rune length of a source preview in Answer.Message.
const citationPreview = 150

// Message renders the answer followed by up to three source previews.
func (a *Answer) Message() string {
	if len(a.Citations) == 0 {
		return a.Text
	}
	var sb strings.Builder
	sb.WriteString(a.Text)
	sb.WriteString("\n\nSources:\n")
	for i, c := range a.Citations {
		if i == 3 {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, preview(c.Text, citationPreview))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (s *Summary) Message() string    { return s.Text }
func (c *Comparison) Message() string { return c.Text }
func (r *Reply) Message() string      { return r.Text }

// preview shortens s to n runes with a trailing ellipsis.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// EmptyInputError reports blank input to a handler that needs text.
type EmptyInputError struct {
	// Task names the operation that received no input.
	Task string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("task: no text provided for %s", e.Task)
}

// Message is the conversational explanation returned to the caller.
func (e *EmptyInputError) Message() string {
	switch e.Task {
	case "summarization":
		return "I need text content or a document to summarize. Please provide text or upload a document first."
	case "question answering":
		return "Please ask a question about the active documents."
	}
	return "Please type a message."
}

// InsufficientInputError reports that a comparison received fewer than two
// non-empty texts.
type InsufficientInputError struct {
	// Got is the number of non-empty texts supplied.
	Got int
}

func (e *InsufficientInputError) Error() string {
	return fmt.Sprintf("task: comparison needs 2 non-empty texts, got %d", e.Got)
}

// Message is the conversational explanation returned to the caller.
func (e *InsufficientInputError) Message() string {
	return "I need two texts or two documents to compare. Please provide them separated by a clear line break or upload two documents."
}
