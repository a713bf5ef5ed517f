package task

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/docintel-go/internal/budget"
	"github.com/54b3r/docintel-go/internal/logging"
)

const (
	// documentRequiredText answers a document question asked with no
	// document active.
	documentRequiredText = "No documents are available for Q&A. Please upload a document or activate one first."

	// noAnswerText replaces an empty generation.
	noAnswerText = "I found relevant passages but couldn't generate a clear answer. Please try rephrasing your question."

	// noContextText answers when the active documents yield no chunks.
	noContextText = "The active documents contain no searchable text."
)

// QA answers questions grounded in the active documents.
type QA struct {
	// retriever finds supporting chunks.
	retriever Retriever
	// gen writes the answer.
	gen Generator
	// k is the number of chunks retrieved (0 uses the retriever default).
	k int
	// maxContextTokens bounds the excerpts placed in the prompt.
	maxContextTokens int
}

// NewQA returns a QA handler retrieving k chunks per question.
func NewQA(r Retriever, g Generator, k int) *QA {
	return &QA{retriever: r, gen: g, k: k, maxContextTokens: budget.DefaultMaxContextTokens * 3 / 4}
}

// Answer retrieves the chunks of docs most similar to question and asks the
// generator to answer from them. With no docs it returns a DocumentRequired
// answer rather than an error. Retrieval and generation failures are
// returned as is.
func (h *QA) Answer(ctx context.Context, question string, docs []DocumentRef) (*Answer, error) {
	if len(docs) == 0 {
		return &Answer{Text: documentRequiredText, DocumentRequired: true}, nil
	}
	if strings.TrimSpace(question) == "" {
		return nil, &EmptyInputError{Task: "question answering"}
	}

	ids := make([]string, len(docs))
	names := make(map[string]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		names[d.ID] = d.Name
	}

	hits, err := h.retriever.Retrieve(ctx, ids, question, h.k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &Answer{Text: noContextText, Documents: ids}, nil
	}

	citations := make([]Citation, len(hits))
	var sb strings.Builder
	for i, hit := range hits {
		citations[i] = Citation{
			DocumentID:   hit.DocumentID,
			DocumentName: names[hit.DocumentID],
			Ordinal:      hit.Ordinal,
			Page:         hit.Page,
			Text:         hit.Text,
			Score:        hit.Score,
		}
		fmt.Fprintf(&sb, "[%d] %s", i+1, names[hit.DocumentID])
		if hit.Page > 0 {
			fmt.Fprintf(&sb, ", page %d", hit.Page)
		}
		fmt.Fprintf(&sb, "\n%s\n\n", hit.Text)
	}

	msgs, err := qaTemplate.Format(ctx, map[string]any{
		"documents": joinNames(docs),
		"context":   budget.Truncate(strings.TrimSpace(sb.String()), h.maxContextTokens),
		"question":  question,
	})
	if err != nil {
		return nil, fmt.Errorf("task: format qa prompt: %w", err)
	}

	text, err := h.gen.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	if text == "" {
		text = noAnswerText
	}

	logging.FromContext(ctx).Debug("task: answered question",
		slog.Int("documents", len(docs)),
		slog.Int("citations", len(citations)),
	)
	return &Answer{Text: text, Citations: citations, Documents: ids}, nil
}

// joinNames lists document names for a prompt.
func joinNames(docs []DocumentRef) string {
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		name := d.Name
		if name == "" {
			name = d.ID
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
