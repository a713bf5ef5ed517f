package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/index"
	"github.com/54b3r/docintel-go/internal/provider"
	"github.com/54b3r/docintel-go/internal/rag"
	"github.com/54b3r/docintel-go/internal/task"
)

func classification(c classifier.Category) classifier.Classification {
	return classifier.Classification{Category: c, Confidence: 0.75, Reasoning: "test"}
}

// ---------------------------------------------------------------------------
// Successful results
// ---------------------------------------------------------------------------

func TestAssemble_Answer(t *testing.T) {
	t.Parallel()

	res := &task.Answer{
		Text:      "Revenue grew 12%.",
		Citations: []task.Citation{{DocumentID: "h1", Ordinal: 2, Text: "revenue grew", Score: 0.9}},
		Documents: []string{"h1"},
	}
	env := Assemble("how did revenue change?", classification(classifier.RetrievalQA), res, nil)

	assert.True(t, env.Success)
	assert.Equal(t, classifier.RetrievalQA, env.Category)
	assert.Equal(t, 0.75, env.Confidence)
	assert.Equal(t, "how did revenue change?", env.OriginalQuery)
	payload, ok := env.Result.(AnswerPayload)
	require.True(t, ok, "want AnswerPayload, got %T", env.Result)
	assert.Equal(t, "Revenue grew 12%.", payload.Answer)
	assert.Len(t, payload.Citations, 1)
	assert.False(t, payload.DocumentRequired)
}

func TestAssemble_DocumentRequiredIsSuccess(t *testing.T) {
	t.Parallel()

	res := &task.Answer{Text: "upload first", DocumentRequired: true}
	env := Assemble("what does the report say?", classification(classifier.RetrievalQA), res, nil)

	assert.True(t, env.Success)
	payload := env.Result.(AnswerPayload)
	assert.True(t, payload.DocumentRequired)
	assert.NotNil(t, payload.Citations)
	assert.NotNil(t, payload.Documents)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"citations":[]`)
	assert.Contains(t, string(raw), `"document_required":true`)
}

func TestAssemble_SummaryAndComparison(t *testing.T) {
	t.Parallel()

	env := Assemble("summarize", classification(classifier.Summarization),
		&task.Summary{Text: "short", Style: task.StyleBrief}, nil)
	assert.Equal(t, SummaryPayload{Summary: "short", Style: "brief"}, env.Result)

	env = Assemble("compare", classification(classifier.Comparison),
		&task.Comparison{Text: "both", Mode: task.ModeSimilarities}, nil)
	assert.Equal(t, ComparisonPayload{Comparison: "both", Mode: "similarities"}, env.Result)
}

func TestAssemble_CategoryFollowsResult(t *testing.T) {
	t.Parallel()

	env := Assemble("hello", classification(classifier.Chat), &task.Reply{Text: "Hi!", Canned: true}, nil)
	assert.Equal(t, classifier.Chat, env.Category)
	assert.Equal(t, MessagePayload{Message: "Hi!"}, env.Result)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestAssemble_InputErrorsAreRecoverable(t *testing.T) {
	t.Parallel()

	cases := []error{
		&task.EmptyInputError{Task: "summarization"},
		fmt.Errorf("agent: compare: %w", &task.InsufficientInputError{Got: 1}),
	}
	for _, err := range cases {
		env := Assemble("q", classification(classifier.Summarization), nil, err)
		assert.True(t, env.Success, "%v", err)
		assert.Empty(t, env.Error)
		payload, ok := env.Result.(MessagePayload)
		require.True(t, ok)
		assert.NotEmpty(t, payload.Message)
	}
}

func TestAssemble_UpstreamFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"generation": &provider.GenerationError{Err: errors.New("connection refused")},
		"embedding":  &rag.EmbeddingError{Err: errors.New("timeout")},
		"build":      &index.BuildError{Key: "a+b", Err: errors.New("qdrant down")},
		"other":      errors.New("boom"),
	}
	for name, err := range cases {
		env := Assemble("q", classification(classifier.RetrievalQA), nil, err)
		assert.False(t, env.Success, name)
		assert.Nil(t, env.Result, name)
		assert.NotEmpty(t, env.Error, name)
		assert.NotContains(t, env.Error, "connection refused", name)
	}
}

func TestDescribe_DistinguishesCauses(t *testing.T) {
	t.Parallel()

	gen := Describe(&provider.GenerationError{Err: errors.New("x")})
	emb := Describe(fmt.Errorf("wrapped: %w", &rag.EmbeddingError{Err: errors.New("x")}))
	assert.NotEqual(t, gen, emb)
	assert.Contains(t, gen, "language model")
	assert.Contains(t, emb, "embedding")
}
