package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docintel-go/internal/budget"
	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/logging"
)

// capabilities lists what the assistant does, appended to canned replies.
const capabilities = `- Summarization: summarize text or uploaded documents
- Comparison: compare two texts or documents
- Document Q&A: answer questions about uploaded documents`

const (
	helloReply = "Hello! I'm your document assistant.\n\nI can help you with:\n" + capabilities +
		"\n\nI politely decline requests outside these areas.\n\nHow can I assist you today?"
	goodbyeReply = "Goodbye for now!\n\nI'm still here whenever you need help with:\n" + capabilities +
		"\n\nFeel free to continue our conversation anytime!"
	howAreYouReply = "I'm functioning perfectly and ready to help!\n\nI specialize in:\n" + capabilities +
		"\n\nWhat would you like me to help you with today?"
	outOfScopeReply = "I can only help with these specific tasks:\n\n" + capabilities +
		"\n\nYour request appears to be outside my scope. Please ask me to summarize some text or a document, " +
		"compare two texts or documents, or answer a question about an uploaded document.\n\n" +
		"How can I help you with one of these tasks?"
)

// GreetingReply returns the canned reply for a greeting kind.
func GreetingReply(g classifier.Greeting) *Reply {
	switch g {
	case classifier.GreetingGoodbye:
		return &Reply{Text: goodbyeReply, Canned: true}
	case classifier.GreetingHowAreYou:
		return &Reply{Text: howAreYouReply, Canned: true}
	default:
		return &Reply{Text: helloReply, Canned: true}
	}
}

// OutOfScopeReply returns the canned refusal for out-of-scope requests.
func OutOfScopeReply() *Reply {
	return &Reply{Text: outOfScopeReply, Canned: true}
}

// Chat is the conversational fallback.
type Chat struct {
	// gen writes replies.
	gen Generator
	// maxContextTokens bounds prompt plus history.
	maxContextTokens int
}

// NewChat returns a Chat handler. A non-positive maxContextTokens uses
// budget.DefaultMaxContextTokens.
func NewChat(g Generator, maxContextTokens int) *Chat {
	if maxContextTokens <= 0 {
		maxContextTokens = budget.DefaultMaxContextTokens
	}
	return &Chat{gen: g, maxContextTokens: maxContextTokens}
}

// ChatInput is one conversational turn.
type ChatInput struct {
	// Query is the user message.
	Query string
	// History holds prior turns, oldest first.
	History []*schema.Message
	// Documents names the active documents, if any.
	Documents []DocumentRef
}

// Reply answers in.Query with the session history as context.
func (c *Chat) Reply(ctx context.Context, in ChatInput) (*Reply, error) {
	msgs, err := c.messages(ctx, in)
	if err != nil {
		return nil, err
	}
	text, err := c.gen.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: text}, nil
}

// Stream is Reply with the text written to w as it is generated.
func (c *Chat) Stream(ctx context.Context, in ChatInput, w io.Writer) (*Reply, error) {
	msgs, err := c.messages(ctx, in)
	if err != nil {
		return nil, err
	}
	text, err := c.gen.Stream(ctx, msgs, w)
	if err != nil {
		return nil, err
	}
	return &Reply{Text: strings.TrimSpace(text)}, nil
}

// messages builds the prompt, dropping the oldest history turns that do not
// fit the context budget.
func (c *Chat) messages(ctx context.Context, in ChatInput) ([]*schema.Message, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, &EmptyInputError{Task: "chat"}
	}

	docs := "No documents are active in this conversation."
	if len(in.Documents) > 0 {
		docs = "Active documents: " + joinNames(in.Documents) + "."
	}
	vars := map[string]any{"documents": docs, "query": in.Query}

	fixed, err := chatTemplate.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("task: format chat prompt: %w", err)
	}
	if len(in.History) == 0 {
		return fixed, nil
	}

	history := budget.TrimHistory(fixed, in.History, c.maxContextTokens)
	if dropped := len(in.History) - len(history); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(history)),
			slog.Int("max_tokens", c.maxContextTokens),
		)
	}

	vars["history"] = history
	msgs, err := chatTemplate.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("task: format chat prompt: %w", err)
	}
	return msgs, nil
}
