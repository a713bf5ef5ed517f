package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/response"
	"github.com/54b3r/docintel-go/internal/store"
	"github.com/54b3r/docintel-go/internal/task"
)

// turn is the session context loaded for one query.
type turn struct {
	// active holds the active document ids, oldest first.
	active []string
	// history holds recent messages, oldest first.
	history []store.Message
}

// Query classifies req.Message, runs the matching handler and returns the
// response envelope. Only an unknown session or an invalid active document
// set is returned as an error; handler failures are reported in the
// envelope.
//
// The user message and the assistant reply are appended to the session only
// if ctx is still live when the handler returns, so an abandoned query
// leaves the session untouched.
func (a *Agent) Query(ctx context.Context, req QueryRequest) (*response.Envelope, error) {
	start := time.Now()
	ctx, log := logging.With(ctx, slog.String("session_id", req.SessionID))

	t, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	c := classifier.Classify(req.Message, classifier.Context{
		ActiveDocuments: len(t.active),
		RecentMessages:  len(t.history),
	})
	log.Debug("agent: query classified",
		slog.String("category", string(c.Category)),
		slog.Float64("confidence", c.Confidence),
		slog.String("reasoning", c.Reasoning),
	)

	res, herr := a.dispatch(ctx, req.Message, c, t)
	env := response.Assemble(req.Message, c, res, herr)
	env.SessionID = req.SessionID

	if herr != nil {
		level := slog.LevelInfo
		if !env.Success {
			level = slog.LevelError
		}
		log.Log(ctx, level, "agent: handler returned error",
			slog.String("category", string(env.Category)),
			slog.Any("error", herr),
		)
	}

	a.record(ctx, req.SessionID, req.Message, env, res, c.Topic())

	log.Info("agent: query handled",
		slog.String("category", string(env.Category)),
		slog.Bool("success", env.Success),
		slog.Duration("duration", time.Since(start)),
	)
	return env, nil
}

// prepare validates the session, applies a supplied active set and loads
// the context the classifier and chat handler need.
func (a *Agent) prepare(ctx context.Context, req QueryRequest) (*turn, error) {
	if err := a.sessions.Exists(req.SessionID); err != nil {
		return nil, err
	}

	if req.ActiveDocuments != nil {
		if _, err := a.sessions.SetActive(req.SessionID, req.ActiveDocuments); err != nil {
			return nil, err
		}
	}

	active, err := a.sessions.Active(req.SessionID)
	if err != nil {
		return nil, err
	}
	history, err := a.sessions.History(ctx, req.SessionID, a.historyDepth)
	if err != nil {
		return nil, fmt.Errorf("agent: load history: %w", err)
	}
	return &turn{active: active, history: history}, nil
}

// dispatch runs the handler for c.Category. A handler error is returned
// with a nil Result.
func (a *Agent) dispatch(ctx context.Context, query string, c classifier.Classification, t *turn) (task.Result, error) {
	switch c.Category {
	case classifier.Comparison:
		res, err := a.compareInSession(ctx, c.Params, t.active)
		if err != nil {
			return nil, err
		}
		return res, nil

	case classifier.Summarization:
		res, err := a.summarizeInSession(ctx, c.Params, t.active)
		if err != nil {
			return nil, err
		}
		return res, nil

	case classifier.RetrievalQA:
		res, err := a.qa.Answer(ctx, query, a.refs(t.active))
		if err != nil {
			return nil, err
		}
		return res, nil

	case classifier.Chat:
		switch {
		case c.Params.Greeting != "":
			return task.GreetingReply(c.Params.Greeting), nil
		case c.Params.OutOfScope:
			return task.OutOfScopeReply(), nil
		}
		res, err := a.chat.Reply(ctx, task.ChatInput{
			Query:     query,
			History:   toSchema(t.history),
			Documents: a.refs(t.active),
		})
		if err != nil {
			return nil, err
		}
		return res, nil

	default:
		return nil, fmt.Errorf("agent: unhandled category %q", c.Category)
	}
}

// compareInSession compares the inline pair from the query, or else the two
// most recently activated documents.
func (a *Agent) compareInSession(ctx context.Context, p classifier.Params, active []string) (*task.Comparison, error) {
	mode, err := task.ParseMode(p.Mode)
	if err != nil {
		mode = task.ModeComprehensive
	}

	textA, textB := p.TextA, p.TextB
	if (textA == "" || textB == "") && len(active) >= 2 {
		if textA, err = a.docs.Text(active[len(active)-2]); err != nil {
			return nil, fmt.Errorf("agent: compare: %w", err)
		}
		if textB, err = a.docs.Text(active[len(active)-1]); err != nil {
			return nil, fmt.Errorf("agent: compare: %w", err)
		}
	}
	return a.comparer.Compare(ctx, textA, textB, mode)
}

// summarizeInSession summarises inline text from the query, or else the
// most recently activated document.
func (a *Agent) summarizeInSession(ctx context.Context, p classifier.Params, active []string) (*task.Summary, error) {
	style, err := task.ParseStyle(p.Style)
	if err != nil {
		style = task.StyleBrief
	}
	audience, err := task.ParseAudience(p.Audience)
	if err != nil {
		audience = task.AudienceGeneral
	}

	text := p.Text
	if text == "" && len(active) > 0 {
		if text, err = a.docs.Text(active[len(active)-1]); err != nil {
			return nil, fmt.Errorf("agent: summarize: %w", err)
		}
	}
	return a.summarizer.Summarize(ctx, text, style, audience)
}

// StreamChat answers message with the chat handler, writing the reply to w
// as it is generated. Greetings and out-of-scope requests are answered with
// their canned reply. The turn is recorded like Query does, including on
// failure.
func (a *Agent) StreamChat(ctx context.Context, sessionID, message string, w io.Writer) error {
	t, err := a.prepare(ctx, QueryRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return err
	}

	c := classifier.Classify(message, classifier.Context{
		ActiveDocuments: len(t.active),
		RecentMessages:  len(t.history),
	})

	var reply *task.Reply
	switch {
	case c.Params.Greeting != "":
		reply = task.GreetingReply(c.Params.Greeting)
	case c.Params.OutOfScope:
		reply = task.OutOfScopeReply()
	}
	if reply != nil {
		if _, err := io.WriteString(w, reply.Text); err != nil {
			return fmt.Errorf("agent: write error: %w", err)
		}
	} else {
		reply, err = a.chat.Stream(ctx, task.ChatInput{
			Query:     message,
			History:   toSchema(t.history),
			Documents: a.refs(t.active),
		}, w)
	}

	c.Category = classifier.Chat
	if err != nil {
		a.record(ctx, sessionID, message, response.Assemble(message, c, nil, err), nil, c.Topic())
		return fmt.Errorf("agent: stream chat: %w", err)
	}
	a.record(ctx, sessionID, message, response.Assemble(message, c, reply, nil), reply, c.Topic())
	return nil
}

// record appends the user message and assistant reply to the session unless
// the caller has gone away. A failure to persist is logged, not returned.
func (a *Agent) record(ctx context.Context, sessionID, query string, env *response.Envelope, res task.Result, topic string) {
	if ctx.Err() != nil {
		logging.FromContext(ctx).Info("agent: caller gone, turn not recorded", slog.String("session_id", sessionID))
		return
	}

	reply := env.Error
	switch {
	case res != nil:
		reply = res.Message()
	case env.Success:
		if p, ok := env.Result.(response.MessagePayload); ok {
			reply = p.Message
		}
	}

	err := a.sessions.AppendTurn(ctx, sessionID,
		store.Message{Content: query},
		store.Message{Content: reply, Category: string(env.Category)},
		topic,
	)
	if err != nil {
		logging.FromContext(ctx).Warn("history: failed to persist turn",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
	}
}

// refs names documents for prompts and citations. Ids no longer in the
// store are skipped.
func (a *Agent) refs(ids []string) []task.DocumentRef {
	out := make([]task.DocumentRef, 0, len(ids))
	for _, id := range ids {
		doc, ok := a.docs.Get(id)
		if !ok {
			continue
		}
		out = append(out, task.DocumentRef{ID: id, Name: doc.Name})
	}
	return out
}

// toSchema converts stored messages into chat model messages.
func toSchema(msgs []store.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case store.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case store.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}
