// Package agent wires the document store, index manager, classifier, task
// handlers and session state into the operations exposed to callers:
// ingesting documents, answering queries, direct summarization and
// comparison, and session management.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/docintel-go/internal/docstore"
	"github.com/54b3r/docintel-go/internal/index"
	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/session"
	"github.com/54b3r/docintel-go/internal/task"
)

// ErrInvalidOption wraps an unknown summary style, audience or comparison
// mode passed to Summarize or Compare.
var ErrInvalidOption = errors.New("invalid option")

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// Documents is the content-addressed document store.
	Documents *docstore.Store

	// Indexes is the index manager over Documents.
	Indexes *index.Manager

	// Sessions tracks conversations and their active documents.
	Sessions *session.Manager

	// Generator is the text generation service. provider.Generator is the
	// production implementation.
	Generator task.Generator

	// TopK controls how many chunks are retrieved per question.
	// Defaults to 5 if zero.
	TopK int

	// HistoryDepth is the number of prior messages given to the chat
	// fallback. Defaults to 10 if zero.
	HistoryDepth int

	// MaxContextTokens is the estimated token budget for the chat prompt.
	// History is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Agent is the orchestrator. It is safe for concurrent use; all shared state
// lives in the stores it was built with.
type Agent struct {
	// docs is the document store.
	docs *docstore.Store

	// indexes caches per-set retrieval indexes.
	indexes *index.Manager

	// sessions holds conversation state.
	sessions *session.Manager

	// qa answers document questions.
	qa *task.QA

	// summarizer condenses text.
	summarizer *task.Summarizer

	// comparer contrasts two texts.
	comparer *task.Comparer

	// chat is the conversational fallback.
	chat *task.Chat

	// historyDepth is the number of recent messages used as context.
	historyDepth int
}

// New constructs an Agent from the provided Config.
func New(cfg *Config) (*Agent, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("agent: config must not be nil")
	case cfg.Documents == nil:
		return nil, fmt.Errorf("agent: Documents must not be nil")
	case cfg.Indexes == nil:
		return nil, fmt.Errorf("agent: Indexes must not be nil")
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("agent: Sessions must not be nil")
	case cfg.Generator == nil:
		return nil, fmt.Errorf("agent: Generator must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = index.DefaultK
	}

	depth := cfg.HistoryDepth
	if depth <= 0 {
		depth = session.DefaultHistoryDepth
	}

	return &Agent{
		docs:         cfg.Documents,
		indexes:      cfg.Indexes,
		sessions:     cfg.Sessions,
		qa:           task.NewQA(cfg.Indexes, cfg.Generator, topK),
		summarizer:   task.NewSummarizer(cfg.Generator, 0),
		comparer:     task.NewComparer(cfg.Generator, 0),
		chat:         task.NewChat(cfg.Generator, cfg.MaxContextTokens),
		historyDepth: depth,
	}, nil
}

// Ingest stores one document and reports whether it was processed or reused.
// Extraction and embedding failures are reported in the outcome rather than
// as an error; they are local to the document.
func (a *Agent) Ingest(ctx context.Context, f File) IngestOutcome {
	out := IngestOutcome{Name: f.Name, Status: string(docstore.StatusFailed)}

	res, err := a.docs.Ingest(ctx, f.Data, f.Name)
	if res != nil {
		out.DocumentID = res.Document.ID
		out.Status = string(res.Document.Status)
		out.Reused = res.Reused
		out.Chunks = res.Document.Chunks
	}
	if err != nil {
		out.Status = string(docstore.StatusFailed)
		out.Error = err.Error()
	}
	return out
}

// Upload ingests a batch of files and makes the batch's ready documents the
// session's active set. An empty sessionID creates a new session. When no
// file of the batch is ready the active set is left unchanged.
func (a *Agent) Upload(ctx context.Context, sessionID string, files []File) (*UploadResult, error) {
	if sessionID == "" {
		sessionID = a.sessions.Create()
	} else if err := a.sessions.Exists(sessionID); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx).With(slog.String("session_id", sessionID))

	res := &UploadResult{SessionID: sessionID, Documents: make([]IngestOutcome, 0, len(files))}
	var ready []string
	for _, f := range files {
		out := a.Ingest(ctx, f)
		res.Documents = append(res.Documents, out)
		if out.Status == string(docstore.StatusReady) {
			ready = append(ready, out.DocumentID)
		}
		log.Info("agent: document ingested",
			slog.String("filename", out.Name),
			slog.String("document_id", out.DocumentID),
			slog.String("status", out.Status),
			slog.Bool("reused", out.Reused),
		)
	}

	var err error
	if len(ready) > 0 {
		res.ActiveDocuments, err = a.sessions.SetActive(sessionID, ready)
	} else {
		res.ActiveDocuments, err = a.sessions.Active(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("agent: activate upload: %w", err)
	}
	return res, nil
}

// Activate replaces the session's active set with ids.
func (a *Agent) Activate(sessionID string, ids []string) ([]string, error) {
	return a.sessions.SetActive(sessionID, ids)
}

// Deactivate removes one document from the session's active set.
func (a *Agent) Deactivate(sessionID, documentID string) (bool, error) {
	return a.sessions.Deactivate(sessionID, documentID)
}

// CreateSession starts a new session and returns its id.
func (a *Agent) CreateSession() string {
	return a.sessions.Create()
}

// SessionInfo returns a snapshot of a session.
func (a *Agent) SessionInfo(ctx context.Context, sessionID string) (*session.Info, error) {
	return a.sessions.Info(ctx, sessionID)
}

// ClearSession drops a session's messages and active set. Cached documents
// and indexes are kept.
func (a *Agent) ClearSession(ctx context.Context, sessionID string) error {
	if err := a.sessions.Clear(ctx, sessionID); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("agent: session cleared", slog.String("session_id", sessionID))
	return nil
}

// Documents lists every stored document, oldest first.
func (a *Agent) Documents() []docstore.Document {
	return a.docs.List()
}

// Document returns one stored document.
func (a *Agent) Document(id string) (docstore.Document, bool) {
	return a.docs.Get(id)
}

// RemoveDocument deletes a document, removes it from every session's active
// set and evicts the cached indexes that cover it. It reports whether the
// document existed.
func (a *Agent) RemoveDocument(ctx context.Context, id string) bool {
	if !a.docs.Remove(id) {
		return false
	}
	sessions := a.sessions.DropDocument(id)
	indexes := a.indexes.Evict(id)
	logging.FromContext(ctx).Info("agent: document removed",
		slog.String("document_id", id),
		slog.Int("sessions", sessions),
		slog.Int("indexes", indexes),
	)
	return true
}

// Summarize condenses text directly, outside any session. Unknown options
// are reported as ErrInvalidOption; blank text as *task.EmptyInputError.
func (a *Agent) Summarize(ctx context.Context, text, style, audience string) (*task.Summary, error) {
	st, err := task.ParseStyle(style)
	if err != nil {
		return nil, fmt.Errorf("agent: %w: %v", ErrInvalidOption, err)
	}
	aud, err := task.ParseAudience(audience)
	if err != nil {
		return nil, fmt.Errorf("agent: %w: %v", ErrInvalidOption, err)
	}
	return a.summarizer.Summarize(ctx, text, st, aud)
}

// Compare contrasts two texts directly, outside any session. Unknown modes
// are reported as ErrInvalidOption; fewer than two non-empty texts as
// *task.InsufficientInputError.
func (a *Agent) Compare(ctx context.Context, textA, textB, mode string) (*task.Comparison, error) {
	m, err := task.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("agent: %w: %v", ErrInvalidOption, err)
	}
	return a.comparer.Compare(ctx, textA, textB, m)
}
