// Package docstore is the content-addressed cache of uploaded documents and
// their derived chunk and embedding artifacts. A document's identity is the
// SHA-256 of its bytes, so re-uploading identical content never repeats the
// extraction or embedding work.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/54b3r/docintel-go/internal/ingestion"
	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/rag"
)

// Status is the ingestion state of a Document.
type Status string

// Document ingestion states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

var (
	// ErrNotFound is returned for an unknown document id.
	ErrNotFound = errors.New("document not found")

	// ErrNotReady is returned when artifacts are requested for a document
	// that is not in the ready state.
	ErrNotReady = errors.New("document is not ready")

	// ErrEmptyDocument is returned when Ingest is called with no bytes.
	ErrEmptyDocument = errors.New("document is empty")
)

// Document is the public view of a stored document.
type Document struct {
	// ID is the lowercase hex SHA-256 of the document bytes.
	ID string `json:"id"`

	// Name is the display name given on first upload.
	Name string `json:"name"`

	// Size is the byte size of the document.
	Size int64 `json:"size"`

	// Status is the ingestion state.
	Status Status `json:"status"`

	// Error is the failure detail when Status is failed.
	Error string `json:"error,omitempty"`

	// Chunks is the number of chunks once ready.
	Chunks int `json:"chunks"`

	// CreatedAt is when the document was first seen.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the time of the last status transition.
	UpdatedAt time.Time `json:"updated_at"`
}

// Processor turns document bytes into artifacts. *ingestion.Pipeline is the
// production implementation.
type Processor interface {
	Process(ctx context.Context, documentID, filename string, data []byte) (*ingestion.Result, error)
}

// IngestResult is the outcome of Store.Ingest.
type IngestResult struct {
	// Document is a snapshot of the stored document after the call.
	Document Document

	// Reused is true when the artifacts already existed or were produced by
	// a concurrent ingest of the same content, so this call did no work.
	Reused bool
}

// record is the internal state of one document.
type record struct {
	doc     Document
	text    string
	entries []rag.Entry
}

// Store is the Document Store. It is safe for concurrent use. Ingests of the
// same content hash are collapsed into a single processing run while
// different hashes proceed independently.
type Store struct {
	// proc produces artifacts for new content.
	proc Processor

	// mu guards docs.
	mu sync.RWMutex

	// docs maps document id to its record.
	docs map[string]*record

	// inflight collapses concurrent ingests per hash.
	inflight singleflight.Group

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// New returns an empty Store that processes new content with proc.
func New(proc Processor) *Store {
	return &Store{
		proc: proc,
		docs: make(map[string]*record),
		now:  time.Now,
	}
}

// Hash returns the content identity of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Ingest stores data under its content hash and returns the document.
//
// A document that is already ready is returned immediately with Reused set.
// Otherwise the document moves pending → processing → ready or failed. On
// failure the returned result carries the failed document alongside the
// error, and no artifacts are kept; a later Ingest of the same bytes starts
// over. Processing is detached from ctx so a caller that stops waiting does
// not fail the work shared with other callers.
func (s *Store) Ingest(ctx context.Context, data []byte, filename string) (*IngestResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	id := Hash(data)
	log := logging.FromContext(ctx).With(slog.String("document_id", id), slog.String("filename", filename))

	if doc, ok := s.ready(id); ok {
		log.Debug("docstore: cache hit")
		return &IngestResult{Document: doc, Reused: true}, nil
	}

	executed := false
	v, err, _ := s.inflight.Do(id, func() (any, error) {
		executed = true
		if doc, ok := s.ready(id); ok {
			return &IngestResult{Document: doc, Reused: true}, nil
		}
		return s.process(context.WithoutCancel(ctx), id, filename, data)
	})

	res, _ := v.(*IngestResult)
	if res != nil && !executed && err == nil {
		res = &IngestResult{Document: res.Document, Reused: true}
	}
	if err != nil {
		log.Warn("docstore: ingest failed", slog.String("error", err.Error()))
		return res, err
	}
	return res, nil
}

// process runs the processor for a new or previously failed hash.
func (s *Store) process(ctx context.Context, id, filename string, data []byte) (*IngestResult, error) {
	now := s.now()
	rec := &record{doc: Document{
		ID:        id,
		Name:      filename,
		Size:      int64(len(data)),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}}

	s.mu.Lock()
	if prev, ok := s.docs[id]; ok {
		rec.doc.CreatedAt = prev.doc.CreatedAt
		rec.doc.Name = prev.doc.Name
	}
	s.docs[id] = rec
	rec.doc.Status = StatusProcessing
	rec.doc.UpdatedAt = s.now()
	s.mu.Unlock()

	out, err := s.proc.Process(ctx, id, filename, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.doc.UpdatedAt = s.now()
	if err != nil {
		rec.doc.Status = StatusFailed
		rec.doc.Error = err.Error()
		rec.doc.Chunks = 0
		return &IngestResult{Document: rec.doc}, err
	}
	if out == nil || len(out.Entries) == 0 {
		err = &ingestion.ExtractionError{Filename: filename, Err: errors.New("no chunks produced")}
		rec.doc.Status = StatusFailed
		rec.doc.Error = err.Error()
		return &IngestResult{Document: rec.doc}, err
	}

	rec.text = out.Text
	rec.entries = out.Entries
	rec.doc.Chunks = len(out.Entries)
	rec.doc.Status = StatusReady
	rec.doc.Error = ""

	logging.FromContext(ctx).Info("docstore: document ready",
		slog.String("document_id", id),
		slog.Int("chunks", rec.doc.Chunks),
	)
	return &IngestResult{Document: rec.doc}, nil
}

// ready returns the document when it exists and is ready.
func (s *Store) ready(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[id]
	if !ok || rec.doc.Status != StatusReady {
		return Document{}, false
	}
	return rec.doc, true
}

// Get returns the document with id.
func (s *Store) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[id]
	if !ok {
		return Document{}, false
	}
	return rec.doc, true
}

// Ready reports whether id names a ready document.
func (s *Store) Ready(id string) bool {
	_, ok := s.ready(id)
	return ok
}

// List returns every document, oldest first.
func (s *Store) List() []Document {
	s.mu.RLock()
	out := make([]Document, 0, len(s.docs))
	for _, rec := range s.docs {
		out = append(out, rec.doc)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Entries returns the embedded chunks of a ready document.
func (s *Store) Entries(id string) ([]rag.Entry, error) {
	rec, err := s.readyRecord(id)
	if err != nil {
		return nil, err
	}
	return rec.entries, nil
}

// Artifact returns the artifact of a ready document for index building.
func (s *Store) Artifact(id string) (rag.Artifact, error) {
	rec, err := s.readyRecord(id)
	if err != nil {
		return rag.Artifact{}, err
	}
	return rag.Artifact{DocumentID: id, Entries: rec.entries}, nil
}

// Text returns the full extracted text of a ready document.
func (s *Store) Text(id string) (string, error) {
	rec, err := s.readyRecord(id)
	if err != nil {
		return "", err
	}
	return rec.text, nil
}

// readyRecord looks up a ready record. Entries slices are never mutated after
// publication so they are returned without copying.
func (s *Store) readyRecord(id string) (*record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("docstore: %s: %w", id, ErrNotFound)
	}
	if rec.doc.Status != StatusReady {
		return nil, fmt.Errorf("docstore: %s (%s): %w", id, rec.doc.Status, ErrNotReady)
	}
	return rec, nil
}

// Remove deletes a document and its artifacts. It reports whether the
// document existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return false
	}
	delete(s.docs, id)
	return true
}
