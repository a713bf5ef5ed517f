// Package rag defines the retrieval contracts shared by the ingestion
// pipeline, the index manager and the task handlers: chunks and their
// embeddings, the Embedder collaborator, and searchable indexes built over
// the chunks of one or more documents.
// Concrete index implementations (in-memory, Qdrant) satisfy these
// interfaces so the rest of the system never depends on a specific backend.
package rag

import (
	"context"
	"fmt"
	"sort"
)

// Chunk is a contiguous span of a document's extracted text. It is the unit
// of retrieval and citation and is never mutated after creation.
type Chunk struct {
	// DocumentID is the content hash of the owning document.
	DocumentID string

	// Ordinal is the zero-based position of the chunk within its document.
	Ordinal int

	// Text is the chunk content.
	Text string

	// Offset is the byte offset of the chunk start in the extracted text.
	Offset int

	// Page is the 1-based page the chunk starts on, or 0 when unknown.
	Page int
}

// Entry pairs a Chunk with its embedding vector.
type Entry struct {
	// Chunk is the embedded text span.
	Chunk Chunk

	// Vector is the fixed-dimension embedding of Chunk.Text.
	Vector []float32
}

// Artifact is the complete, ordered set of entries derived from one document.
type Artifact struct {
	// DocumentID is the content hash of the document.
	DocumentID string

	// Entries are ordered by ascending chunk ordinal.
	Entries []Entry
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk

	// Score is the cosine similarity between the query and the chunk.
	Score float32
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is a read-only searchable structure over the entries of a fixed set
// of documents. Implementations must be safe for concurrent searches.
type Index interface {
	// Search returns at most k chunks ranked by descending similarity to
	// vector. Ties are broken by ascending ordinal, then document id.
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)

	// Len returns the number of chunks in the index.
	Len() int

	// Documents returns the sorted ids of the documents covered by the index.
	Documents() []string
}

// Builder constructs an Index from the artifacts of a document set.
type Builder interface {
	// Build returns a new Index covering every entry of artifacts.
	Build(ctx context.Context, artifacts []Artifact) (Index, error)
}

// EmbeddingError reports that the embedding collaborator failed after the
// bounded retry was exhausted.
type EmbeddingError struct {
	// Err is the last underlying failure.
	Err error
}

// Error implements error.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

// Unwrap returns the underlying failure.
func (e *EmbeddingError) Unwrap() error { return e.Err }

// SortScored orders hits by descending score, then ascending chunk ordinal,
// then ascending document id so equal scores rank deterministically.
func SortScored(hits []ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		return a.DocumentID < b.DocumentID
	})
}
