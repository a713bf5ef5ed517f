package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// MemoryBuilder builds exact brute-force cosine indexes held entirely in
// process memory. It is the default index backend.
type MemoryBuilder struct{}

// NewMemoryBuilder returns a MemoryBuilder.
func NewMemoryBuilder() *MemoryBuilder {
	return &MemoryBuilder{}
}

// Build copies and normalises every entry vector of artifacts into a new
// immutable memory index. All vectors must share one dimension.
func (b *MemoryBuilder) Build(ctx context.Context, artifacts []Artifact) (Index, error) {
	idx := &memoryIndex{}
	seen := make(map[string]bool, len(artifacts))

	for _, a := range artifacts {
		if seen[a.DocumentID] {
			continue
		}
		seen[a.DocumentID] = true
		idx.docs = append(idx.docs, a.DocumentID)

		for _, e := range a.Entries {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("rag: memory build: %w", err)
			}
			if idx.dim == 0 {
				idx.dim = len(e.Vector)
			}
			if len(e.Vector) != idx.dim {
				return nil, fmt.Errorf("rag: memory build: document %s chunk %d has dimension %d, want %d",
					a.DocumentID, e.Chunk.Ordinal, len(e.Vector), idx.dim)
			}
			idx.chunks = append(idx.chunks, e.Chunk)
			idx.vectors = append(idx.vectors, normalize(e.Vector))
		}
	}
	sort.Strings(idx.docs)

	return idx, nil
}

// memoryIndex is the Index returned by MemoryBuilder.
type memoryIndex struct {
	// docs is the sorted list of covered document ids.
	docs []string
	// chunks is parallel to vectors.
	chunks []Chunk
	// vectors holds L2-normalised embeddings.
	vectors [][]float32
	// dim is the shared vector dimension (0 for an empty index).
	dim int
}

// Search scores every chunk against vector and returns the top k.
func (m *memoryIndex) Search(_ context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	if len(m.chunks) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("rag: query dimension %d does not match index dimension %d", len(vector), m.dim)
	}

	q := normalize(vector)
	hits := make([]ScoredChunk, len(m.chunks))
	for i, v := range m.vectors {
		hits[i] = ScoredChunk{Chunk: m.chunks[i], Score: dot(q, v)}
	}
	SortScored(hits)

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Len returns the number of indexed chunks.
func (m *memoryIndex) Len() int { return len(m.chunks) }

// Documents returns the covered document ids.
func (m *memoryIndex) Documents() []string {
	out := make([]string, len(m.docs))
	copy(out, m.docs)
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is zero or the dimensions differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return dot(normalize(a), normalize(b))
}

// normalize returns a unit-length copy of v. A zero vector is returned as a
// zero copy.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// dot accumulates in float64 so rankings do not depend on summation order
// rounding.
func dot(a, b []float32) float32 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return float32(s)
}
