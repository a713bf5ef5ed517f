package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimensions is the vector size of the hashing embedder when
// EMBEDDING_DIMENSIONS is not set.
const DefaultHashDimensions = 256

// Hashing is a deterministic, dependency-free embedder based on the feature
// hashing trick: every lower-cased word and word bigram is hashed into one
// of dim signed buckets, and the bucket vector is L2-normalised. Texts that
// share vocabulary land close together under cosine similarity, which is
// enough for local use and for tests that must not reach a model server.
type Hashing struct {
	// dim is the output vector length.
	dim int
}

// NewHashing returns a Hashing embedder producing vectors of length dim.
// Non-positive dim falls back to DefaultHashDimensions.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultHashDimensions
	}
	return &Hashing{dim: dim}
}

// Dimensions returns the output vector length.
func (h *Hashing) Dimensions() int { return h.dim }

// Embed converts a batch of texts into their corresponding embeddings.
func (h *Hashing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

// vector embeds a single text.
func (h *Hashing) vector(text string) []float32 {
	v := make([]float64, h.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for i, w := range words {
		h.add(v, w, 1)
		if i > 0 {
			h.add(v, words[i-1]+" "+w, 0.5)
		}
	}

	var sum float64
	for _, x := range v {
		sum += x * x
	}
	out := make([]float32, h.dim)
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(x / n)
	}
	return out
}

// add hashes feature into a bucket; the top bit of the hash picks the sign
// so unrelated features tend to cancel rather than accumulate.
func (h *Hashing) add(v []float64, feature string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}
