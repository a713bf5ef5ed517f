package ingestion

import (
	"sort"
	"strings"

	"github.com/54b3r/docintel-go/internal/rag"
)

// Default chunking parameters, in runes.
const (
	DefaultChunkSize    = 400
	DefaultChunkOverlap = 50
)

// Chunker splits text into fixed-size overlapping windows.
type Chunker struct {
	// size is the window length in runes.
	size int
	// overlap is the number of runes shared by consecutive windows.
	overlap int
}

// NewChunker returns a Chunker. Non-positive size falls back to
// DefaultChunkSize; an overlap that is negative or not smaller than size is
// reset to size/10.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split cuts text into chunks owned by documentID. Form feeds in text mark
// page boundaries; they are rendered as newlines in chunk text. Windows that
// contain only whitespace are skipped without consuming an ordinal.
func (c *Chunker) Split(documentID, text string) []rag.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pages := pageStarts(text)
	runes := []rune(text)

	// offsets[i] is the byte offset of runes[i].
	offsets := make([]int, len(runes)+1)
	for i, r := range runes {
		offsets[i+1] = offsets[i] + len(string(r))
	}

	var chunks []rag.Chunk
	step := c.size - c.overlap
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		piece := strings.ReplaceAll(string(runes[start:end]), "\f", "\n")
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, rag.Chunk{
				DocumentID: documentID,
				Ordinal:    len(chunks),
				Text:       piece,
				Offset:     offsets[start],
				Page:       pageAt(pages, offsets[start]),
			})
		}

		if end == len(runes) {
			break
		}
	}
	return chunks
}

// pageStarts returns the byte offsets at which pages 2..n begin, or nil when
// text has no form feeds.
func pageStarts(text string) []int {
	var starts []int
	for i := 0; i < len(text); i++ {
		if text[i] == '\f' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// pageAt maps a byte offset to a 1-based page number, or 0 without page
// information.
func pageAt(starts []int, offset int) int {
	if starts == nil {
		return 0
	}
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) + 1
}
