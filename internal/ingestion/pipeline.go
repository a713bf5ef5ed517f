// Package ingestion turns uploaded document bytes into retrievable
// artifacts: it extracts text, splits it into overlapping chunks and embeds
// every chunk. The result for a document is produced whole or not at all.
// A Watcher can feed files dropped into an inbox directory through the same
// path.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/rag"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the number of runes per chunk.
	// Defaults to 400 if zero.
	ChunkSize int

	// ChunkOverlap is the number of runes shared by consecutive chunks.
	// Zero disables overlap and a negative value selects the default of 50.
	// It is reset to ChunkSize/10 if not smaller than ChunkSize.
	ChunkOverlap int

	// BatchSize is the number of chunks sent per embedding call.
	// Defaults to 32 if zero.
	BatchSize int

	// PDFToText is the pdftotext binary path. Defaults to "pdftotext".
	PDFToText string

	// Runner executes pdftotext. Defaults to ExecRunner.
	Runner CommandRunner
}

// Result is the complete output of processing one document.
type Result struct {
	// Text is the full extracted text with page breaks rendered as newlines.
	Text string

	// Entries are the embedded chunks in ascending ordinal order.
	Entries []rag.Entry
}

// Pipeline orchestrates the extract → chunk → embed flow for one document.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// extractor turns raw bytes into text.
	extractor *Extractor

	// chunker splits text into overlapping windows.
	chunker *Chunker

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided embedder and config.
func NewPipeline(embedder rag.Embedder, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{ChunkOverlap: -1}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	return &Pipeline{
		embedder:  embedder,
		extractor: NewExtractor(cfg.Runner, cfg.PDFToText),
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:       cfg,
	}, nil
}

// Process extracts, chunks and embeds data as document documentID.
// It fails with *ExtractionError when no text can be obtained and with
// *rag.EmbeddingError when any embedding call fails; in both cases no
// partial result is returned.
func (p *Pipeline) Process(ctx context.Context, documentID, filename string, data []byte) (*Result, error) {
	log := logging.FromContext(ctx).With(
		slog.String("document_id", documentID),
		slog.String("filename", filename),
	)

	text, err := p.extractor.Extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	chunks := p.chunker.Split(documentID, text)
	if len(chunks) == 0 {
		return nil, &ExtractionError{Filename: filename, Err: errNoText}
	}
	log.Debug("ingestion: chunked document", slog.Int("chunks", len(chunks)))

	entries := make([]rag.Entry, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, embeddingError(err)
		}
		if len(vectors) != len(batch) {
			return nil, &rag.EmbeddingError{
				Err: fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors)),
			}
		}

		for i, c := range batch {
			entries = append(entries, rag.Entry{Chunk: c, Vector: vectors[i]})
		}
	}

	log.Info("ingestion: document processed", slog.Int("chunks", len(entries)))

	return &Result{
		Text:    strings.ReplaceAll(text, "\f", "\n"),
		Entries: entries,
	}, nil
}

// embeddingError wraps err as a *rag.EmbeddingError unless it already is one.
func embeddingError(err error) error {
	var ee *rag.EmbeddingError
	if errors.As(err, &ee) {
		return err
	}
	return &rag.EmbeddingError{Err: err}
}
