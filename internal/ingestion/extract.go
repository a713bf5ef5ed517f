package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// pdfMagic is the signature every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// textExtensions are always decoded as UTF-8 text.
var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".json":     true,
}

// ExtractionError reports that a document's bytes could not be turned into
// text. The document is marked failed and no chunks are kept.
type ExtractionError struct {
	// Filename is the display name of the source document.
	Filename string

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract text from %q: %v", e.Filename, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error { return e.Err }

// errNoText is returned when extraction succeeds but yields only whitespace.
var errNoText = errors.New("document contains no extractable text")

// Extractor turns raw document bytes into plain text. PDF pages are
// separated by form feeds in the returned text.
type Extractor struct {
	// runner executes pdftotext.
	runner CommandRunner

	// pdftotext is the pdftotext binary name or path.
	pdftotext string
}

// NewExtractor returns an Extractor. A nil runner uses ExecRunner and an
// empty binary path uses "pdftotext" from PATH.
func NewExtractor(runner CommandRunner, pdftotextPath string) *Extractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	if pdftotextPath == "" {
		pdftotextPath = "pdftotext"
	}
	return &Extractor{runner: runner, pdftotext: pdftotextPath}
}

// Extract returns the text of data. Every failure is an *ExtractionError.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	text, err := e.extract(ctx, filename, data)
	if err != nil {
		return "", &ExtractionError{Filename: filename, Err: err}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) == "" {
		return "", &ExtractionError{Filename: filename, Err: errNoText}
	}
	return text, nil
}

// extract dispatches on file type.
func (e *Extractor) extract(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errNoText
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf" || bytes.HasPrefix(data, pdfMagic):
		if !bytes.HasPrefix(data, pdfMagic) {
			return "", errors.New("file has a .pdf extension but is not a PDF")
		}
		return e.extractPDF(ctx, data)

	case textExtensions[ext]:
		if !utf8.Valid(data) {
			return "", errors.New("text file is not valid UTF-8")
		}
		return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil

	default:
		if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
			return "", fmt.Errorf("unsupported file type %q", ext)
		}
		return string(data), nil
	}
}

// extractPDF writes data to a temporary file and runs pdftotext on it.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docintel-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, e.pdftotext, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	if !utf8.Valid(out) {
		out = bytes.ToValidUTF8(out, []byte("�"))
	}
	return string(out), nil
}
