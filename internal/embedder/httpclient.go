package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response body is read for the
// error message.
const maxErrorBody = 4 << 10

// httpStatusError is returned when an embedding endpoint answers with a
// non-2xx status.
type httpStatusError struct {
	// Status is the HTTP status code.
	Status int
	// Message is the provider's error message, or the raw body prefix.
	Message string
}

func (e *httpStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// postJSON sends body as JSON to url and decodes a 2xx response into out.
// On a non-2xx status the body is handed to errMsg, which extracts the
// provider-specific error text.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, body, out any, errMsg func([]byte) string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := ""
		if errMsg != nil {
			msg = errMsg(raw)
		}
		if msg == "" {
			msg = string(bytes.TrimSpace(raw))
		}
		return &httpStatusError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// embedBatches splits texts into slices of at most size and concatenates the
// vectors returned by call for each slice. Every vector must be non-empty and
// share the first vector's dimension.
func embedBatches(texts []string, size int, call func([]string) ([][]float32, error)) ([][]float32, error) {
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := call(texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(vecs))
		}
		out = append(out, vecs...)
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
		if len(v) != len(out[0]) {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), len(out[0]))
		}
	}
	return out, nil
}
