package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/docintel-go/internal/agent"
	"github.com/54b3r/docintel-go/internal/classifier"
	"github.com/54b3r/docintel-go/internal/response"
	"github.com/54b3r/docintel-go/internal/task"
)

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  int
	}{
		{name: "unset", want: 7},
		{name: "empty", value: "", set: true, want: 7},
		{name: "valid", value: "42", set: true, want: 42},
		{name: "malformed", value: "forty", set: true, want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("DOCINTEL_TEST_INT", tt.value)
			}
			if got := getEnvInt("DOCINTEL_TEST_INT", 7); got != tt.want {
				t.Errorf("getEnvInt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("DOCINTEL_TEST_INT64", "8589934592")
	if got := getEnvInt64("DOCINTEL_TEST_INT64", 1); got != 8589934592 {
		t.Errorf("getEnvInt64 = %d, want 8589934592", got)
	}
	t.Setenv("DOCINTEL_TEST_INT64", "x")
	if got := getEnvInt64("DOCINTEL_TEST_INT64", 1); got != 1 {
		t.Errorf("getEnvInt64 on malformed value = %d, want fallback 1", got)
	}
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	files, err := readFiles([]string{path})
	if err != nil {
		t.Fatalf("readFiles: %v", err)
	}
	if len(files) != 1 || files[0].Name != "notes.txt" || string(files[0].Data) != "hello" {
		t.Errorf("readFiles = %+v", files)
	}

	if _, err := readFiles([]string{filepath.Join(dir, "missing.txt")}); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestPrintEnvelope_Text(t *testing.T) {
	env := &response.Envelope{
		Success:  true,
		Category: classifier.RetrievalQA,
		Result: response.AnswerPayload{
			Answer: "Revenue grew 12%.",
			Citations: []task.Citation{
				{DocumentName: "q3.pdf", Page: 4, Score: 0.91},
			},
		},
	}

	var buf bytes.Buffer
	if err := printEnvelope(&buf, env, false); err != nil {
		t.Fatalf("printEnvelope: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Revenue grew 12%.") {
		t.Errorf("answer missing from output: %q", out)
	}
	if !strings.Contains(out, "[q3.pdf, page 4] score 0.910") {
		t.Errorf("citation missing from output: %q", out)
	}
}

func TestPrintEnvelope_JSONFailure(t *testing.T) {
	env := &response.Envelope{Success: false, Category: classifier.Chat, Error: "model unavailable"}

	var buf bytes.Buffer
	err := printEnvelope(&buf, env, true)
	if err == nil || err.Error() != "model unavailable" {
		t.Fatalf("printEnvelope error = %v, want the envelope error", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["success"] != false {
		t.Errorf("success = %v, want false", decoded["success"])
	}
}

func TestDirectEnvelope(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		sum := &task.Summary{Text: "short", Style: task.StyleBrief}
		env, err := directEnvelope("long text", classifier.Summarization, sum, nil)
		if err != nil {
			t.Fatalf("directEnvelope: %v", err)
		}
		if !env.Success || env.Confidence != 1 || env.Category != classifier.Summarization {
			t.Errorf("envelope = %+v", env)
		}
		if _, ok := env.Result.(response.SummaryPayload); !ok {
			t.Errorf("result = %T, want SummaryPayload", env.Result)
		}
	})

	t.Run("invalid option is an error", func(t *testing.T) {
		err := fmt.Errorf("agent: %w: unknown style", agent.ErrInvalidOption)
		if _, got := directEnvelope("", classifier.Summarization, nil, err); !errors.Is(got, agent.ErrInvalidOption) {
			t.Errorf("error = %v, want ErrInvalidOption", got)
		}
	})

	t.Run("empty input is recoverable", func(t *testing.T) {
		env, err := directEnvelope("", classifier.Comparison, nil, &task.EmptyInputError{Task: "comparison"})
		if err != nil {
			t.Fatalf("directEnvelope: %v", err)
		}
		if !env.Success {
			t.Error("empty input should produce a successful envelope")
		}
		if _, ok := env.Result.(response.MessagePayload); !ok {
			t.Errorf("result = %T, want MessagePayload", env.Result)
		}
	})
}
