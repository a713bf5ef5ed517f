package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner is a test double for CommandRunner.
type fakeRunner struct {
	output []byte
	err    error

	name string
	args []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	return f.output, f.err
}

var _ CommandRunner = (*fakeRunner)(nil)
var _ CommandRunner = ExecRunner{}

func TestExtract_PlainText(t *testing.T) {
	t.Parallel()

	text, err := NewExtractor(nil, "").Extract(context.Background(), "notes.txt", []byte("line one\r\nline two"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
}

func TestExtract_StripsBOM(t *testing.T) {
	t.Parallel()

	text, err := NewExtractor(nil, "").Extract(context.Background(), "a.md", []byte("\xef\xbb\xbf# Title"))
	require.NoError(t, err)
	assert.Equal(t, "# Title", text)
}

func TestExtract_PDFUsesRunner(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: []byte("Page one text\fPage two text\n")}
	text, err := NewExtractor(runner, "/opt/bin/pdftotext").
		Extract(context.Background(), "report.pdf", []byte("%PDF-1.7 fake"))
	require.NoError(t, err)

	assert.Equal(t, "Page one text\fPage two text\n", text)
	assert.Equal(t, "/opt/bin/pdftotext", runner.name)
	require.Len(t, runner.args, 5)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8"}, runner.args[:3])
	assert.Equal(t, "-", runner.args[4])
}

func TestExtract_PDFMagicWithoutExtension(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: []byte("body")}
	_, err := NewExtractor(runner, "").Extract(context.Background(), "upload", []byte("%PDF-1.4 ..."))
	require.NoError(t, err)
	assert.Equal(t, "pdftotext", runner.name)
}

func TestExtract_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		data     []byte
		runner   *fakeRunner
	}{
		{name: "empty bytes", filename: "a.txt", data: nil},
		{name: "whitespace only", filename: "a.txt", data: []byte(" \n\t ")},
		{name: "invalid utf8 text", filename: "a.txt", data: []byte{0xff, 0xfe, 0xfd}},
		{name: "binary unknown type", filename: "a.bin", data: []byte{'a', 0, 'b'}},
		{name: "pdf extension without magic", filename: "a.pdf", data: []byte("hello")},
		{name: "pdftotext fails", filename: "a.pdf", data: []byte("%PDF-1.4"), runner: &fakeRunner{err: errors.New("exit status 1")}},
		{name: "pdf without text", filename: "scan.pdf", data: []byte("%PDF-1.4"), runner: &fakeRunner{output: []byte("\f\f\n")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var runner CommandRunner
			if tc.runner != nil {
				runner = tc.runner
			}
			_, err := NewExtractor(runner, "").Extract(context.Background(), tc.filename, tc.data)

			var ee *ExtractionError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tc.filename, ee.Filename)
		})
	}
}
