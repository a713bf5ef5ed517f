package docstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docintel-go/internal/ingestion"
	"github.com/54b3r/docintel-go/internal/rag"
)

// fakeProcessor produces one entry per call and can block or fail.
type fakeProcessor struct {
	calls   atomic.Int32
	started chan string
	release chan struct{}
	err     error
}

func (f *fakeProcessor) Process(ctx context.Context, id, filename string, data []byte) (*ingestion.Result, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- id
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ingestion.Result{
		Text: string(data),
		Entries: []rag.Entry{{
			Chunk:  rag.Chunk{DocumentID: id, Ordinal: 0, Text: string(data)},
			Vector: []float32{1, 0},
		}},
	}, nil
}

var _ Processor = (*fakeProcessor)(nil)
var _ Processor = (*ingestion.Pipeline)(nil)

func TestHash_StableHex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Hash([]byte("abc")), Hash([]byte("abc")))
	assert.NotEqual(t, Hash([]byte("abc")), Hash([]byte("abd")))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Hash([]byte("abc")))
}

func TestIngest_FreshThenReused(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	s := New(proc)
	ctx := context.Background()

	first, err := s.Ingest(ctx, []byte("annual report"), "report.txt")
	require.NoError(t, err)
	assert.False(t, first.Reused)
	assert.Equal(t, StatusReady, first.Document.Status)
	assert.Equal(t, 1, first.Document.Chunks)
	assert.Equal(t, int64(13), first.Document.Size)

	second, err := s.Ingest(ctx, []byte("annual report"), "copy-of-report.txt")
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Document.ID, second.Document.ID)
	assert.Equal(t, "report.txt", second.Document.Name, "first display name is kept")

	assert.Equal(t, int32(1), proc.calls.Load(), "identical bytes must not be processed twice")
}

func TestIngest_EmptyRejected(t *testing.T) {
	t.Parallel()

	s := New(&fakeProcessor{})
	_, err := s.Ingest(context.Background(), nil, "empty.txt")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIngest_ConcurrentSameHashProcessesOnce(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{started: make(chan string, 1), release: make(chan struct{})}
	s := New(proc)

	const callers = 8
	results := make([]*IngestResult, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := s.Ingest(context.Background(), []byte("same"), "a.txt")
		assert.NoError(t, err)
		results[0] = res
	}()
	<-proc.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Ingest(context.Background(), []byte("same"), "a.txt")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	// Give the followers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(proc.release)
	wg.Wait()

	assert.Equal(t, int32(1), proc.calls.Load())
	fresh := 0
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, StatusReady, r.Document.Status)
		if !r.Reused {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh, "exactly one caller reports a fresh ingest")
}

func TestIngest_JoinedFailureIsNotReused(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{started: make(chan string, 1), release: make(chan struct{}), err: errors.New("corrupt pdf")}
	s := New(proc)

	const callers = 4
	results := make([]*IngestResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = s.Ingest(context.Background(), []byte("broken"), "b.pdf")
	}()
	<-proc.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Ingest(context.Background(), []byte("broken"), "b.pdf")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(proc.release)
	wg.Wait()

	for i := range results {
		assert.Error(t, errs[i], "caller %d", i)
		require.NotNil(t, results[i], "caller %d", i)
		assert.Equal(t, StatusFailed, results[i].Document.Status, "caller %d", i)
		assert.False(t, results[i].Reused, "caller %d: a failed run is never a reuse", i)
	}
}

func TestIngest_DifferentHashesRunIndependently(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{started: make(chan string, 2), release: make(chan struct{})}
	s := New(proc)

	var wg sync.WaitGroup
	for _, body := range []string{"doc one", "doc two"} {
		wg.Add(1)
		go func(body string) {
			defer wg.Done()
			_, err := s.Ingest(context.Background(), []byte(body), body+".txt")
			assert.NoError(t, err)
		}(body)
	}

	// Both must be processing at the same time before either is released.
	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case id := <-proc.started:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("second ingest blocked behind the first")
		}
	}
	assert.Len(t, got, 2)

	for _, id := range []string{Hash([]byte("doc one")), Hash([]byte("doc two"))} {
		doc, ok := s.Get(id)
		require.True(t, ok)
		assert.Equal(t, StatusProcessing, doc.Status)
	}

	close(proc.release)
	wg.Wait()
	assert.Len(t, s.List(), 2)
}

func TestIngest_FailureKeepsNoArtifactsAndRetries(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{err: &ingestion.ExtractionError{Filename: "bad.pdf", Err: errors.New("corrupt")}}
	s := New(proc)
	ctx := context.Background()

	res, err := s.Ingest(ctx, []byte("%PDF-broken"), "bad.pdf")
	var ee *ingestion.ExtractionError
	require.ErrorAs(t, err, &ee)
	require.NotNil(t, res)
	assert.Equal(t, StatusFailed, res.Document.Status)
	assert.Contains(t, res.Document.Error, "corrupt")

	_, err = s.Entries(res.Document.ID)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, s.Ready(res.Document.ID))

	// The same bytes restart from scratch once the processor recovers.
	proc.err = nil
	res, err = s.Ingest(ctx, []byte("%PDF-broken"), "bad.pdf")
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.Equal(t, StatusReady, res.Document.Status)
	assert.Empty(t, res.Document.Error)
	assert.Equal(t, int32(2), proc.calls.Load())
}

func TestIngest_CallerCancellationDoesNotFailWork(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{started: make(chan string, 1), release: make(chan struct{})}
	s := New(proc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Ingest(ctx, []byte("slow doc"), "slow.txt")
	}()

	<-proc.started
	cancel()
	close(proc.release)
	<-done

	assert.True(t, s.Ready(Hash([]byte("slow doc"))))
}

func TestAccessors(t *testing.T) {
	t.Parallel()

	s := New(&fakeProcessor{})
	ctx := context.Background()
	res, err := s.Ingest(ctx, []byte("full text body"), "body.txt")
	require.NoError(t, err)
	id := res.Document.ID

	text, err := s.Text(id)
	require.NoError(t, err)
	assert.Equal(t, "full text body", text)

	art, err := s.Artifact(id)
	require.NoError(t, err)
	assert.Equal(t, id, art.DocumentID)
	assert.Len(t, art.Entries, 1)

	_, err = s.Text("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, s.Remove(id))
	assert.False(t, s.Remove(id))
	_, ok := s.Get(id)
	assert.False(t, ok)
}

func TestList_OldestFirst(t *testing.T) {
	t.Parallel()

	s := New(&fakeProcessor{})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	ctx := context.Background()
	_, err := s.Ingest(ctx, []byte("first"), "1.txt")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, []byte("second"), "2.txt")
	require.NoError(t, err)

	docs := s.List()
	require.Len(t, docs, 2)
	assert.Equal(t, "1.txt", docs[0].Name)
	assert.Equal(t, "2.txt", docs[1].Name)
}
