package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/docintel-go/internal/docstore"
	"github.com/54b3r/docintel-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeSource serves artifacts from a map.
type fakeSource struct {
	mu   sync.Mutex
	arts map[string]rag.Artifact
}

func newFakeSource() *fakeSource {
	return &fakeSource{arts: map[string]rag.Artifact{}}
}

// add registers a document whose chunk vectors are given in ordinal order.
func (f *fakeSource) add(id string, vectors ...[]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := rag.Artifact{DocumentID: id}
	for i, v := range vectors {
		a.Entries = append(a.Entries, rag.Entry{
			Chunk:  rag.Chunk{DocumentID: id, Ordinal: i, Text: fmt.Sprintf("%s-%d", id, i)},
			Vector: v,
		})
	}
	f.arts[id] = a
}

func (f *fakeSource) Artifact(id string) (rag.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.arts[id]
	if !ok {
		return rag.Artifact{}, docstore.ErrNotFound
	}
	return a, nil
}

// countingBuilder wraps the memory builder, counting builds and optionally
// blocking until released.
type countingBuilder struct {
	builds  atomic.Int32
	release chan struct{}
	err     error
}

func (b *countingBuilder) Build(ctx context.Context, artifacts []rag.Artifact) (rag.Index, error) {
	b.builds.Add(1)
	if b.release != nil {
		<-b.release
	}
	if b.err != nil {
		return nil, b.err
	}
	return rag.NewMemoryBuilder().Build(ctx, artifacts)
}

// fixedEmbedder embeds every text as the same vector.
type fixedEmbedder struct {
	vec []float32
	err error
}

func (e *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

var _ Source = (*docstore.Store)(nil)

// ---------------------------------------------------------------------------
// Key
// ---------------------------------------------------------------------------

func TestKey_OrderIndependent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a+b+c", Key([]string{"c", "a", "b"}))
	assert.Equal(t, Key([]string{"b", "a"}), Key([]string{"a", "b", "a"}))
	assert.Equal(t, "", Key(nil))
	assert.Equal(t, "x", Key([]string{"", "x"}))
}

// ---------------------------------------------------------------------------
// GetOrBuild
// ---------------------------------------------------------------------------

func TestGetOrBuild_CachesPerSet(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.add("a", []float32{1, 0})
	src.add("b", []float32{0, 1})
	b := &countingBuilder{}
	m := NewManager(src, b, &fixedEmbedder{vec: []float32{1, 0}}, nil)
	ctx := context.Background()

	first, err := m.GetOrBuild(ctx, []string{"a", "b"})
	require.NoError(t, err)
	second, err := m.GetOrBuild(ctx, []string{"b", "a"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), b.builds.Load())

	_, err = m.GetOrBuild(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), b.builds.Load(), "a different set triggers a new build")
	assert.Equal(t, 2, m.Len())
}

func TestGetOrBuild_EmptySet(t *testing.T) {
	t.Parallel()

	m := NewManager(newFakeSource(), &countingBuilder{}, &fixedEmbedder{}, nil)
	_, err := m.GetOrBuild(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptySet)
}

func TestGetOrBuild_ConcurrentSameSetBuildsOnce(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.add("a", []float32{1, 0})
	b := &countingBuilder{release: make(chan struct{})}
	m := NewManager(src, b, &fixedEmbedder{vec: []float32{1, 0}}, nil)

	var wg sync.WaitGroup
	results := make([]rag.Index, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := m.GetOrBuild(context.Background(), []string{"a"})
			assert.NoError(t, err)
			results[i] = idx
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(b.release)
	wg.Wait()

	assert.Equal(t, int32(1), b.builds.Load())
	for _, idx := range results[1:] {
		assert.Same(t, results[0], idx)
	}
}

func TestGetOrBuild_FailuresAreBuildErrors(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.add("a", []float32{1})

	m := NewManager(src, &countingBuilder{err: errors.New("qdrant unavailable")}, &fixedEmbedder{}, nil)
	_, err := m.GetOrBuild(context.Background(), []string{"a"})
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "a", be.Key)
	assert.Equal(t, 0, m.Len(), "failed builds are not cached")

	m = NewManager(src, &countingBuilder{}, &fixedEmbedder{}, nil)
	_, err = m.GetOrBuild(context.Background(), []string{"a", "missing"})
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestManager_LRUCapacity(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	for _, id := range []string{"a", "b", "c"} {
		src.add(id, []float32{1})
	}
	b := &countingBuilder{}
	m := NewManager(src, b, &fixedEmbedder{vec: []float32{1}}, &Config{Capacity: 2})
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := m.GetOrBuild(ctx, []string{id})
		require.NoError(t, err)
	}
	// Touch "a" so "b" becomes the eviction candidate.
	_, err := m.GetOrBuild(ctx, []string{"a"})
	require.NoError(t, err)
	_, err = m.GetOrBuild(ctx, []string{"c"})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, int32(3), b.builds.Load())

	_, err = m.GetOrBuild(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), b.builds.Load(), "a stayed cached")

	_, err = m.GetOrBuild(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, int32(4), b.builds.Load(), "b was evicted and rebuilt")
}

func TestManager_EvictDropsSetsContainingDocument(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.add("a", []float32{1})
	src.add("b", []float32{1})
	m := NewManager(src, &countingBuilder{}, &fixedEmbedder{vec: []float32{1}}, nil)
	ctx := context.Background()

	held, err := m.GetOrBuild(ctx, []string{"a", "b"})
	require.NoError(t, err)
	_, err = m.GetOrBuild(ctx, []string{"b"})
	require.NoError(t, err)

	assert.Equal(t, 1, m.Evict("a"))
	assert.Equal(t, 1, m.Len())

	// An index already handed out stays usable.
	hits, err := m.Search(ctx, held, "anything", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestSearch_DefaultKAndClamp(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	vecs := make([][]float32, 8)
	for i := range vecs {
		vecs[i] = []float32{1, float32(i)}
	}
	src.add("big", vecs...)
	src.add("small", []float32{1, 0}, []float32{0, 1})

	m := NewManager(src, rag.NewMemoryBuilder(), &fixedEmbedder{vec: []float32{1, 0}}, nil)
	ctx := context.Background()

	big, err := m.GetOrBuild(ctx, []string{"big"})
	require.NoError(t, err)
	hits, err := m.Search(ctx, big, "q", 0)
	require.NoError(t, err)
	assert.Len(t, hits, DefaultK)

	small, err := m.GetOrBuild(ctx, []string{"small"})
	require.NoError(t, err)
	hits, err = m.Search(ctx, small, "q", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2, "fewer chunks than k returns all of them")
}

func TestSearch_DeterministicRanking(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.add("d", []float32{0, 1}, []float32{1, 1}, []float32{1, 1}, []float32{1, 0})
	m := NewManager(src, rag.NewMemoryBuilder(), &fixedEmbedder{vec: []float32{1, 0}}, nil)
	ctx := context.Background()

	idx, err := m.GetOrBuild(ctx, []string{"d"})
	require.NoError(t, err)

	first, err := m.Search(ctx, idx, "q", 4)
	require.NoError(t, err)
	second, err := m.Search(ctx, idx, "q", 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ordinals := []int{first[0].Ordinal, first[1].Ordinal, first[2].Ordinal, first[3].Ordinal}
	assert.Equal(t, []int{3, 1, 2, 0}, ordinals, "ties break by ascending ordinal")
}

func TestSearch_SetChangesAreVisible(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.add("first", []float32{1, 0})
	src.add("second", []float32{0.9, 0.1})
	m := NewManager(src, rag.NewMemoryBuilder(), &fixedEmbedder{vec: []float32{1, 0}}, nil)
	ctx := context.Background()

	docsOf := func(hits []rag.ScoredChunk) map[string]bool {
		out := map[string]bool{}
		for _, h := range hits {
			out[h.DocumentID] = true
		}
		return out
	}

	both, err := m.GetOrBuild(ctx, []string{"first", "second"})
	require.NoError(t, err)
	hits, err := m.Search(ctx, both, "q", 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"first": true, "second": true}, docsOf(hits))

	only, err := m.GetOrBuild(ctx, []string{"second"})
	require.NoError(t, err)
	hits, err = m.Search(ctx, only, "q", 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"second": true}, docsOf(hits))
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.add("a", []float32{1})
	m := NewManager(src, rag.NewMemoryBuilder(), &fixedEmbedder{err: errors.New("timeout")}, nil)

	idx, err := m.GetOrBuild(context.Background(), []string{"a"})
	require.NoError(t, err)
	_, err = m.Search(context.Background(), idx, "q", 1)

	var ee *rag.EmbeddingError
	assert.ErrorAs(t, err, &ee)
}

func TestSearch_NilIndex(t *testing.T) {
	t.Parallel()

	m := NewManager(newFakeSource(), rag.NewMemoryBuilder(), &fixedEmbedder{}, nil)
	hits, err := m.Search(context.Background(), nil, "q", 3)
	assert.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrieve_BuildsAndSearches(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.add("a", []float32{1, 0}, []float32{0, 1})
	b := &countingBuilder{}
	m := NewManager(src, b, &fixedEmbedder{vec: []float32{0, 1}}, nil)

	hits, err := m.Retrieve(context.Background(), []string{"a"}, "q", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Ordinal)

	_, err = m.Retrieve(context.Background(), []string{"a"}, "q", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.builds.Load(), "second retrieve reuses the cached index")
}

func TestRetrieve_EmptySet(t *testing.T) {
	t.Parallel()

	m := NewManager(newFakeSource(), rag.NewMemoryBuilder(), &fixedEmbedder{}, nil)
	_, err := m.Retrieve(context.Background(), nil, "q", 1)
	assert.ErrorIs(t, err, ErrEmptySet)
}
