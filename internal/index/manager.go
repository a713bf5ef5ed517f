// Package index owns the retrieval indexes built over document sets. An
// index is keyed by the exact, order-independent set of document ids it
// covers, built once per set and then shared read-only by every query that
// targets the same set.
package index

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/54b3r/docintel-go/internal/logging"
	"github.com/54b3r/docintel-go/internal/rag"
)

// Defaults for the index manager.
const (
	// DefaultK is the number of chunks returned by Search when k is not positive.
	DefaultK = 5

	// DefaultCapacity is the number of document-set indexes kept cached.
	DefaultCapacity = 16
)

// ErrEmptySet is returned by GetOrBuild when no document ids are given.
var ErrEmptySet = errors.New("index: document set is empty")

// Source supplies the artifacts of ready documents.
// *docstore.Store satisfies it.
type Source interface {
	Artifact(id string) (rag.Artifact, error)
}

// BuildError reports that an index for a document set could not be built.
type BuildError struct {
	// Key identifies the document set.
	Key string

	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *BuildError) Error() string {
	return fmt.Sprintf("index build failed for %s: %v", e.Key, e.Err)
}

// Unwrap returns the underlying failure.
func (e *BuildError) Unwrap() error { return e.Err }

// Config holds the index manager settings.
type Config struct {
	// Capacity is the maximum number of cached indexes (default 16).
	Capacity int

	// DefaultK is used by Search when k is not positive (default 5).
	DefaultK int
}

// entry is one cached index.
type entry struct {
	key string
	ids []string
	idx rag.Index
}

// Manager is the Index Manager. It is safe for concurrent use.
type Manager struct {
	// src supplies document artifacts.
	src Source

	// builder constructs new indexes.
	builder rag.Builder

	// embedder embeds query text.
	embedder rag.Embedder

	// cfg holds the resolved configuration.
	cfg Config

	// mu guards cache and lru.
	mu sync.Mutex

	// cache maps set keys to lru elements holding *entry.
	cache map[string]*list.Element

	// lru orders entries from most to least recently used.
	lru *list.List

	// builds collapses concurrent builds of the same set.
	builds singleflight.Group
}

// NewManager returns a Manager. A nil cfg uses the defaults.
func NewManager(src Source, builder rag.Builder, embedder rag.Embedder, cfg *Config) *Manager {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.DefaultK <= 0 {
		c.DefaultK = DefaultK
	}
	return &Manager{
		src:      src,
		builder:  builder,
		embedder: embedder,
		cfg:      c,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Key returns the cache key of a document set: the sorted, de-duplicated ids
// joined by "+".
func Key(ids []string) string {
	return strings.Join(normalize(ids), "+")
}

// normalize sorts and de-duplicates ids, dropping empty strings.
func normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GetOrBuild returns the index covering exactly ids, building it if needed.
// Concurrent requests for the same set share one build; requests for other
// sets are not blocked by it. Builds are detached from ctx so an abandoning
// caller does not fail a build others are waiting on.
func (m *Manager) GetOrBuild(ctx context.Context, ids []string) (rag.Index, error) {
	set := normalize(ids)
	if len(set) == 0 {
		return nil, ErrEmptySet
	}
	key := strings.Join(set, "+")

	if idx, ok := m.lookup(key); ok {
		return idx, nil
	}

	v, err, _ := m.builds.Do(key, func() (any, error) {
		if idx, ok := m.lookup(key); ok {
			return idx, nil
		}
		idx, err := m.build(context.WithoutCancel(ctx), key, set)
		if err != nil {
			return nil, err
		}
		m.store(key, set, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(rag.Index), nil
}

// build assembles the artifacts of set and hands them to the builder.
func (m *Manager) build(ctx context.Context, key string, set []string) (rag.Index, error) {
	artifacts := make([]rag.Artifact, 0, len(set))
	for _, id := range set {
		a, err := m.src.Artifact(id)
		if err != nil {
			return nil, &BuildError{Key: key, Err: err}
		}
		artifacts = append(artifacts, a)
	}

	idx, err := m.builder.Build(ctx, artifacts)
	if err != nil {
		return nil, &BuildError{Key: key, Err: err}
	}

	logging.FromContext(ctx).Info("index: built",
		slog.Int("documents", len(set)),
		slog.Int("chunks", idx.Len()),
	)
	return idx, nil
}

// lookup returns a cached index and marks it recently used.
func (m *Manager) lookup(key string) (rag.Index, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.cache[key]
	if !ok {
		return nil, false
	}
	m.lru.MoveToFront(el)
	return el.Value.(*entry).idx, true
}

// store caches idx under key, evicting the least recently used entry when
// over capacity.
func (m *Manager) store(key string, ids []string, idx rag.Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.cache[key]; ok {
		el.Value.(*entry).idx = idx
		m.lru.MoveToFront(el)
		return
	}
	m.cache[key] = m.lru.PushFront(&entry{key: key, ids: ids, idx: idx})
	for m.lru.Len() > m.cfg.Capacity {
		oldest := m.lru.Back()
		m.lru.Remove(oldest)
		delete(m.cache, oldest.Value.(*entry).key)
	}
}

// Evict drops every cached index whose set includes documentID and returns
// how many were dropped. Queries already holding one of those indexes keep
// using it; it is immutable.
func (m *Manager) Evict(documentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, el := range m.cache {
		for _, id := range el.Value.(*entry).ids {
			if id == documentID {
				m.lru.Remove(el)
				delete(m.cache, key)
				n++
				break
			}
		}
	}
	return n
}

// Len returns the number of cached indexes.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Search embeds query and returns the top k chunks of idx. A non-positive k
// uses the configured default and k is clamped to the index size, so an
// index with fewer chunks returns all of them.
func (m *Manager) Search(ctx context.Context, idx rag.Index, query string, k int) ([]rag.ScoredChunk, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = m.cfg.DefaultK
	}
	if n := idx.Len(); k > n {
		k = n
	}

	vecs, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		var ee *rag.EmbeddingError
		if errors.As(err, &ee) {
			return nil, err
		}
		return nil, &rag.EmbeddingError{Err: err}
	}
	if len(vecs) != 1 {
		return nil, &rag.EmbeddingError{Err: fmt.Errorf("expected 1 query embedding, got %d", len(vecs))}
	}

	hits, err := idx.Search(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return hits, nil
}

// Retrieve resolves the index for ids and searches it for query.
func (m *Manager) Retrieve(ctx context.Context, ids []string, query string, k int) ([]rag.ScoredChunk, error) {
	idx, err := m.GetOrBuild(ctx, ids)
	if err != nil {
		return nil, err
	}
	return m.Search(ctx, idx, query, k)
}
