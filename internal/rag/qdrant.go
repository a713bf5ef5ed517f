package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointNamespace seeds the deterministic UUIDv5 point ids so the same chunk
// of the same content hash always maps to the same Qdrant point.
var pointNamespace = uuid.MustParse("6f1c2a7e-9d3b-4c52-8a41-3e0d5b7f9c10")

// Payload keys stored on every Qdrant point.
const (
	payloadDocumentID = "document_id"
	payloadOrdinal    = "ordinal"
	payloadText       = "text"
	payloadOffset     = "offset"
	payloadPage       = "page"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use (default: docintel-chunks).
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantBuilder implements Builder on top of a single Qdrant collection.
// Points are content addressed, so building an index for a document set only
// upserts points that may be missing and then scopes searches to the set with
// a payload filter.
type QdrantBuilder struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this builder.
	cfg *QdrantConfig

	// mu guards ready.
	mu sync.Mutex

	// ready is set once the collection is known to exist.
	ready bool
}

// NewQdrantBuilder creates a QdrantBuilder. The collection is created lazily
// on the first build, sized to the first vector seen.
func NewQdrantBuilder(cfg *QdrantConfig) (*QdrantBuilder, error) {
	if cfg == nil {
		cfg = &QdrantConfig{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "docintel-chunks"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantBuilder{client: client, cfg: cfg}, nil
}

// Client exposes the underlying client for readiness probes.
func (b *QdrantBuilder) Client() *qdrant.Client { return b.client }

// Close closes the underlying Qdrant gRPC connection.
func (b *QdrantBuilder) Close() error {
	return b.client.Close()
}

// PointID returns the deterministic point id for one chunk of a document.
func PointID(documentID string, ordinal int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s#%d", documentID, ordinal))).String()
}

// Build upserts every entry of artifacts and returns an index scoped to
// their document ids.
func (b *QdrantBuilder) Build(ctx context.Context, artifacts []Artifact) (Index, error) {
	idx := &qdrantIndex{client: b.client, collection: b.cfg.Collection}
	seen := make(map[string]bool, len(artifacts))

	var points []*qdrant.PointStruct
	for _, a := range artifacts {
		if seen[a.DocumentID] {
			continue
		}
		seen[a.DocumentID] = true
		idx.docs = append(idx.docs, a.DocumentID)
		idx.count += len(a.Entries)

		for _, e := range a.Entries {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(PointID(a.DocumentID, e.Chunk.Ordinal)),
				Vectors: qdrant.NewVectors(e.Vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadDocumentID: a.DocumentID,
					payloadOrdinal:    int64(e.Chunk.Ordinal),
					payloadText:       e.Chunk.Text,
					payloadOffset:     int64(e.Chunk.Offset),
					payloadPage:       int64(e.Chunk.Page),
				}),
			})
		}
	}
	sort.Strings(idx.docs)

	if len(points) == 0 {
		return idx, nil
	}

	if err := b.ensureCollection(ctx, uint64(len(artifactsFirstVector(artifacts)))); err != nil {
		return nil, err
	}

	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return idx, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (b *QdrantBuilder) ensureCollection(ctx context.Context, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return nil
	}

	exists, err := b.client.CollectionExists(ctx, b.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: b.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     size,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection %q: %w", b.cfg.Collection, err)
		}
	}

	b.ready = true
	return nil
}

// artifactsFirstVector returns the first non-empty vector among artifacts.
func artifactsFirstVector(artifacts []Artifact) []float32 {
	for _, a := range artifacts {
		for _, e := range a.Entries {
			if len(e.Vector) > 0 {
				return e.Vector
			}
		}
	}
	return nil
}

// qdrantIndex is the Index returned by QdrantBuilder.
type qdrantIndex struct {
	// client is shared with the builder.
	client *qdrant.Client
	// collection is the collection holding the points.
	collection string
	// docs is the sorted list of covered document ids.
	docs []string
	// count is the number of points covered.
	count int
}

// Search runs a filtered cosine query and re-sorts the hits so that equal
// scores rank deterministically.
func (q *qdrantIndex) Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	if q.count == 0 || k <= 0 {
		return nil, nil
	}

	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords(payloadDocumentID, q.docs...),
			},
		},
		Limit:       &limit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		hit := ScoredChunk{Score: r.Score}
		if p := r.Payload; p != nil {
			hit.DocumentID = p[payloadDocumentID].GetStringValue()
			hit.Ordinal = int(p[payloadOrdinal].GetIntegerValue())
			hit.Text = p[payloadText].GetStringValue()
			hit.Offset = int(p[payloadOffset].GetIntegerValue())
			hit.Page = int(p[payloadPage].GetIntegerValue())
		}
		hits = append(hits, hit)
	}
	SortScored(hits)

	return hits, nil
}

// Len returns the number of chunks covered by the index.
func (q *qdrantIndex) Len() int { return q.count }

// Documents returns the covered document ids.
func (q *qdrantIndex) Documents() []string {
	out := make([]string, len(q.docs))
	copy(out, q.docs)
	return out
}
