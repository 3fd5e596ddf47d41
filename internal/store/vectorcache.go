package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// VectorCache is an in-memory ANN index synced from the store, queried by
// the semantic provider (C15) so hot-path queries never hit SQLite's
// vec0 scan. Grounded on the teacher's internal/mcp/chromem_searcher.go
// (chromem-go collection + RWMutex-guarded atomic reload), trimmed to
// just the sync/query surface this domain needs.
type VectorCache struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	vectors    map[string][]float32
}

// NewVectorCache creates an empty cache; call Reload to populate it.
func NewVectorCache() *VectorCache {
	return &VectorCache{db: chromem.NewDB()}
}

// CachedChunk is the minimal shape Reload needs per chunk.
type CachedChunk struct {
	ChunkID   string
	FilePath  string
	Kind      string
	Text      string
	Vector    []float32
	StartLine int
	EndLine   int
}

// Reload rebuilds the collection from scratch and atomically swaps it in,
// so concurrent readers never see a partially rebuilt collection.
func (c *VectorCache) Reload(ctx context.Context, chunks []CachedChunk) error {
	collection, err := c.db.CreateCollection("chunks", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create vector cache collection: %w", err)
	}
	vectors := make(map[string][]float32, len(chunks))
	for _, ch := range chunks {
		doc := chromem.Document{
			ID:        ch.ChunkID,
			Content:   ch.Text,
			Embedding: ch.Vector,
			Metadata: map[string]string{
				"file_path":  ch.FilePath,
				"kind":       ch.Kind,
				"start_line": strconv.Itoa(ch.StartLine),
				"end_line":   strconv.Itoa(ch.EndLine),
			},
		}
		if err := collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to add chunk %s to vector cache: %w", ch.ChunkID, err)
		}
		vectors[ch.ChunkID] = ch.Vector
	}

	c.mu.Lock()
	c.collection = collection
	c.vectors = vectors
	c.mu.Unlock()
	return nil
}

// Vector returns the embedding for a cached chunk, if present. Used by
// the reranker to recover the vector behind a fused snippet without a
// second round trip to the embedding provider.
func (c *VectorCache) Vector(chunkID string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[chunkID]
	return v, ok
}

// QueryResult is one nearest-neighbor hit from the cache.
type QueryResult struct {
	ChunkID    string
	FilePath   string
	Kind       string
	Text       string
	Similarity float64
	StartLine  int
	EndLine    int
}

// Query returns the n nearest chunks to queryVector by cosine similarity.
func (c *VectorCache) Query(ctx context.Context, queryVector []float32, n int) ([]QueryResult, error) {
	c.mu.RLock()
	collection := c.collection
	c.mu.RUnlock()

	if collection == nil {
		return nil, nil
	}
	if n > collection.Count() {
		n = collection.Count()
	}
	if n == 0 {
		return nil, nil
	}

	docs, err := collection.QueryEmbedding(ctx, queryVector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector cache query failed: %w", err)
	}

	results := make([]QueryResult, 0, len(docs))
	for _, doc := range docs {
		startLine, _ := strconv.Atoi(doc.Metadata["start_line"])
		endLine, _ := strconv.Atoi(doc.Metadata["end_line"])
		results = append(results, QueryResult{
			ChunkID:    doc.ID,
			FilePath:   doc.Metadata["file_path"],
			Kind:       doc.Metadata["kind"],
			Text:       doc.Content,
			Similarity: float64(doc.Similarity),
			StartLine:  startLine,
			EndLine:    endLine,
		})
	}
	return results, nil
}
