package embedclient

import (
	"fmt"
	"sync"
)

// Cache stores embeddings keyed by (model, content_hash, chunk_ordinal),
// per spec §4.10 ("Caching is optional and keyed by (model, content_hash,
// chunk_ordinal)"). This is deliberately a plain, unbounded in-memory cache
// rather than maypok86/otter: otter's TTL/eviction machinery is reserved
// for the query-result cache (C20), which has real eviction pressure from
// live query traffic; the embedding cache only needs to skip re-embedding
// unchanged chunks within one indexing run; no SPEC_FULL.md component
// reads it across process restarts.
type Cache interface {
	Get(model, contentHash string, ordinal int) ([]float32, bool)
	Put(model, contentHash string, ordinal int, vector []float32)
}

type memCache struct {
	mu   sync.RWMutex
	data map[string][]float32
}

// NewMemCache builds an unbounded-for-one-run in-memory Cache.
func NewMemCache() Cache {
	return &memCache{data: make(map[string][]float32)}
}

func cacheKey(model, contentHash string, ordinal int) string {
	return fmt.Sprintf("%s:%s:%d", model, contentHash, ordinal)
}

func (c *memCache) Get(model, contentHash string, ordinal int) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[cacheKey(model, contentHash, ordinal)]
	return v, ok
}

func (c *memCache) Put(model, contentHash string, ordinal int, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[cacheKey(model, contentHash, ordinal)] = vector
}
