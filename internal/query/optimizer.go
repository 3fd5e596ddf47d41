// Package query implements the query optimizer of spec §4.20: the
// final pass between fusion and rendering that thresholds candidates,
// delegates to the reranker or truncates, and caches the result. No
// teacher or pack member combines these three responsibilities, but
// each has a direct grounding: the teacher uses `maypok86/otter` for
// its own weight-bounded file cache (internal/graph/searcher.go), and
// standardbeagle-lci fingerprints cache keys with cespare/xxhash/v2.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/maypok86/otter"

	"github.com/mvp-joe/codegraphd/internal/fusion"
	"github.com/mvp-joe/codegraphd/internal/rerank"
	"github.com/mvp-joe/codegraphd/internal/store"
)

// Config holds the optimizer's tunables, sourced from the query and
// budget configuration sections.
type Config struct {
	MinScoreThreshold float64
	RerankEnabled     bool
	DefaultK          int
	Lambda            float64
	TokenBudget       int
	CacheSize         int
	CacheTTL          time.Duration
}

// VectorSource recovers an embedding vector for a chunk, so the
// reranker can compute cosine similarity without re-embedding.
type VectorSource interface {
	Vector(chunkID string) ([]float32, bool)
}

// Optimizer applies spec §4.20's threshold/rerank-or-truncate/cache
// pipeline to a fused ranking.
type Optimizer struct {
	cfg       Config
	vectors   VectorSource
	estimator rerank.Estimator
	cache     otter.Cache[uint64, []fusion.Fused]
}

// New builds an Optimizer. The cache is sized and TTL'd from cfg and
// bypassed entirely whenever reranking is disabled, per spec §4.20.
func New(cfg Config, vectors VectorSource, estimator rerank.Estimator) (*Optimizer, error) {
	capacity := cfg.CacheSize
	if capacity <= 0 {
		capacity = 1
	}
	cache, err := otter.MustBuilder[uint64, []fusion.Fused](capacity).
		WithTTL(cfg.CacheTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("query optimizer: failed to build cache: %w", err)
	}
	return &Optimizer{cfg: cfg, vectors: vectors, estimator: estimator, cache: cache}, nil
}

// Optimize drops candidates below MinScoreThreshold, then either
// reranks via MMR (caching the outcome by query fingerprint and budget
// signature) or truncates to DefaultK. The cache is bypassed when
// reranking is disabled, since a plain truncation is already cheap and
// config-independent of the token budget that shapes the cache key.
func (o *Optimizer) Optimize(ctx context.Context, queryText, budgetSignature string, fused []fusion.Fused) ([]fusion.Fused, error) {
	key := fingerprint(queryText, budgetSignature)

	if o.cfg.RerankEnabled {
		if cached, ok := o.cache.Get(key); ok {
			return cached, nil
		}
	}

	filtered := aboveThreshold(fused, o.cfg.MinScoreThreshold)

	var result []fusion.Fused
	if o.cfg.RerankEnabled {
		selected := rerank.Select(o.toCandidates(filtered), o.cfg.Lambda, o.cfg.TokenBudget)
		result = o.fromCandidates(selected, filtered)
	} else {
		k := o.cfg.DefaultK
		if k > 0 && len(filtered) > k {
			filtered = filtered[:k]
		}
		result = filtered
	}

	if o.cfg.RerankEnabled {
		o.cache.Set(key, result)
	}
	return result, nil
}

// Close releases the optimizer's cache resources.
func (o *Optimizer) Close() {
	o.cache.Close()
}

func aboveThreshold(fused []fusion.Fused, threshold float64) []fusion.Fused {
	out := make([]fusion.Fused, 0, len(fused))
	for _, f := range fused {
		if f.Score >= threshold {
			out = append(out, f)
		}
	}
	return out
}

func (o *Optimizer) toCandidates(fused []fusion.Fused) []rerank.Candidate {
	candidates := make([]rerank.Candidate, len(fused))
	for i, f := range fused {
		vec, _ := o.vectors.Vector(f.ChunkID)
		estimate := 0
		if o.estimator != nil {
			estimate = o.estimator.Estimate(f.Snippet.Text)
		}
		candidates[i] = rerank.Candidate{
			ChunkID:       f.ChunkID,
			Vector:        vec,
			Relevance:     f.Score,
			TokenEstimate: estimate,
		}
	}
	return candidates
}

func (o *Optimizer) fromCandidates(selected []rerank.Candidate, filtered []fusion.Fused) []fusion.Fused {
	byID := make(map[string]fusion.Fused, len(filtered))
	for _, f := range filtered {
		byID[f.ChunkID] = f
	}
	out := make([]fusion.Fused, 0, len(selected))
	for _, c := range selected {
		if f, ok := byID[c.ChunkID]; ok {
			out = append(out, f)
		}
	}
	return out
}

func fingerprint(queryText, budgetSignature string) uint64 {
	h := xxhash.New()
	h.WriteString(queryText)
	h.WriteString("\x00")
	h.WriteString(budgetSignature)
	return h.Sum64()
}
