package provider

import (
	"context"
	"fmt"

	"github.com/mvp-joe/codegraphd/internal/embedclient"
	"github.com/mvp-joe/codegraphd/internal/store"
)

// SemanticProvider embeds the query and cosine-searches against chunk
// embeddings via the in-memory VectorCache, the vector-search half of
// the teacher's chromemSearcher.
type SemanticProvider struct {
	Embeddings embedclient.Provider
	Cache      *store.VectorCache
	DefaultK   int
}

func (p *SemanticProvider) Name() string { return "semantic" }

// GetContext embeds q.Text, queries the vector cache for q.K (or
// DefaultK) nearest chunks, and applies q.Filters before normalizing
// scores to [0,1]. chromem-go similarity is already cosine similarity
// in [-1,1]; it is rescaled to [0,1] rather than re-derived, since a
// constant offset preserves relative order.
func (p *SemanticProvider) GetContext(ctx context.Context, q Query) ([]Snippet, error) {
	k := q.K
	if k <= 0 {
		k = p.DefaultK
	}

	vectors, err := p.Embeddings.Embed(ctx, []string{q.Text}, embedclient.ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("semantic provider: failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("semantic provider: embedder returned no vector")
	}

	results, err := p.Cache.Query(ctx, vectors[0], k*2)
	if err != nil {
		return nil, fmt.Errorf("semantic provider: vector query failed: %w", err)
	}

	snippets := make([]Snippet, 0, len(results))
	for _, r := range results {
		if !matchesFilters(q.Filters, "", r.FilePath, r.Kind) {
			continue
		}
		snippets = append(snippets, Snippet{
			ChunkID:   r.ChunkID,
			Score:     r.Similarity,
			FilePath:  r.FilePath,
			Kind:      r.Kind,
			Text:      r.Text,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
		})
		if len(snippets) >= k {
			break
		}
	}

	normalizeScores(snippets, true)
	return snippets, nil
}
