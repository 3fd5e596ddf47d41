// Package fusion implements the hybrid provider and Reciprocal Rank
// Fusion merge of spec §4.16: fan out to a configured subset of
// providers concurrently, merge results by chunk_id with RRF, and
// return the fused ranking (an RRF score, not a similarity score). The
// teacher's searcher_coordinator.go runs its vector and exact searchers
// side by side but never fuses a combined ranking from them, so RRF
// itself is built from spec §4.16 directly; the concurrent fan-out uses
// golang.org/x/sync/errgroup for its cancel-on-first-error semantics,
// a cleaner fit here than a bare sync.WaitGroup since one failing
// provider should abort the whole query rather than silently drop it.
package fusion

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/codegraphd/internal/provider"
)

// kRRF is spec §4.16's fixed Reciprocal Rank Fusion constant.
const kRRF = 60

// Weighted pairs a provider with its fusion weight w_p.
type Weighted struct {
	Provider provider.Provider
	Weight   float64
}

// Fused is one chunk's accumulated result after RRF merge.
type Fused struct {
	ChunkID string
	Score   float64
	Snippet provider.Snippet
}

// Hybrid fans a query out to a weighted subset of providers
// concurrently and fuses their rankings.
type Hybrid struct {
	Providers []Weighted
}

// New creates a Hybrid provider set.
func New(providers []Weighted) *Hybrid {
	return &Hybrid{Providers: providers}
}

// GetContext runs every configured provider concurrently (an error from
// one provider aborts the whole query, via errgroup), then merges their
// rankings with RRF: a result at rank r (0-indexed) in provider p
// contributes w_p / (kRRF + r + 1); contributions are summed per
// chunk_id and the fused list sorted descending by that sum.
func (h *Hybrid) GetContext(ctx context.Context, q provider.Query) ([]Fused, error) {
	results := make([][]provider.Snippet, len(h.Providers))

	g, ctx := errgroup.WithContext(ctx)
	for i, wp := range h.Providers {
		i, wp := i, wp
		g.Go(func() error {
			snippets, err := wp.Provider.GetContext(ctx, q)
			if err != nil {
				return err
			}
			results[i] = snippets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	accum := make(map[string]*Fused)
	var order []string
	for i, wp := range h.Providers {
		for rank, snippet := range results[i] {
			contribution := wp.Weight / float64(kRRF+rank+1)
			if existing, ok := accum[snippet.ChunkID]; ok {
				existing.Score += contribution
				continue
			}
			accum[snippet.ChunkID] = &Fused{ChunkID: snippet.ChunkID, Score: contribution, Snippet: snippet}
			order = append(order, snippet.ChunkID)
		}
	}

	fused := make([]Fused, 0, len(order))
	for _, id := range order {
		fused = append(fused, *accum[id])
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused, nil
}
