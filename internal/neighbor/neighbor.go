// Package neighbor implements the neighbor expander of spec §4.19: for
// each seed snippet, pull in the chunks immediately surrounding it in
// the same file so a renderer has local context around a match.
// Grounded on spec §4.19 directly; no teacher or pack member expands a
// retrieval result by file-local ordinal window.
package neighbor

import (
	"context"
	"fmt"

	"github.com/mvp-joe/codegraphd/internal/provider"
	"github.com/mvp-joe/codegraphd/internal/store"
)

const inheritedScoreScale = 0.5

// Expander adds ordinal-window neighbors to a set of seed snippets.
type Expander struct {
	Store *store.Store
	Width int
}

// Expand returns seeds plus their in-file neighbors within [ordinal-w,
// ordinal+w], out-of-range ordinals excluded. Neighbors inherit the
// seed's score scaled by inheritedScoreScale. A chunk reachable from
// more than one seed (as a neighbor, or as a seed itself) keeps only
// its highest assigned score.
func (e *Expander) Expand(ctx context.Context, seeds []provider.Snippet) ([]provider.Snippet, error) {
	best := make(map[string]provider.Snippet)
	var order []string

	record := func(s provider.Snippet) {
		existing, ok := best[s.ChunkID]
		if !ok || s.Score > existing.Score {
			best[s.ChunkID] = s
		}
		if !ok {
			order = append(order, s.ChunkID)
		}
	}

	fileSiblings := make(map[string][]*store.Chunk)
	for _, seed := range seeds {
		record(seed)

		chunk, err := store.GetChunkByID(e.Store.DB(), seed.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("neighbor expander: failed to load seed chunk %s: %w", seed.ChunkID, err)
		}
		if chunk == nil {
			continue
		}

		siblings, ok := fileSiblings[chunk.FileID]
		if !ok {
			siblings, err = store.ListChunksByFile(e.Store.DB(), chunk.FileID)
			if err != nil {
				return nil, fmt.Errorf("neighbor expander: failed to list chunks for file %s: %w", chunk.FileID, err)
			}
			fileSiblings[chunk.FileID] = siblings
		}

		for _, sib := range siblings {
			if sib.Ordinal < chunk.Ordinal-e.Width || sib.Ordinal > chunk.Ordinal+e.Width {
				continue
			}
			if sib.ID == chunk.ID {
				continue
			}
			record(provider.Snippet{
				ChunkID:   sib.ID,
				Score:     seed.Score * inheritedScoreScale,
				FilePath:  seed.FilePath,
				Label:     seed.Label,
				Kind:      sib.Kind,
				Text:      sib.Content,
				Language:  seed.Language,
				Ordinal:   sib.Ordinal,
				StartLine: sib.StartLine,
				EndLine:   sib.EndLine,
			})
		}
	}

	out := make([]provider.Snippet, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out, nil
}
