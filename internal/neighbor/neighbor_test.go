package neighbor

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/codegraphd/internal/provider"
	"github.com/mvp-joe/codegraphd/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "neighbor.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedFileWithChunks creates a file with five sequential chunks
// (ordinals 0-4) and returns their chunk IDs in ordinal order.
func seedFileWithChunks(t *testing.T, s *store.Store, relPath string) []string {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	fs := &store.FileState{RelativePath: relPath, ContentHash: "h", SizeBytes: 1, MtimeNS: 1, IndexedAt: now}
	var ids []string
	err := s.WithWriteTx(func(tx *sql.Tx) error {
		if err := store.UpsertFileState(tx, fs); err != nil {
			return err
		}
		chunks := make([]*store.Chunk, 5)
		for i := range chunks {
			chunks[i] = &store.Chunk{Ordinal: i, Kind: "code", Content: "chunk", CreatedAt: now}
		}
		if err := store.ReplaceChunks(tx, fs.ID, chunks); err != nil {
			return err
		}
		for _, c := range chunks {
			ids = append(ids, c.ID)
		}
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestExpand_IncludesChunksWithinWindow(t *testing.T) {
	s := openTestStore(t)
	ids := seedFileWithChunks(t, s, "a.go")

	e := &Expander{Store: s, Width: 1}
	seed := provider.Snippet{ChunkID: ids[2], Score: 0.8, FilePath: "a.go"}
	out, err := e.Expand(context.Background(), []provider.Snippet{seed})
	require.NoError(t, err)

	byID := make(map[string]provider.Snippet)
	for _, s := range out {
		byID[s.ChunkID] = s
	}
	assert.Contains(t, byID, ids[1])
	assert.Contains(t, byID, ids[2])
	assert.Contains(t, byID, ids[3])
	assert.NotContains(t, byID, ids[0])
	assert.NotContains(t, byID, ids[4])
}

func TestExpand_NeighborsInheritHalfSeedScore(t *testing.T) {
	s := openTestStore(t)
	ids := seedFileWithChunks(t, s, "a.go")

	e := &Expander{Store: s, Width: 1}
	seed := provider.Snippet{ChunkID: ids[2], Score: 0.8, FilePath: "a.go"}
	out, err := e.Expand(context.Background(), []provider.Snippet{seed})
	require.NoError(t, err)

	for _, s := range out {
		if s.ChunkID == ids[1] || s.ChunkID == ids[3] {
			assert.InDelta(t, 0.4, s.Score, 1e-9)
		}
	}
}

func TestExpand_ExcludesOutOfRangeOrdinals(t *testing.T) {
	s := openTestStore(t)
	ids := seedFileWithChunks(t, s, "a.go")

	e := &Expander{Store: s, Width: 1}
	seed := provider.Snippet{ChunkID: ids[0], Score: 1.0, FilePath: "a.go"}
	out, err := e.Expand(context.Background(), []provider.Snippet{seed})
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestExpand_DeduplicatesAcrossSeedsKeepingMaxScore(t *testing.T) {
	s := openTestStore(t)
	ids := seedFileWithChunks(t, s, "a.go")

	e := &Expander{Store: s, Width: 1}
	seeds := []provider.Snippet{
		{ChunkID: ids[1], Score: 0.4, FilePath: "a.go"},
		{ChunkID: ids[3], Score: 1.0, FilePath: "a.go"},
	}
	out, err := e.Expand(context.Background(), seeds)
	require.NoError(t, err)

	byID := make(map[string]provider.Snippet)
	for _, s := range out {
		byID[s.ChunkID] = s
	}
	// ids[2] is a neighbor of both seeds: 0.2 from seed ids[1], 0.5 from
	// seed ids[3]. The max should win.
	assert.InDelta(t, 0.5, byID[ids[2]].Score, 1e-9)
}
