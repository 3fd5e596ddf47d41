package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s1, err := Open(path, 4)
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(path, 4)
	require.NoError(t, err)
	defer s2.Close()

	version, err := SchemaVersion(s2.DB())
	require.NoError(t, err)
	require.Equal(t, schemaVersion, version)
}

func TestFileState_UpsertAndTouch(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)

	fs := &FileState{RelativePath: "a/b.go", ContentHash: "h1", SizeBytes: 10, MtimeNS: 1, IndexedAt: now}
	err := s.WithWriteTx(func(tx *sql.Tx) error {
		return UpsertFileState(tx, fs)
	})
	require.NoError(t, err)
	require.NotEmpty(t, fs.ID)

	loaded, err := GetFileStateByPath(s.DB(), "a/b.go")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, fs.ID, loaded.ID)
	assert.Equal(t, "h1", loaded.ContentHash)

	err = s.WithWriteTx(func(tx *sql.Tx) error {
		return TouchIndexedAt(tx, fs.ID, "2026-01-01T00:00:00Z")
	})
	require.NoError(t, err)

	reloaded, err := GetFileStateByPath(s.DB(), "a/b.go")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01T00:00:00Z", reloaded.IndexedAt)
	assert.Equal(t, "h1", reloaded.ContentHash)

	byID, err := GetFileStateByID(s.DB(), fs.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "a/b.go", byID.RelativePath)
}

func TestChunksAndEmbeddings_ReplaceAtomically(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)

	fs := &FileState{RelativePath: "x.go", ContentHash: "h", IndexedAt: now}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return UpsertFileState(tx, fs) }))

	chunks := []*Chunk{
		{Ordinal: 0, Kind: "CODE_FUNCTION", StartLine: 1, EndLine: 5, Content: "func A(){}", CreatedAt: now},
		{Ordinal: 1, Kind: "CODE_FUNCTION", StartLine: 6, EndLine: 10, Content: "func B(){}", CreatedAt: now},
	}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return ReplaceChunks(tx, fs.ID, chunks) }))

	loaded, err := ListChunksByFile(s.DB(), fs.ID)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 0, loaded[0].Ordinal)
	assert.Equal(t, 1, loaded[1].Ordinal)

	embeddings := []*Embedding{
		{ChunkID: chunks[0].ID, Model: "m1", Dimensions: 4, Vector: []float32{1, 0, 0, 0}, CreatedAt: now},
		{ChunkID: chunks[1].ID, Model: "m1", Dimensions: 4, Vector: []float32{0, 1, 0, 0}, CreatedAt: now},
	}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return ReplaceEmbeddings(tx, fs.ID, embeddings) }))

	ids, distances, err := KNNSearch(s.DB(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, chunks[0].ID, ids[0])
	assert.InDelta(t, 0, distances[0], 1e-4)

	// Replacing with an empty chunk set must clear both rows and vectors.
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return ReplaceChunks(tx, fs.ID, nil) }))
	remaining, err := ListChunksByFile(s.DB(), fs.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestSoftDeleteFileState_PurgesChunks(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)

	fs := &FileState{RelativePath: "gone.go", ContentHash: "h", IndexedAt: now}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return UpsertFileState(tx, fs) }))
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error {
		return ReplaceChunks(tx, fs.ID, []*Chunk{{Ordinal: 0, Kind: "CODE_BLOCK", StartLine: 1, EndLine: 2, Content: "x", CreatedAt: now}})
	}))

	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return SoftDeleteFileState(tx, fs.ID) }))

	reloaded, err := GetFileStateByPath(s.DB(), "gone.go")
	require.NoError(t, err)
	assert.True(t, reloaded.IsDeleted)

	chunks, err := ListChunksByFile(s.DB(), fs.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestListSymbolsByFile_ReturnsOnlyThatFilesSymbols(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)

	fs1 := &FileState{RelativePath: "a.go", ContentHash: "h1", IndexedAt: now}
	fs2 := &FileState{RelativePath: "b.go", ContentHash: "h2", IndexedAt: now}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return UpsertFileState(tx, fs1) }))
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return UpsertFileState(tx, fs2) }))

	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error {
		return ReplaceSymbols(tx, fs1.ID, []*Symbol{{Type: "function", Name: "Handle", StartLine: 1, EndLine: 3}})
	}))
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error {
		return ReplaceSymbols(tx, fs2.ID, []*Symbol{{Type: "function", Name: "Validate", StartLine: 1, EndLine: 3}})
	}))

	symbols, err := ListSymbolsByFile(s.DB(), fs1.ID)
	require.NoError(t, err)
	require.Len(t, symbols, 1)
	assert.Equal(t, "Handle", symbols[0].Name)
}

func TestBootstrapProgress_PendingExcludesCompleted(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error {
		if err := UpsertBootstrapProgress(tx, &BootstrapProgress{Path: "a", Status: BootstrapPending}); err != nil {
			return err
		}
		return UpsertBootstrapProgress(tx, &BootstrapProgress{Path: "b", Status: BootstrapCompleted})
	}))

	pending, err := PendingBootstrapPaths(s.DB())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, pending)
}

func TestVectorCache_QueryReturnsNearest(t *testing.T) {
	cache := NewVectorCache()
	require.NoError(t, cache.Reload(nil, []CachedChunk{
		{ChunkID: "c1", FilePath: "f.go", Kind: "CODE_BLOCK", Text: "a", Vector: []float32{1, 0}},
		{ChunkID: "c2", FilePath: "f.go", Kind: "CODE_BLOCK", Text: "b", Vector: []float32{0, 1}},
	}))

	results, err := cache.Query(nil, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestVectorCache_VectorReturnsStoredEmbedding(t *testing.T) {
	cache := NewVectorCache()
	require.NoError(t, cache.Reload(nil, []CachedChunk{
		{ChunkID: "c1", FilePath: "f.go", Kind: "CODE_BLOCK", Text: "a", Vector: []float32{1, 0}},
	}))

	v, ok := cache.Vector("c1")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0}, v)

	_, ok = cache.Vector("missing")
	assert.False(t, ok)
}

func TestListChunksForReload_JoinsFileAndEmbeddingData(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)

	fs := &FileState{RelativePath: "x.go", ContentHash: "h", Language: "go", IndexedAt: now}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return UpsertFileState(tx, fs) }))

	chunks := []*Chunk{
		{Ordinal: 0, Kind: "CODE_FUNCTION", StartLine: 1, EndLine: 5, Content: "func A(){}", CreatedAt: now},
	}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return ReplaceChunks(tx, fs.ID, chunks) }))

	embeddings := []*Embedding{
		{ChunkID: chunks[0].ID, Model: "m1", Dimensions: 4, Vector: []float32{1, 0.5, 0, -0.5}, CreatedAt: now},
	}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return ReplaceEmbeddings(tx, fs.ID, embeddings) }))

	rows, err := ListChunksForReload(s.DB())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "x.go", rows[0].FilePath)
	assert.Equal(t, "go", rows[0].Language)
	assert.Equal(t, "func A(){}", rows[0].Content)
	assert.Equal(t, []float32{1, 0.5, 0, -0.5}, rows[0].Vector)
}

func TestListChunksForReload_ExcludesDeletedFiles(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Format(time.RFC3339)

	fs := &FileState{RelativePath: "gone.go", ContentHash: "h", IndexedAt: now}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return UpsertFileState(tx, fs) }))
	chunks := []*Chunk{{Ordinal: 0, Kind: "CODE_FUNCTION", StartLine: 1, EndLine: 2, Content: "x", CreatedAt: now}}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return ReplaceChunks(tx, fs.ID, chunks) }))
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error { return SoftDeleteFileState(tx, fs.ID) }))

	rows, err := ListChunksForReload(s.DB())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
