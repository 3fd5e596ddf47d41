package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/codegraphd/internal/chunk"
	"github.com/mvp-joe/codegraphd/internal/embedclient"
	"github.com/mvp-joe/codegraphd/internal/store"
	"github.com/mvp-joe/codegraphd/internal/symbol"
)

type fakeEmbedProvider struct{ dim int }

func (f *fakeEmbedProvider) Embed(ctx context.Context, texts []string, mode embedclient.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}
func (f *fakeEmbedProvider) Dimensions() int { return f.dim }
func (f *fakeEmbedProvider) Close() error    { return nil }

func newTestIndexer(t *testing.T) (*Indexer, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "idx.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ix := New(Config{
		Store:          s,
		Chunker:        chunk.NewDispatcher(),
		Symbols:        symbol.NewDispatcher(),
		Embeddings:     &fakeEmbedProvider{dim: 4},
		EmbeddingModel: "test-model",
		Normalize:      true,
		MaxTokens:      1000,
		Workers:        2,
	})
	return ix, s
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexer_NewFileClassifiedNew(t *testing.T) {
	ix, s := newTestIndexer(t)
	dir := t.TempDir()
	abs := writeFile(t, dir, "a.go", "package demo\n\nfunc Hello() {}\n")

	result, err := ix.Update(context.Background(), map[string]string{"a.go": abs}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, result.New)
	assert.Empty(t, result.Failures)

	fs, err := store.GetFileStateByPath(s.DB(), "a.go")
	require.NoError(t, err)
	require.NotNil(t, fs)

	chunks, err := store.ListChunksByFile(s.DB(), fs.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestIndexer_UnchangedFileOnlyTouchesTimestamp(t *testing.T) {
	ix, s := newTestIndexer(t)
	dir := t.TempDir()
	abs := writeFile(t, dir, "b.go", "package demo\n\nfunc B() {}\n")

	_, err := ix.Update(context.Background(), map[string]string{"b.go": abs}, false, nil)
	require.NoError(t, err)

	before, err := store.GetFileStateByPath(s.DB(), "b.go")
	require.NoError(t, err)

	result, err := ix.Update(context.Background(), map[string]string{"b.go": abs}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, result.Unchanged)

	after, err := store.GetFileStateByPath(s.DB(), "b.go")
	require.NoError(t, err)
	assert.Equal(t, before.ContentHash, after.ContentHash)
}

func TestIndexer_ModifiedFileReplacesChunks(t *testing.T) {
	ix, s := newTestIndexer(t)
	dir := t.TempDir()
	abs := writeFile(t, dir, "c.go", "package demo\n\nfunc C() {}\n")

	_, err := ix.Update(context.Background(), map[string]string{"c.go": abs}, false, nil)
	require.NoError(t, err)

	writeFile(t, dir, "c.go", "package demo\n\nfunc C() {}\n\nfunc D() {}\n")
	result, err := ix.Update(context.Background(), map[string]string{"c.go": abs}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.go"}, result.Modified)

	fs, err := store.GetFileStateByPath(s.DB(), "c.go")
	require.NoError(t, err)
	require.NotNil(t, fs)

	chunks, err := store.ListChunksByFile(s.DB(), fs.ID)
	require.NoError(t, err)
	var content string
	for _, c := range chunks {
		content += c.Content
	}
	assert.Contains(t, content, "func D() {}")

	symbols, err := store.ListSymbolsByFile(s.DB(), fs.ID)
	require.NoError(t, err)
	assert.Len(t, symbols, 2)
}

func TestIndexer_ImplicitDeletionSoftDeletes(t *testing.T) {
	ix, s := newTestIndexer(t)
	dir := t.TempDir()
	abs := writeFile(t, dir, "d.go", "package demo\n\nfunc D() {}\n")

	_, err := ix.Update(context.Background(), map[string]string{"d.go": abs}, false, nil)
	require.NoError(t, err)

	result, err := ix.Update(context.Background(), map[string]string{}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d.go"}, result.Deleted)

	fs, err := store.GetFileStateByPath(s.DB(), "d.go")
	require.NoError(t, err)
	assert.True(t, fs.IsDeleted)
}

func TestIndexer_FailureIsolatedPerFile(t *testing.T) {
	ix, _ := newTestIndexer(t)
	result, err := ix.Update(context.Background(), map[string]string{"missing.go": "/does/not/exist.go"}, false, nil)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "missing.go", result.Failures[0].Path)
}
