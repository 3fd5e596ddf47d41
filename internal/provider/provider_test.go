package provider

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/codegraphd/internal/embedclient"
	"github.com/mvp-joe/codegraphd/internal/store"
)

func TestNormalizeScores_MinMaxToUnitRange(t *testing.T) {
	snippets := []Snippet{{Score: 10}, {Score: 0}, {Score: 5}}
	normalizeScores(snippets, true)
	assert.Equal(t, 1.0, snippets[0].Score)
	assert.Equal(t, 0.0, snippets[1].Score)
	assert.Equal(t, 0.5, snippets[2].Score)
}

func TestNormalizeScores_ConstantInputMapsToOne(t *testing.T) {
	snippets := []Snippet{{Score: 3}, {Score: 3}}
	normalizeScores(snippets, true)
	assert.Equal(t, 1.0, snippets[0].Score)
	assert.Equal(t, 1.0, snippets[1].Score)
}

func TestTokenize_SplitsOnCamelCaseAndUnderscores(t *testing.T) {
	assert.Equal(t, []string{"get", "user", "by", "id"}, tokenize("GetUserByID_helper")[:4])
}

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, mode embedclient.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = 1
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int { return f.dim }
func (f *fakeEmbedder) Close() error    { return nil }

func TestSemanticProvider_ReturnsNearestFromCache(t *testing.T) {
	cache := store.NewVectorCache()
	require.NoError(t, cache.Reload(context.Background(), []store.CachedChunk{
		{ChunkID: "c1", FilePath: "a.go", Kind: "code", Text: "func A() {}", Vector: []float32{1, 0, 0, 0}},
		{ChunkID: "c2", FilePath: "b.go", Kind: "code", Text: "func B() {}", Vector: []float32{0, 1, 0, 0}},
	}))

	p := &SemanticProvider{Embeddings: &fakeEmbedder{dim: 4}, Cache: cache, DefaultK: 5}
	snippets, err := p.GetContext(context.Background(), Query{Text: "find A"})
	require.NoError(t, err)
	require.NotEmpty(t, snippets)
	assert.Equal(t, "c1", snippets[0].ChunkID)
}

func openProviderTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "provider.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedFileWithSymbol(t *testing.T, s *store.Store, relPath string, sym *store.Symbol) string {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	fs := &store.FileState{RelativePath: relPath, ContentHash: "h", SizeBytes: 1, MtimeNS: 1, IndexedAt: now, Language: sym.Language}
	chunkID := ""
	err := s.WithWriteTx(func(tx *sql.Tx) error {
		if err := store.UpsertFileState(tx, fs); err != nil {
			return err
		}
		chunks := []*store.Chunk{{Ordinal: 0, Kind: "code", StartLine: 1, EndLine: 3, Content: "func Handle() {}", CreatedAt: now}}
		if err := store.ReplaceChunks(tx, fs.ID, chunks); err != nil {
			return err
		}
		chunkID = chunks[0].ID
		sym.ChunkID = chunkID
		return store.ReplaceSymbols(tx, fs.ID, []*store.Symbol{sym})
	})
	require.NoError(t, err)
	return chunkID
}

func TestSymbolProvider_PrefixMatchRanksHighest(t *testing.T) {
	s := openProviderTestStore(t)
	seedFileWithSymbol(t, s, "handler.go", &store.Symbol{Type: "function", Name: "HandleRequest", QualifiedName: "pkg.HandleRequest", Language: "go"})

	p := &SymbolProvider{Store: s, DefaultK: 5}
	snippets, err := p.GetContext(context.Background(), Query{Text: "Handle"})
	require.NoError(t, err)
	require.NotEmpty(t, snippets)
	assert.Equal(t, "handler.go", snippets[0].FilePath)
}

type fixedHistoryReader struct{ commits []Commit }

func (f fixedHistoryReader) RecentCommits(ctx context.Context, repoPath string, maxCommits int) ([]Commit, error) {
	return f.commits, nil
}

func TestGitHistoryProvider_ScoresFilesTouchedByMatchingCommits(t *testing.T) {
	s := openProviderTestStore(t)
	seedFileWithSymbol(t, s, "auth.go", &store.Symbol{Type: "function", Name: "Login", QualifiedName: "pkg.Login", Language: "go"})

	reader := fixedHistoryReader{commits: []Commit{
		{Hash: "h1", Message: "fix login bug", Files: []string{"auth.go"}},
		{Hash: "h2", Message: "unrelated change", Files: []string{"other.go"}},
	}}

	p := &GitHistoryProvider{Store: s, Reader: reader, MaxCommits: 50, DefaultK: 5}
	snippets, err := p.GetContext(context.Background(), Query{Text: "login"})
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "auth.go", snippets[0].FilePath)
}

func TestGitHistoryProvider_NoMatchingCommitsYieldsEmpty(t *testing.T) {
	s := openProviderTestStore(t)
	reader := fixedHistoryReader{commits: []Commit{{Hash: "h1", Message: "unrelated", Files: []string{"x.go"}}}}
	p := &GitHistoryProvider{Store: s, Reader: reader, MaxCommits: 50, DefaultK: 5}
	snippets, err := p.GetContext(context.Background(), Query{Text: "login"})
	require.NoError(t, err)
	assert.Empty(t, snippets)
}
