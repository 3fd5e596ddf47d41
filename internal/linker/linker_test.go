package linker

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/codegraphd/internal/store"
)

type fixedResolver map[string]*store.Symbol

func (f fixedResolver) ResolveByName(name string) (*store.Symbol, error) {
	return f[name], nil
}

func TestBuildLinks_EmitsCallEdgeForReferencedSymbol(t *testing.T) {
	caller := &store.Symbol{Name: "Handle", ChunkID: "c1"}
	callee := &store.Symbol{Name: "Validate", ChunkID: "c2", FileID: "f2"}

	resolver := fixedResolver{"Validate": callee}
	chunkContent := map[string]string{"c1": "func Handle() { Validate(x) }"}

	links, err := BuildLinks([]*store.Symbol{caller}, chunkContent, resolver)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "c1", links[0].SourceChunkID)
	assert.Equal(t, "c2", links[0].TargetChunkID)
	assert.Equal(t, LinkTypeCalls, links[0].Type)
}

func TestBuildLinks_SkipsSelfReference(t *testing.T) {
	caller := &store.Symbol{Name: "Handle", ChunkID: "c1"}
	resolver := fixedResolver{"Handle": caller}
	chunkContent := map[string]string{"c1": "func Handle() { Handle() }"}

	links, err := BuildLinks([]*store.Symbol{caller}, chunkContent, resolver)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestBuildLinks_SkipsUnresolvedNames(t *testing.T) {
	caller := &store.Symbol{Name: "Handle", ChunkID: "c1"}
	resolver := fixedResolver{}
	chunkContent := map[string]string{"c1": "func Handle() { fmt.Println(x) }"}

	links, err := BuildLinks([]*store.Symbol{caller}, chunkContent, resolver)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "linker.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGraph_CallersAndCalleesReflectPersistedLinks(t *testing.T) {
	s := openTestStore(t)

	link := &store.Link{SourceChunkID: "c1", TargetFileID: "f2", TargetChunkID: "c2", Type: LinkTypeCalls, Score: 1}
	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error {
		return store.ReplaceLinksForFile(tx, "f1", []*store.Link{link})
	}))

	g := New()
	require.NoError(t, g.Reload(s.DB()))

	assert.Equal(t, []string{"c2"}, g.Callees("c1"))
	assert.Equal(t, []string{"c1"}, g.Callers("c2"))
	assert.Empty(t, g.Callers("c1"))
}
