package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/codegraphd/internal/engconfig"
	"github.com/mvp-joe/codegraphd/internal/provider"
	"github.com/mvp-joe/codegraphd/internal/watch"
)

func testConfig(t *testing.T) *engconfig.Config {
	t.Helper()
	cfg := engconfig.Default()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "index.db")
	cfg.Watcher.Paths = []string{t.TempDir()}
	cfg.Providers.Enabled = []string{"semantic", "symbol", "fulltext"}
	return cfg
}

func TestNew_BuildsEveryCollaborator(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, svc)
	defer svc.Shutdown()

	assert.NotNil(t, svc.store)
	assert.NotNil(t, svc.indexer)
	assert.NotNil(t, svc.bootstrap)
	assert.NotNil(t, svc.reconciler)
	assert.NotNil(t, svc.watcher)
	assert.NotNil(t, svc.hybrid)
	assert.NotNil(t, svc.optimizer)
	assert.NotNil(t, svc.neighbors)
}

func TestNew_RejectsUnsupportedEmbeddingProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = "remote-unsupported"

	svc, err := New(cfg)
	require.Error(t, err)
	assert.Nil(t, svc)
}

func TestStartAndShutdown_RoundTripOnEmptyRoot(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))

	require.NoError(t, svc.Shutdown())
}

func TestShutdown_SafeWithoutStart(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)

	require.NoError(t, svc.Shutdown())
}

func TestQuery_ReturnsRenderedDocumentWithNoChunksIndexed(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	defer svc.Shutdown()

	doc, err := svc.Query(context.Background(), "how does auth work", 5, provider.Filters{})
	require.NoError(t, err)
	assert.Contains(t, doc, "project_context")
}

func TestQuery_DefaultsKWhenNonPositive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Query.DefaultK = 7
	svc, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	defer svc.Shutdown()

	_, err = svc.Query(context.Background(), "anything", 0, provider.Filters{})
	require.NoError(t, err)
}

func TestMustRelativePath_FallsBackToAbsoluteOutsideAllRoots(t *testing.T) {
	roots := []string{"/a/b"}
	got := mustRelativePath(roots, "/c/d/e.go")
	assert.Equal(t, "/c/d/e.go", got)
}

func TestMustRelativePath_ResolvesUnderMatchingRoot(t *testing.T) {
	roots := []string{"/a/b"}
	got := mustRelativePath(roots, "/a/b/pkg/file.go")
	assert.Equal(t, "pkg/file.go", got)
}

func TestFirstOrDot_EmptyPathsReturnsDot(t *testing.T) {
	assert.Equal(t, ".", firstOrDot(nil))
	assert.Equal(t, "/repo", firstOrDot([]string{"/repo", "/other"}))
}

func TestApplyBatch_IgnoresPathsOutsideAnyRootWithoutPanicking(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Shutdown()

	require.NotPanics(t, func() {
		svc.applyBatch(watch.Batch{Paths: []string{"/does/not/exist.go"}})
	})
}
