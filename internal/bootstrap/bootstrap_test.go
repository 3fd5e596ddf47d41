package bootstrap

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/codegraphd/internal/chunk"
	"github.com/mvp-joe/codegraphd/internal/index"
	"github.com/mvp-joe/codegraphd/internal/scanner"
	"github.com/mvp-joe/codegraphd/internal/store"
	"github.com/mvp-joe/codegraphd/internal/symbol"
	"github.com/mvp-joe/codegraphd/internal/validate"
)

func TestPrioritizer_SmallSourceBeatsOversizedDoc(t *testing.T) {
	p := &Prioritizer{}
	candidates := []Candidate{
		{Path: "notes.md", SizeBytes: oversizedBytes + 1, ScanOrder: 0},
		{Path: "main.go", SizeBytes: 100, ScanOrder: 1},
	}
	ordered := p.Prioritize(candidates)
	require.Len(t, ordered, 2)
	assert.Equal(t, "main.go", ordered[0].Path)
	assert.Equal(t, "notes.md", ordered[1].Path)
}

func TestPrioritizer_CategoryOrderWithinBand(t *testing.T) {
	p := &Prioritizer{}
	candidates := []Candidate{
		{Path: "data.csv", SizeBytes: 50_000, ScanOrder: 0},
		{Path: "app.go", SizeBytes: 50_000, ScanOrder: 1},
		{Path: "README.md", SizeBytes: 50_000, ScanOrder: 2},
	}
	ordered := p.Prioritize(candidates)
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{"app.go", "README.md", "data.csv"}, []string{ordered[0].Path, ordered[1].Path, ordered[2].Path})
}

func TestPrioritizer_SpecialFilenameGetsFixedCategory(t *testing.T) {
	p := &Prioritizer{}
	candidates := []Candidate{
		{Path: "script.sh", SizeBytes: 50_000, ScanOrder: 0},
		{Path: "Makefile", SizeBytes: 50_000, ScanOrder: 1},
	}
	ordered := p.Prioritize(candidates)
	assert.Equal(t, "Makefile", ordered[0].Path)
	assert.Equal(t, "script.sh", ordered[1].Path)
}

func TestPrioritizer_TieBrokenBySizeThenScanOrder(t *testing.T) {
	p := &Prioritizer{}
	candidates := []Candidate{
		{Path: "b.go", SizeBytes: 200, ScanOrder: 0},
		{Path: "a.go", SizeBytes: 100, ScanOrder: 1},
		{Path: "c.go", SizeBytes: 100, ScanOrder: 2},
	}
	ordered := p.Prioritize(candidates)
	assert.Equal(t, []string{"a.go", "c.go", "b.go"}, []string{ordered[0].Path, ordered[1].Path, ordered[2].Path})
}

func TestPrioritizer_PriorityExtensionBreaksTieWithinCategory(t *testing.T) {
	p := &Prioritizer{PriorityExtensions: map[string]bool{".go": true}}
	candidates := []Candidate{
		{Path: "app.py", SizeBytes: 100, ScanOrder: 0},
		{Path: "app.go", SizeBytes: 100, ScanOrder: 1},
	}
	ordered := p.Prioritize(candidates)
	assert.Equal(t, "app.go", ordered[0].Path)
}

func TestPrioritizer_DeterministicAcrossRuns(t *testing.T) {
	p := &Prioritizer{}
	candidates := []Candidate{
		{Path: "z.go", SizeBytes: 500, ScanOrder: 0},
		{Path: "a.md", SizeBytes: 500, ScanOrder: 1},
		{Path: "m.yaml", SizeBytes: 500, ScanOrder: 2},
	}
	first := p.Prioritize(candidates)
	second := p.Prioritize(candidates)
	assert.Equal(t, first, second)
}

type stubReporter struct {
	discovered int
	completed  []string
	failed     []string
	done       bool
}

func (s *stubReporter) OnDiscovered(total int) { s.discovered = total }
func (s *stubReporter) OnFileComplete(path string, err error) {
	if err != nil {
		s.failed = append(s.failed, path)
	} else {
		s.completed = append(s.completed, path)
	}
}
func (s *stubReporter) OnComplete(succeeded, failed int, _ time.Duration) { s.done = true }

func newTestOrchestrator(t *testing.T, root string) (*Orchestrator, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "bootstrap.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	vcfg := &validate.Config{
		WatchRoots:    []string{root},
		MaxFileSizeMB: 10,
	}
	scn := scanner.New(vcfg, false)

	ix := index.New(index.Config{
		Store:          s,
		Chunker:        chunk.NewDispatcher(),
		Symbols:        symbol.NewDispatcher(),
		EmbeddingModel: "test-model",
		MaxTokens:      1000,
		Workers:        2,
	})

	o := New(Config{
		Store:          s,
		Scanner:        scn,
		ValidateConfig: vcfg,
		Indexer:        ix,
	})
	return o, s
}

func TestOrchestrator_FreshSweepIndexesAllFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package demo\n\nfunc A() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package demo\n\nfunc B() {}\n"), 0o644))

	o, s := newTestOrchestrator(t, root)
	require.NoError(t, o.Run(context.Background()))

	fsA, err := store.GetFileStateByPath(s.DB(), "a.go")
	require.NoError(t, err)
	require.NotNil(t, fsA)

	pending, err := store.PendingBootstrapPaths(s.DB())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOrchestrator_ResumesFromPendingProgress(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "only.go"), []byte("package demo\n\nfunc Only() {}\n"), 0o644))

	o, s := newTestOrchestrator(t, root)

	require.NoError(t, s.WithWriteTx(func(tx *sql.Tx) error {
		return store.UpsertBootstrapProgress(tx, &store.BootstrapProgress{
			Path:   "only.go",
			Status: store.BootstrapPending,
		})
	}))

	require.NoError(t, o.Run(context.Background()))

	fs, err := store.GetFileStateByPath(s.DB(), "only.go")
	require.NoError(t, err)
	require.NotNil(t, fs)
}
