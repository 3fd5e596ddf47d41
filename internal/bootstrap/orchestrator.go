package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mvp-joe/codegraphd/internal/index"
	"github.com/mvp-joe/codegraphd/internal/scanner"
	"github.com/mvp-joe/codegraphd/internal/store"
	"github.com/mvp-joe/codegraphd/internal/validate"
)

// ProgressReporter receives bootstrap lifecycle events. Implementations
// must tolerate concurrent calls from the indexer's worker pool.
type ProgressReporter interface {
	OnDiscovered(total int)
	OnFileComplete(path string, err error)
	OnComplete(succeeded, failed int, elapsed time.Duration)
}

// NoopReporter discards every event.
type NoopReporter struct{}

func (NoopReporter) OnDiscovered(int)                   {}
func (NoopReporter) OnFileComplete(string, error)       {}
func (NoopReporter) OnComplete(int, int, time.Duration) {}

// Config bundles the orchestrator's collaborators.
type Config struct {
	Store              *store.Store
	Scanner            *scanner.Scanner
	ValidateConfig     *validate.Config
	Indexer            *index.Indexer
	PriorityExtensions map[string]bool
	Reporter           ProgressReporter
}

// Orchestrator drives the initial, prioritized, resumable sweep of spec
// §4.13. Grounded on the teacher's internal/indexer bootstrap flow
// (discover -> process -> report) with prioritization and
// crash-resume added, since the teacher has no equivalent.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator. If cfg.Reporter is nil, events are
// discarded.
func New(cfg Config) *Orchestrator {
	if cfg.Reporter == nil {
		cfg.Reporter = NoopReporter{}
	}
	return &Orchestrator{cfg: cfg}
}

// Run executes the sweep: resume from bootstrap_progress if any
// non-completed rows exist, otherwise scan+prioritize+persist PENDING
// rows before handing off to the incremental indexer.
func (o *Orchestrator) Run(ctx context.Context) error {
	started := time.Now()

	pending, err := store.PendingBootstrapPaths(o.cfg.Store.DB())
	if err != nil {
		return fmt.Errorf("bootstrap: failed to check resumable progress: %w", err)
	}

	var orderedPaths []string
	if len(pending) > 0 {
		orderedPaths = pending
	} else {
		orderedPaths, err = o.discoverAndPrioritize()
		if err != nil {
			return err
		}
		if err := o.persistPending(orderedPaths); err != nil {
			return err
		}
	}

	o.cfg.Reporter.OnDiscovered(len(orderedPaths))

	absByRel := make(map[string]string, len(orderedPaths))
	for _, rel := range orderedPaths {
		absByRel[rel] = o.absolutePath(rel)
	}

	progressCh := make(chan index.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progressCh {
			var err error
			if p.LastErr != nil {
				err = p.LastErr
			}
			o.markResult(p.LastPath, err)
			o.cfg.Reporter.OnFileComplete(p.LastPath, err)
		}
	}()

	result, err := o.cfg.Indexer.Update(ctx, absByRel, false, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return fmt.Errorf("bootstrap: indexing failed: %w", err)
	}

	succeeded := len(result.New) + len(result.Modified) + len(result.Unchanged)
	failed := len(result.Failures)

	if failed == 0 {
		if err := o.cfg.Store.WithWriteTx(func(tx *sql.Tx) error {
			return store.ClearBootstrapProgress(tx)
		}); err != nil {
			return fmt.Errorf("bootstrap: failed to clear progress after completion: %w", err)
		}
	}

	o.cfg.Reporter.OnComplete(succeeded, failed, time.Since(started))
	return nil
}

func (o *Orchestrator) discoverAndPrioritize() ([]string, error) {
	files, err := o.cfg.Scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: scan failed: %w", err)
	}

	candidates := make([]Candidate, len(files))
	for i, abs := range files {
		info, err := os.Stat(abs)
		var size int64
		if err == nil {
			size = info.Size()
		}
		candidates[i] = Candidate{
			Path:      o.relativePath(abs),
			SizeBytes: size,
			ScanOrder: i,
		}
	}

	prioritizer := &Prioritizer{PriorityExtensions: o.cfg.PriorityExtensions}
	ordered := prioritizer.Prioritize(candidates)

	out := make([]string, len(ordered))
	for i, c := range ordered {
		out[i] = c.Path
	}
	return out, nil
}

func (o *Orchestrator) persistPending(paths []string) error {
	return o.cfg.Store.WithWriteTx(func(tx *sql.Tx) error {
		for _, p := range paths {
			if err := store.UpsertBootstrapProgress(tx, &store.BootstrapProgress{
				Path:   p,
				Status: store.BootstrapPending,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (o *Orchestrator) markResult(path string, fileErr error) {
	status := store.BootstrapCompleted
	errMsg := ""
	if fileErr != nil {
		status = store.BootstrapFailed
		errMsg = fileErr.Error()
	}
	_ = o.cfg.Store.WithWriteTx(func(tx *sql.Tx) error {
		return store.UpsertBootstrapProgress(tx, &store.BootstrapProgress{
			Path:   path,
			Status: status,
			Error:  errMsg,
		})
	})
}

func (o *Orchestrator) relativePath(abs string) string {
	for _, root := range o.cfg.ValidateConfig.WatchRoots {
		cleanRoot := filepath.Clean(root)
		rel, err := filepath.Rel(cleanRoot, abs)
		if err != nil || rel == ".." || hasDotDotPrefix(rel) {
			continue
		}
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(abs)
}

// absolutePath resolves a stored relative path back to an absolute path
// by probing each watch root in order, since a resumed sweep only has
// the relative paths persisted in bootstrap_progress.
func (o *Orchestrator) absolutePath(rel string) string {
	native := filepath.FromSlash(rel)
	for _, root := range o.cfg.ValidateConfig.WatchRoots {
		candidate := filepath.Join(root, native)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if len(o.cfg.ValidateConfig.WatchRoots) > 0 {
		return filepath.Join(o.cfg.ValidateConfig.WatchRoots[0], native)
	}
	return native
}

func hasDotDotPrefix(p string) bool {
	return p == ".." || len(p) > 2 && p[:3] == "../"
}
