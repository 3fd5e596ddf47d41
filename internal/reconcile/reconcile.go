// Package reconcile implements the startup reconciler of spec §4.14:
// compare stored FileStates against the live filesystem once at process
// start and apply the delta through the incremental indexer. Grounded
// on the teacher's internal/indexer startup-scan flow, generalized to
// this repo's content-hash FileState model.
package reconcile

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/mvp-joe/codegraphd/internal/index"
	"github.com/mvp-joe/codegraphd/internal/scanner"
	"github.com/mvp-joe/codegraphd/internal/store"
)

// Result mirrors spec §4.14's counters.
type Result struct {
	New      []string
	Modified []string
	Deleted  []string
	Failures []index.Failure
	Duration time.Duration
}

// Config bundles the reconciler's collaborators.
type Config struct {
	Store   *store.Store
	Scanner *scanner.Scanner
	Indexer *index.Indexer
	// RelativePath converts an absolute scanned path to the relative
	// path used as FileState's key.
	RelativePath func(absolutePath string) string
}

// Reconciler runs the one-shot startup reconciliation pass.
type Reconciler struct {
	cfg Config
}

// New creates a Reconciler.
func New(cfg Config) *Reconciler {
	return &Reconciler{cfg: cfg}
}

// Run lists active FileStates, scans the filesystem, computes
// new = FS\DB, modified = hash-differs, deleted = DB\FS, then applies
// the new/modified set via the indexer (with implicit-deletion
// detection disabled, since deletions are computed and applied here
// explicitly) and soft-deletes the deleted set directly.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	result := &Result{}

	activePaths, err := store.ListActiveRelativePaths(r.cfg.Store.DB())
	if err != nil {
		return nil, fmt.Errorf("reconcile: failed to list active file states: %w", err)
	}
	activeSet := make(map[string]struct{}, len(activePaths))
	for _, p := range activePaths {
		activeSet[p] = struct{}{}
	}

	scanned, err := r.cfg.Scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("reconcile: scan failed: %w", err)
	}

	toIndex := make(map[string]string)
	seenOnDisk := make(map[string]struct{}, len(scanned))

	for _, abs := range scanned {
		rel := r.cfg.RelativePath(abs)
		seenOnDisk[rel] = struct{}{}

		existing, err := store.GetFileStateByPath(r.cfg.Store.DB(), rel)
		if err != nil {
			return nil, fmt.Errorf("reconcile: failed to load file state for %s: %w", rel, err)
		}
		if existing == nil {
			toIndex[rel] = abs
			continue
		}

		content, err := os.ReadFile(abs)
		if err != nil {
			result.Failures = append(result.Failures, index.Failure{Path: rel, Err: err})
			continue
		}
		if hashContent(content) != existing.ContentHash {
			toIndex[rel] = abs
		}
	}

	for _, rel := range activePaths {
		if _, onDisk := seenOnDisk[rel]; onDisk {
			continue
		}
		fs, err := store.GetFileStateByPath(r.cfg.Store.DB(), rel)
		if err != nil {
			return nil, fmt.Errorf("reconcile: failed to load file state for %s: %w", rel, err)
		}
		if fs == nil {
			continue
		}
		err = r.cfg.Store.WithWriteTx(func(tx *sql.Tx) error {
			return store.SoftDeleteFileState(tx, fs.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("reconcile: failed to soft-delete %s: %w", rel, err)
		}
		result.Deleted = append(result.Deleted, rel)
	}

	if len(toIndex) > 0 {
		updateResult, err := r.cfg.Indexer.Update(ctx, toIndex, false, nil)
		if err != nil {
			return nil, fmt.Errorf("reconcile: indexing failed: %w", err)
		}
		result.New = updateResult.New
		result.Modified = updateResult.Modified
		result.Failures = append(result.Failures, updateResult.Failures...)
	}

	result.Duration = time.Since(started)
	return result, nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
