// Package index implements the incremental indexer of spec §4.12:
// classify each input path as new/modified/unchanged/deleted by content
// hash, then chunk/embed/extract-symbols and replace that file's rows in
// one transaction. Grounded on the teacher's
// internal/indexer/change_detector.go (hash-vs-mtime classification
// algorithm) and internal/indexer/processor.go (per-file pipeline,
// worker pool, progress reporting).
package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mvp-joe/codegraphd/internal/chunk"
	"github.com/mvp-joe/codegraphd/internal/embedclient"
	"github.com/mvp-joe/codegraphd/internal/store"
	"github.com/mvp-joe/codegraphd/internal/symbol"
)

// Classification enumerates how one input path compares to stored state.
type Classification string

const (
	ClassNew       Classification = "new"
	ClassModified  Classification = "modified"
	ClassUnchanged Classification = "unchanged"
	ClassDeleted   Classification = "deleted"
)

// Failure records one path that could not be indexed, isolated per spec
// §4.12 point 5: per-file failures never abort the batch.
type Failure struct {
	Path string
	Err  error
}

// UpdateResult mirrors spec §4.12's UpdateResult shape.
type UpdateResult struct {
	New       []string
	Modified  []string
	Unchanged []string
	Deleted   []string
	Failures  []Failure
}

// Progress is delivered to an optional callback after every file.
type Progress struct {
	Processed int
	Succeeded int
	Failed    int
	LastPath  string
	LastErr   error
}

// Config bundles the indexer's collaborators.
type Config struct {
	Store          *store.Store
	Chunker        *chunk.Dispatcher
	Symbols        *symbol.Dispatcher
	Embeddings     embedclient.Provider
	EmbeddingModel string
	Normalize      bool
	MaxTokens      int
	ChunkOverlap   int
	Workers        int
	ReadFile       func(path string) ([]byte, error)
}

// Indexer runs the incremental update algorithm.
type Indexer struct {
	cfg Config
}

func New(cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ReadFile == nil {
		cfg.ReadFile = os.ReadFile
	}
	return &Indexer{cfg: cfg}
}

type fileJob struct {
	relativePath string
	absolutePath string
}

// Update classifies every path in paths (relative path -> absolute path)
// and indexes new/modified files through a bounded worker pool; the
// Store's single-writer lock serializes the resulting transactions. When
// detectImplicitDeletions is true, any stored FileState whose
// relative_path is absent from paths is soft-deleted.
func (ix *Indexer) Update(ctx context.Context, paths map[string]string, detectImplicitDeletions bool, progressCh chan<- Progress) (*UpdateResult, error) {
	result := &UpdateResult{}
	var resultMu sync.Mutex

	jobs := make(chan fileJob)
	var wg sync.WaitGroup

	var processed, succeeded, failed int
	var counterMu sync.Mutex

	reportProgress := func(path string, err error) {
		counterMu.Lock()
		processed++
		if err != nil {
			failed++
		} else {
			succeeded++
		}
		p := Progress{Processed: processed, Succeeded: succeeded, Failed: failed, LastPath: path, LastErr: err}
		counterMu.Unlock()
		if progressCh != nil {
			progressCh <- p
		}
	}

	worker := func() {
		defer wg.Done()
		for job := range jobs {
			class, err := ix.indexOne(ctx, job)
			resultMu.Lock()
			switch {
			case err != nil:
				result.Failures = append(result.Failures, Failure{Path: job.relativePath, Err: err})
			case class == ClassNew:
				result.New = append(result.New, job.relativePath)
			case class == ClassModified:
				result.Modified = append(result.Modified, job.relativePath)
			case class == ClassUnchanged:
				result.Unchanged = append(result.Unchanged, job.relativePath)
			}
			resultMu.Unlock()
			reportProgress(job.relativePath, err)
		}
	}

	for i := 0; i < ix.cfg.Workers; i++ {
		wg.Add(1)
		go worker()
	}

	go func() {
		defer close(jobs)
		for rel, abs := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- fileJob{relativePath: rel, absolutePath: abs}:
			}
		}
	}()

	wg.Wait()

	if detectImplicitDeletions {
		deleted, err := ix.detectDeletions(paths)
		if err != nil {
			return result, err
		}
		result.Deleted = deleted
	}

	return result, ctx.Err()
}

// indexOne runs the full classify -> chunk -> embed -> extract-symbols ->
// persist pipeline for one file, per spec §4.12 points 1-4.
func (ix *Indexer) indexOne(ctx context.Context, job fileJob) (Classification, error) {
	content, err := ix.cfg.ReadFile(job.absolutePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", job.absolutePath, err)
	}
	info, err := os.Stat(job.absolutePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", job.absolutePath, err)
	}

	contentHash := hashContent(content)
	existing, err := store.GetFileStateByPath(ix.cfg.Store.DB(), job.relativePath)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if existing != nil && existing.ContentHash == contentHash {
		err := ix.cfg.Store.WithWriteTx(func(tx *sql.Tx) error {
			return store.TouchIndexedAt(tx, existing.ID, now)
		})
		if err != nil {
			return "", err
		}
		return ClassUnchanged, nil
	}

	class := ClassNew
	if existing != nil {
		class = ClassModified
	}

	chunks, err := ix.cfg.Chunker.ChunkFile(job.relativePath, string(content), ix.cfg.MaxTokens, ix.cfg.ChunkOverlap)
	if err != nil {
		return "", fmt.Errorf("chunking failed: %w", err)
	}

	storeChunks := make([]*store.Chunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = &store.Chunk{
			Ordinal:       c.Ordinal,
			Kind:          string(c.Kind),
			StartLine:     c.StartLine,
			EndLine:       c.EndLine,
			TokenEstimate: c.TokenEstimate,
			Content:       c.Content,
			CreatedAt:     now,
		}
		texts[i] = c.Content
	}

	var symbols []symbol.Symbol
	if ix.cfg.Symbols != nil {
		symbols, err = ix.cfg.Symbols.Extract(job.relativePath, content)
		if err != nil {
			return "", fmt.Errorf("symbol extraction failed: %w", err)
		}
	}

	var vectors [][]float32
	if ix.cfg.Embeddings != nil && len(texts) > 0 {
		vectors, err = ix.cfg.Embeddings.Embed(ctx, texts, embedclient.ModePassage)
		if err != nil {
			return "", fmt.Errorf("embedding failed: %w", err)
		}
		if ix.cfg.Normalize {
			embedclient.Normalize(vectors)
		}
	}

	fileState := &store.FileState{
		RelativePath: job.relativePath,
		ContentHash:  contentHash,
		SizeBytes:    info.Size(),
		MtimeNS:      info.ModTime().UnixNano(),
		IndexedAt:    now,
	}
	if existing != nil {
		fileState.ID = existing.ID
	}

	err = ix.cfg.Store.WithWriteTx(func(tx *sql.Tx) error {
		if err := store.UpsertFileState(tx, fileState); err != nil {
			return err
		}
		if err := store.ReplaceChunks(tx, fileState.ID, storeChunks); err != nil {
			return err
		}

		if len(vectors) > 0 {
			embeddings := make([]*store.Embedding, len(storeChunks))
			for i, sc := range storeChunks {
				embeddings[i] = &store.Embedding{
					ChunkID:    sc.ID,
					Model:      ix.cfg.EmbeddingModel,
					Dimensions: ix.cfg.Store.Dimensions(),
					Vector:     vectors[i],
					CreatedAt:  now,
				}
			}
			if err := store.ReplaceEmbeddings(tx, fileState.ID, embeddings); err != nil {
				return err
			}
		}

		chunkRanges := make([]symbol.ChunkRange, len(storeChunks))
		for i, sc := range storeChunks {
			chunkRanges[i] = symbol.ChunkRange{ChunkID: sc.ID, StartLine: sc.StartLine, EndLine: sc.EndLine}
		}
		symbol.AssignChunkIDs(symbols, chunkRanges)

		storeSymbols := make([]*store.Symbol, len(symbols))
		for i, sym := range symbols {
			storeSymbols[i] = &store.Symbol{
				ChunkID:       sym.ChunkID,
				Type:          string(sym.Type),
				Name:          sym.Name,
				QualifiedName: sym.QualifiedName,
				Signature:     sym.Signature,
				Language:      sym.Language,
				StartLine:     sym.StartLine,
				EndLine:       sym.EndLine,
			}
		}
		// ReplaceSymbols always runs, even with an empty slice, so a file
		// that loses symbol support on reindex has its stale rows cleared.
		if err := store.ReplaceSymbols(tx, fileState.ID, storeSymbols); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return class, nil
}

// detectDeletions soft-deletes every stored FileState whose relative_path
// is absent from the input set, per spec §4.12 point 3.
func (ix *Indexer) detectDeletions(paths map[string]string) ([]string, error) {
	active, err := store.ListActiveRelativePaths(ix.cfg.Store.DB())
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, rel := range active {
		if _, ok := paths[rel]; ok {
			continue
		}
		fs, err := store.GetFileStateByPath(ix.cfg.Store.DB(), rel)
		if err != nil {
			return nil, err
		}
		if fs == nil {
			continue
		}
		err = ix.cfg.Store.WithWriteTx(func(tx *sql.Tx) error {
			return store.SoftDeleteFileState(tx, fs.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to soft-delete %s: %w", rel, err)
		}
		deleted = append(deleted, rel)
	}
	return deleted, nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
