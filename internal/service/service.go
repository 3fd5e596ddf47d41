// Package service assembles every component into the single composition
// root the rest of this repo is built around: one Service owns the
// store, the discovery/validation/watch pipeline, the incremental
// indexer and its bootstrap/reconcile entry points, and the query-side
// provider fan-out, boosting, optimization, neighbor expansion, and
// rendering chain. Grounded on the teacher's cmd/cortex-embed and
// internal/daemon wiring (the closest the teacher comes to a single
// top-level composition root) but reshaped into an explicit New/Start/
// Query/Shutdown lifecycle object instead of the teacher's process-wide
// singletons, since this repo is meant to be embedded rather than run
// as its own daemon.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mvp-joe/codegraphd/internal/binaryd"
	"github.com/mvp-joe/codegraphd/internal/boost"
	"github.com/mvp-joe/codegraphd/internal/bootstrap"
	"github.com/mvp-joe/codegraphd/internal/chunk"
	"github.com/mvp-joe/codegraphd/internal/embedclient"
	"github.com/mvp-joe/codegraphd/internal/engconfig"
	"github.com/mvp-joe/codegraphd/internal/filter"
	"github.com/mvp-joe/codegraphd/internal/fsresolve"
	"github.com/mvp-joe/codegraphd/internal/fusion"
	"github.com/mvp-joe/codegraphd/internal/ignore"
	"github.com/mvp-joe/codegraphd/internal/index"
	"github.com/mvp-joe/codegraphd/internal/linker"
	"github.com/mvp-joe/codegraphd/internal/metrics"
	"github.com/mvp-joe/codegraphd/internal/neighbor"
	"github.com/mvp-joe/codegraphd/internal/provider"
	"github.com/mvp-joe/codegraphd/internal/query"
	"github.com/mvp-joe/codegraphd/internal/reconcile"
	"github.com/mvp-joe/codegraphd/internal/render"
	"github.com/mvp-joe/codegraphd/internal/scanner"
	"github.com/mvp-joe/codegraphd/internal/store"
	"github.com/mvp-joe/codegraphd/internal/symbol"
	"github.com/mvp-joe/codegraphd/internal/validate"
	"github.com/mvp-joe/codegraphd/internal/watch"
)

// Service owns the full lifecycle of one engine instance: one store,
// one watcher, one query pipeline. It is not safe to call Start twice
// or to call Query before Start has completed its first reload.
type Service struct {
	cfg *engconfig.Config

	store      *store.Store
	validate   *validate.Config
	scanner    *scanner.Scanner
	indexer    *index.Indexer
	bootstrap  *bootstrap.Orchestrator
	reconciler *reconcile.Reconciler
	watcher    *watch.Watcher

	embedder    embedclient.Provider
	vectorCache *store.VectorCache
	fullText    *provider.FullTextProvider
	graph       *linker.Graph
	resolver    *linker.StoreResolver

	hybrid    *fusion.Hybrid
	optimizer *query.Optimizer
	neighbors *neighbor.Expander
	boostCfg  boost.Rules
	estimator render.CharEstimator

	metrics *metrics.Registry

	mu       sync.Mutex
	watchCtx context.Context
	cancel   context.CancelFunc
}

// New builds every collaborator from cfg but does not scan, index, or
// start watching; call Start for that.
func New(cfg *engconfig.Config) (*Service, error) {
	st, err := store.Open(cfg.Storage.DBPath, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("service: failed to open store: %w", err)
	}

	validateCfg, err := buildValidateConfig(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("service: failed to build validation config: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("service: failed to build embedding provider: %w", err)
	}

	fullText, err := provider.NewFullTextProvider()
	if err != nil {
		st.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("service: failed to build full-text provider: %w", err)
	}

	sc := scanner.New(validateCfg, true)
	indexer := index.New(index.Config{
		Store:          st,
		Chunker:        chunk.NewDispatcher(),
		Symbols:        symbol.NewDispatcher(),
		Embeddings:     embedder,
		EmbeddingModel: cfg.Embedding.Model,
		Normalize:      cfg.Embedding.Normalize,
		MaxTokens:      cfg.Chunking.MaxTokens,
		ChunkOverlap:   cfg.Chunking.Overlap,
		Workers:        cfg.Indexing.Workers,
	})

	priority := make(map[string]bool, len(cfg.Bootstrap.PriorityExtensions))
	for _, ext := range cfg.Bootstrap.PriorityExtensions {
		priority[filter.Canonicalize(ext)] = true
	}

	orchestrator := bootstrap.New(bootstrap.Config{
		Store:              st,
		Scanner:            sc,
		ValidateConfig:     validateCfg,
		Indexer:            indexer,
		PriorityExtensions: priority,
	})

	reconciler := reconcile.New(reconcile.Config{
		Store:        st,
		Scanner:      sc,
		Indexer:      indexer,
		RelativePath: func(abs string) string { return mustRelativePath(validateCfg.WatchRoots, abs) },
	})

	watcher, err := watch.New(watch.Config{
		Roots:          cfg.Watcher.Paths,
		DebounceMillis: cfg.Watcher.DebounceMS,
		BatchWindowMs:  cfg.Watcher.BatchWindowMS,
	})
	if err != nil {
		st.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("service: failed to build watcher: %w", err)
	}

	vectorCache := store.NewVectorCache()
	resolver := &linker.StoreResolver{Store: st}
	graph := linker.New()

	optimizer, err := query.New(query.Config{
		MinScoreThreshold: cfg.Query.MinScoreThreshold,
		RerankEnabled:     cfg.Query.RerankEnabled,
		DefaultK:          cfg.Query.DefaultK,
		Lambda:            cfg.Query.MMRLambda,
		TokenBudget:       cfg.Budget.MaxTokens - cfg.Budget.ReserveTokens,
		CacheSize:         cfg.Query.CacheSize,
		CacheTTL:          time.Duration(cfg.Query.CacheTTLSeconds) * time.Second,
	}, vectorCache, render.CharEstimator{})
	if err != nil {
		st.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("service: failed to build query optimizer: %w", err)
	}

	svc := &Service{
		cfg:         cfg,
		store:       st,
		validate:    validateCfg,
		scanner:     sc,
		indexer:     indexer,
		bootstrap:   orchestrator,
		reconciler:  reconciler,
		watcher:     watcher,
		embedder:    embedder,
		vectorCache: vectorCache,
		fullText:    fullText,
		graph:       graph,
		resolver:    resolver,
		optimizer:   optimizer,
		neighbors:   &neighbor.Expander{Store: st, Width: cfg.Query.NeighborWidth},
		boostCfg:    boost.Rules{PathPrefixes: cfg.Boost.PathPrefixes, Languages: cfg.Boost.Languages},
		estimator:   render.CharEstimator{},
		metrics:     metrics.New(),
	}
	svc.hybrid = buildHybrid(cfg, svc)
	return svc, nil
}

// buildValidateConfig composes the ignore matcher, extension/skip/include
// filters, binary detector, and symlink resolver into one validate.Config,
// per spec §4.5. The ignore matcher reads per-directory ignore files
// (.contextignore/.gitignore/.dockerignore) from the first watch root only;
// a config with multiple watch roots under unrelated trees is expected to
// supply cross-root ignores via watcher.ignore instead.
func buildValidateConfig(cfg *engconfig.Config) (*validate.Config, error) {
	root := "."
	if len(cfg.Watcher.Paths) > 0 {
		root = cfg.Watcher.Paths[0]
	}
	matcher, err := ignore.New(root, cfg.Watcher.Ignore)
	if err != nil {
		return nil, fmt.Errorf("failed to build ignore matcher: %w", err)
	}

	mode := filter.ExtensionModeNone
	extensions := cfg.Indexing.BlockedExtensions
	if len(cfg.Indexing.AllowedExtensions) > 0 {
		mode = filter.ExtensionModeAllow
		extensions = cfg.Indexing.AllowedExtensions
	} else if len(cfg.Indexing.BlockedExtensions) > 0 {
		mode = filter.ExtensionModeBlock
	}

	exceptions := make([]validate.SizeException, 0, len(cfg.Indexing.SizeLimitException))
	for _, e := range cfg.Indexing.SizeLimitException {
		if strings.HasPrefix(e, "*") {
			exceptions = append(exceptions, validate.SizeException{Suffix: strings.TrimPrefix(e, "*")})
		} else {
			exceptions = append(exceptions, validate.SizeException{Filename: e})
		}
	}

	return &validate.Config{
		WatchRoots:      cfg.Watcher.Paths,
		IgnoreMatcher:   matcher,
		ExtensionFilter: filter.NewExtensionFilter(mode, extensions),
		SkipFilter:      filter.NewSkipFilter(cfg.Indexing.SkipGlobs),
		IncludeFilter:   filter.NewIncludeFilter(cfg.Indexing.IncludePaths),
		BinaryDetector:  binaryd.New(),
		SymlinkResolver: fsresolve.NewResolver(cfg.Watcher.Paths, cfg.Security.MaxSymlinkDepth),
		FollowSymlinks:  cfg.Security.FollowSymlinks,
		MaxFileSizeMB:   cfg.Indexing.MaxFileSizeMB,
		SizeExceptions:  exceptions,
	}, nil
}

// buildEmbedder constructs C10's embedding provider. Only the "local"
// subprocess provider is implemented; any other cfg.Embedding.Provider
// value is rejected rather than silently falling back, since a wrong
// embedder silently produces wrong-dimension vectors the store would
// otherwise accept.
func buildEmbedder(cfg *engconfig.Config) (embedclient.Provider, error) {
	if cfg.Embedding.Provider != "local" {
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Embedding.Provider)
	}
	port := 8121
	if u, err := url.Parse(cfg.Embedding.Endpoint); err == nil && u.Port() != "" {
		if p, err := parsePort(u.Port()); err == nil {
			port = p
		}
	}
	return embedclient.NewLocalProvider(cfg.Embedding.BinaryPath, port, cfg.Embedding.Dimensions), nil
}

func parsePort(s string) (int, error) {
	var port int
	_, err := fmt.Sscanf(s, "%d", &port)
	return port, err
}

// buildHybrid wires the configured, weighted subset of C15's providers
// into C16's fan-out, in the order providers.enabled names them.
func buildHybrid(cfg *engconfig.Config, svc *Service) *fusion.Hybrid {
	available := map[string]provider.Provider{
		"semantic": &provider.SemanticProvider{Embeddings: svc.embedder, Cache: svc.vectorCache, DefaultK: cfg.Query.DefaultK},
		"symbol":   &provider.SymbolProvider{Store: svc.store, DefaultK: cfg.Query.DefaultK},
		"fulltext": svc.fullText,
		"git-history": &provider.GitHistoryProvider{
			Store:      svc.store,
			Reader:     provider.NewExecHistoryReader(),
			RepoPath:   firstOrDot(cfg.Watcher.Paths),
			MaxCommits: cfg.Providers.MaxCommits,
			DefaultK:   cfg.Query.DefaultK,
		},
	}

	weighted := make([]fusion.Weighted, 0, len(cfg.Providers.Enabled))
	for _, name := range cfg.Providers.Enabled {
		p, ok := available[name]
		if !ok {
			continue
		}
		weight := 1.0
		if w, ok := cfg.Providers.Weights[name]; ok {
			weight = w
		}
		weighted = append(weighted, fusion.Weighted{Provider: p, Weight: weight})
	}
	return fusion.New(weighted)
}

func firstOrDot(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	return paths[0]
}

// mustRelativePath converts abs to a path relative to whichever root
// contains it, falling back to abs itself if no root matches (the
// caller already validated the path lies under a watch root before
// reaching here).
func mustRelativePath(roots []string, abs string) string {
	for _, root := range roots {
		if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(abs)
}

// Start runs the one-shot startup sequence of spec §9: resume or run
// the bootstrap sweep, reconcile against the live filesystem, rebuild
// the semantic/full-text/graph caches, then begin watching for changes.
// The provided ctx governs only the watcher's lifetime; bootstrap and
// reconcile always run to completion.
func (s *Service) Start(ctx context.Context) error {
	if err := s.bootstrap.Run(context.Background()); err != nil {
		return fmt.Errorf("service: bootstrap failed: %w", err)
	}
	if _, err := s.reconciler.Run(context.Background()); err != nil {
		return fmt.Errorf("service: reconcile failed: %w", err)
	}
	if err := s.reloadCaches(context.Background()); err != nil {
		return fmt.Errorf("service: initial cache reload failed: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.watchCtx = watchCtx
	s.cancel = cancel
	s.mu.Unlock()

	return s.watcher.Start(watchCtx, s.applyBatch)
}

// applyBatch is the watcher's BatchFunc. A batch carries only coalesced
// paths, not the event kind that triggered them (a path debounced across
// create/modify/delete collapses to one entry), so each path is
// classified here by statting it: present means (re)index it, absent
// means soft-delete it. detectImplicitDeletions is false on the
// indexer.Update call since a watch batch is never a complete directory
// listing the way a bootstrap or reconcile scan is.
func (s *Service) applyBatch(b watch.Batch) {
	ctx := s.backgroundCtx()

	toIndex := make(map[string]string, len(b.Paths))
	for _, abs := range b.Paths {
		rel := mustRelativePath(s.validate.WatchRoots, abs)
		if _, err := os.Stat(abs); err != nil {
			if fs, ferr := store.GetFileStateByPath(s.store.DB(), rel); ferr == nil && fs != nil {
				_ = s.store.WithWriteTx(func(tx *sql.Tx) error {
					return store.SoftDeleteFileState(tx, fs.ID)
				})
			}
			continue
		}
		toIndex[rel] = abs
	}

	if len(toIndex) > 0 {
		result, err := s.indexer.Update(ctx, toIndex, false, nil)
		if err == nil {
			for _, rel := range append(append([]string{}, result.New...), result.Modified...) {
				_ = s.relinkFile(rel)
			}
		}
	}

	_ = s.reloadCaches(ctx)
}

func (s *Service) backgroundCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCtx != nil {
		return s.watchCtx
	}
	return context.Background()
}

// relinkFile rebuilds relPath's outgoing call/reference links from its
// current symbols and chunk content, per C9's linking responsibility.
func (s *Service) relinkFile(relPath string) error {
	fs, err := store.GetFileStateByPath(s.store.DB(), relPath)
	if err != nil || fs == nil {
		return err
	}

	symbols, err := store.ListSymbolsByFile(s.store.DB(), fs.ID)
	if err != nil {
		return err
	}
	chunks, err := store.ListChunksByFile(s.store.DB(), fs.ID)
	if err != nil {
		return err
	}
	chunkContent := make(map[string]string, len(chunks))
	for _, c := range chunks {
		chunkContent[c.ID] = c.Content
	}

	links, err := linker.BuildLinks(symbols, chunkContent, s.resolver)
	if err != nil {
		return err
	}

	return s.store.WithWriteTx(func(tx *sql.Tx) error {
		return linker.ReplaceForFile(tx, fs.ID, links)
	})
}

// reloadCaches rebuilds the semantic cache, full-text index, and
// call/reference graph from the store's current contents. Both caches
// are rebuilt wholesale rather than patched incrementally, per C11's
// design.
func (s *Service) reloadCaches(ctx context.Context) error {
	rows, err := store.ListChunksForReload(s.store.DB())
	if err != nil {
		return fmt.Errorf("failed to list chunks for reload: %w", err)
	}

	cached := make([]store.CachedChunk, 0, len(rows))
	indexed := make([]provider.IndexedChunk, 0, len(rows))
	for _, r := range rows {
		if r.Vector != nil {
			cached = append(cached, store.CachedChunk{
				ChunkID: r.ChunkID, FilePath: r.FilePath, Kind: r.Kind, Text: r.Content,
				Vector: r.Vector, StartLine: r.StartLine, EndLine: r.EndLine,
			})
		}
		indexed = append(indexed, provider.IndexedChunk{
			ChunkID: r.ChunkID, FilePath: r.FilePath, Kind: r.Kind, Language: r.Language,
			Text: r.Content, StartLine: r.StartLine, EndLine: r.EndLine,
		})
	}

	if err := s.vectorCache.Reload(ctx, cached); err != nil {
		return fmt.Errorf("failed to reload vector cache: %w", err)
	}
	if err := s.fullText.Reload(ctx, indexed); err != nil {
		return fmt.Errorf("failed to reload full-text index: %w", err)
	}
	if err := s.graph.Reload(s.store.DB()); err != nil {
		return fmt.Errorf("failed to reload call graph: %w", err)
	}
	return nil
}

// Query runs the full retrieval pipeline of spec §9's query flow
// (C15→C16→C18→C20→C17→C19→C21) and returns the rendered
// project_context document.
func (s *Service) Query(ctx context.Context, text string, k int, filters provider.Filters) (string, error) {
	started := time.Now()
	if k <= 0 {
		k = s.cfg.Query.DefaultK
	}

	fused, err := s.hybrid.GetContext(ctx, provider.Query{Text: text, K: k, Filters: filters})
	if err != nil {
		return "", fmt.Errorf("service: provider fan-out failed: %w", err)
	}

	fused = s.applyBoost(fused)

	budgetSignature := fmt.Sprintf("k=%d;maxtok=%d", k, s.cfg.Budget.MaxTokens)
	optimized, err := s.optimizer.Optimize(ctx, text, budgetSignature, fused)
	if err != nil {
		return "", fmt.Errorf("service: query optimization failed: %w", err)
	}

	seeds := make([]provider.Snippet, len(optimized))
	for i, f := range optimized {
		snip := f.Snippet
		snip.Score = f.Score
		seeds[i] = snip
	}

	expanded, err := s.neighbors.Expand(ctx, seeds)
	if err != nil {
		return "", fmt.Errorf("service: neighbor expansion failed: %w", err)
	}

	doc := render.Render(expanded, render.Params{
		Diagnostics: render.Diagnostics{
			ChunksConsidered: len(fused),
			TokensRequested:  s.cfg.Budget.MaxTokens,
			Duration:         time.Since(started),
		},
		MaxTokens: s.cfg.Budget.MaxTokens - s.cfg.Budget.ReserveTokens,
		Estimator: s.estimator,
	})

	s.metrics.QueryLatency.Observe(time.Since(started).Seconds())
	return doc, nil
}

// applyBoost rescores fused by C18's path/language multipliers and
// re-sorts descending, since a non-uniform multiplier can change
// relative order ahead of C20's threshold/rerank pass.
func (s *Service) applyBoost(fused []fusion.Fused) []fusion.Fused {
	snippets := make([]provider.Snippet, len(fused))
	for i, f := range fused {
		snip := f.Snippet
		snip.Score = f.Score
		snippets[i] = snip
	}
	boosted := boost.Apply(snippets, s.boostCfg)
	for i := range fused {
		fused[i].Score = boosted[i].Score
	}
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].Score > fused[j].Score })
	return fused
}

// Shutdown stops the watcher, snapshots current metrics into the
// store, and releases the embedding provider and store handle. It is
// safe to call even if Start was never called.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if err := s.watcher.Stop(); err != nil {
		return fmt.Errorf("service: failed to stop watcher: %w", err)
	}

	recordedAt := time.Now().UTC().Format(time.RFC3339)
	if err := s.metrics.Snapshot(s.store, recordedAt); err != nil {
		return fmt.Errorf("service: failed to snapshot metrics: %w", err)
	}

	s.optimizer.Close()
	if err := s.embedder.Close(); err != nil {
		return fmt.Errorf("service: failed to close embedder: %w", err)
	}
	return s.store.Close()
}
