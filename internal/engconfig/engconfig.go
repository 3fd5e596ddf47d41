// Package engconfig loads and validates the engine's TOML configuration
// surface (§6): watcher, indexing, embedding, chunking, query, budget,
// providers, bootstrap, security, and storage sections. Grounded on the
// teacher's internal/config package structure (a Config struct of
// per-concern sub-structs, a Default() constructor, and a separate
// validate.go of sentinel errors joined into one aggregate error), but
// loaded with github.com/pelletier/go-toml/v2 instead of viper/yaml,
// since the embedded-tool-config shape here calls for a small decoder
// that layers one file over defaults; there is no env or flag layer.
package engconfig

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the complete engine configuration.
type Config struct {
	Watcher   WatcherConfig   `toml:"watcher"`
	Indexing  IndexingConfig  `toml:"indexing"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Query     QueryConfig     `toml:"query"`
	Budget    BudgetConfig    `toml:"budget"`
	Providers ProvidersConfig `toml:"providers"`
	Boost     BoostConfig     `toml:"boost"`
	Bootstrap BootstrapConfig `toml:"bootstrap"`
	Security  SecurityConfig  `toml:"security"`
	Storage   StorageConfig   `toml:"storage"`
}

// WatcherConfig tunes C7's per-path debounce and batch windows.
type WatcherConfig struct {
	Paths         []string `toml:"paths"`
	Ignore        []string `toml:"ignore"`
	DebounceMS    int      `toml:"debounce_ms"`
	BatchWindowMS int      `toml:"batch_window_ms"`
}

// IndexingConfig gates which files C2/C12 admit and how hard C12 fans out.
type IndexingConfig struct {
	Workers            int      `toml:"workers"`
	AllowedExtensions  []string `toml:"allowed_extensions"`
	BlockedExtensions  []string `toml:"blocked_extensions"`
	SkipGlobs          []string `toml:"skip_globs"`
	IncludePaths       []string `toml:"include_paths"`
	MaxFileSizeMB      float64  `toml:"max_file_size_mb"`
	WarnFileSizeMB     float64  `toml:"warn_file_size_mb"`
	SizeLimitException []string `toml:"size_limit_exceptions"`
}

// EmbeddingConfig configures C10. Endpoint carries the loopback URL the
// local embedding server listens on once started; BinaryPath is the
// subprocess C10 launches to serve it.
type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	Endpoint   string `toml:"endpoint"`
	BinaryPath string `toml:"binary_path"`
	Normalize  bool   `toml:"normalize"`
	BatchSize  int    `toml:"batch_size"`
	CacheSize  int    `toml:"cache_size"`
}

// ChunkingConfig configures C8.
type ChunkingConfig struct {
	Strategies []string `toml:"strategies"`
	MaxTokens  int      `toml:"max_tokens"`
	Overlap    int      `toml:"overlap"`
}

// QueryConfig configures C16/C17/C19/C20.
type QueryConfig struct {
	DefaultK          int     `toml:"default_k"`
	MinScoreThreshold float64 `toml:"min_score_threshold"`
	RerankEnabled     bool    `toml:"rerank_enabled"`
	MMRLambda         float64 `toml:"mmr_lambda"`
	RRFK              int     `toml:"rrf_k"`
	CacheSize         int     `toml:"cache_size"`
	CacheTTLSeconds   int     `toml:"cache_ttl_seconds"`
	NeighborWidth     int     `toml:"neighbor_width"`
}

// BoostConfig configures C18's per-path and per-language multipliers.
type BoostConfig struct {
	PathPrefixes map[string]float64 `toml:"path_prefixes"`
	Languages    map[string]float64 `toml:"languages"`
}

// BudgetConfig bounds C21's rendered output.
type BudgetConfig struct {
	MaxTokens     int `toml:"max_tokens"`
	ReserveTokens int `toml:"reserve_tokens"`
}

// ProvidersConfig selects and weights C15's providers for C16's fan-out.
type ProvidersConfig struct {
	Enabled    []string           `toml:"enabled"`
	Weights    map[string]float64 `toml:"weights"`
	MaxCommits int                `toml:"max_commits"`
}

// KnownProviders lists every provider name the engine implements; used to
// validate ProvidersConfig.Enabled/Weights keys.
var KnownProviders = map[string]bool{
	"semantic":    true,
	"symbol":      true,
	"fulltext":    true,
	"git-history": true,
}

// BootstrapConfig holds C13's prioritizer settings. Only
// PriorityExtensions reaches the prioritizer; its size bands are fixed
// at 2 MiB and 10 KiB, and OversizedMB and SmallKB are not read.
type BootstrapConfig struct {
	PriorityExtensions []string `toml:"priority_extensions"`
	OversizedMB        float64  `toml:"oversized_mb"`
	SmallKB            float64  `toml:"small_kb"`
}

// SecurityConfig bounds C4/C5's symlink and traversal checks.
type SecurityConfig struct {
	FollowSymlinks  bool     `toml:"follow_symlinks"`
	MaxSymlinkDepth int      `toml:"max_symlink_depth"`
	RestrictedRoots []string `toml:"restricted_roots"`
}

// StorageConfig configures C11.
type StorageConfig struct {
	DBPath          string  `toml:"db_path"`
	CacheMaxAgeDays int     `toml:"cache_max_age_days"`
	CacheMaxSizeMB  float64 `toml:"cache_max_size_mb"`
}

// Default returns the configuration used when no TOML file is present.
func Default() *Config {
	return &Config{
		Watcher: WatcherConfig{
			DebounceMS:    300,
			BatchWindowMS: 1000,
		},
		Indexing: IndexingConfig{
			Workers:        4,
			MaxFileSizeMB:  10,
			WarnFileSizeMB: 2,
		},
		Embedding: EmbeddingConfig{
			Provider:   "local",
			Model:      "BAAI/bge-small-en-v1.5",
			Dimensions: 384,
			Endpoint:   "http://localhost:8121/embed",
			BinaryPath: "codegraph-embed",
			Normalize:  true,
			BatchSize:  32,
		},
		Chunking: ChunkingConfig{
			Strategies: []string{"symbols", "definitions", "data"},
			MaxTokens:  400,
			Overlap:    50,
		},
		Query: QueryConfig{
			DefaultK:          20,
			MinScoreThreshold: 0.1,
			RerankEnabled:     true,
			MMRLambda:         0.5,
			RRFK:              60,
			CacheSize:         256,
			CacheTTLSeconds:   300,
			NeighborWidth:     1,
		},
		Budget: BudgetConfig{
			MaxTokens:     8000,
			ReserveTokens: 500,
		},
		Providers: ProvidersConfig{
			Enabled: []string{"semantic", "symbol", "fulltext"},
			Weights: map[string]float64{
				"semantic":    1.0,
				"symbol":      0.8,
				"fulltext":    0.6,
				"git-history": 0.4,
			},
			MaxCommits: 200,
		},
		Bootstrap: BootstrapConfig{
			OversizedMB: 2,
			SmallKB:     10,
		},
		Security: SecurityConfig{
			MaxSymlinkDepth: 3,
			RestrictedRoots: []string{"/", "/etc", "/usr", "/bin", "/sbin"},
		},
		Storage: StorageConfig{
			DBPath: ".codegraph/index.db",
		},
	}
}

// Load reads path, merging its values over Default(), and validates the
// result. A missing file is not an error: defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if verr := Validate(cfg); verr != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", verr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("engconfig: failed to read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("engconfig: failed to parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("engconfig: invalid configuration: %w", err)
	}
	return cfg, nil
}
