package engconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrWatchPathMissing indicates a configured watch path does not exist
	// or is not a directory.
	ErrWatchPathMissing = errors.New("watch path does not exist or is not a directory")

	// ErrRestrictedRoot indicates a watch path resolves to a restricted
	// system root itself.
	ErrRestrictedRoot = errors.New("watch path is a restricted system root")

	// ErrInvalidExtension indicates an extension entry does not start
	// with a leading dot.
	ErrInvalidExtension = errors.New("extension must start with '.'")

	// ErrInvalidSizeThresholds indicates warn_file_size_mb is not below
	// max_file_size_mb.
	ErrInvalidSizeThresholds = errors.New("max_file_size_mb must be greater than warn_file_size_mb")

	// ErrInvalidLambda indicates mmr_lambda is outside [0,1].
	ErrInvalidLambda = errors.New("mmr_lambda must be within [0,1]")

	// ErrInvalidBudget indicates reserve_tokens exceeds max_tokens.
	ErrInvalidBudget = errors.New("reserve_tokens must not exceed max_tokens")

	// ErrUnknownProvider indicates a providers.enabled or providers.weights
	// entry names a provider the engine does not implement.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyModel indicates a missing embedding model.
	ErrEmptyModel = errors.New("embedding model is required")

	// ErrInvalidDimensions indicates non-positive embedding dimensions.
	ErrInvalidDimensions = errors.New("embedding dimensions must be positive")
)

// Validate checks cfg against every rule named in §6 and returns a single
// aggregate error describing every violation found.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateWatcher(&cfg.Watcher, &cfg.Security)...)
	errs = append(errs, validateIndexing(&cfg.Indexing)...)
	errs = append(errs, validateEmbedding(&cfg.Embedding)...)
	errs = append(errs, validateQuery(&cfg.Query)...)
	errs = append(errs, validateBudget(&cfg.Budget)...)
	errs = append(errs, validateProviders(&cfg.Providers)...)

	return joinErrors(errs)
}

func validateWatcher(cfg *WatcherConfig, sec *SecurityConfig) []error {
	var errs []error
	for _, p := range cfg.Paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("%w: %s", ErrWatchPathMissing, p))
			continue
		}
		if isRestrictedRoot(p, sec.RestrictedRoots) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrRestrictedRoot, p))
		}
	}
	return errs
}

func isRestrictedRoot(path string, restricted []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.Clean(abs)
	for _, r := range restricted {
		if filepath.Clean(r) == abs {
			return true
		}
	}
	return false
}

func validateIndexing(cfg *IndexingConfig) []error {
	var errs []error
	for _, ext := range cfg.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidExtension, ext))
		}
	}
	for _, ext := range cfg.BlockedExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidExtension, ext))
		}
	}
	if cfg.MaxFileSizeMB <= cfg.WarnFileSizeMB {
		errs = append(errs, fmt.Errorf("%w: max=%.2f warn=%.2f", ErrInvalidSizeThresholds, cfg.MaxFileSizeMB, cfg.WarnFileSizeMB))
	}
	return errs
}

func validateEmbedding(cfg *EmbeddingConfig) []error {
	var errs []error
	if strings.TrimSpace(cfg.Model) == "" {
		errs = append(errs, ErrEmptyModel)
	}
	if cfg.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidDimensions, cfg.Dimensions))
	}
	return errs
}

func validateQuery(cfg *QueryConfig) []error {
	var errs []error
	if cfg.MMRLambda < 0 || cfg.MMRLambda > 1 {
		errs = append(errs, fmt.Errorf("%w: got %.2f", ErrInvalidLambda, cfg.MMRLambda))
	}
	return errs
}

func validateBudget(cfg *BudgetConfig) []error {
	var errs []error
	if cfg.ReserveTokens > cfg.MaxTokens {
		errs = append(errs, fmt.Errorf("%w: reserve=%d max=%d", ErrInvalidBudget, cfg.ReserveTokens, cfg.MaxTokens))
	}
	return errs
}

func validateProviders(cfg *ProvidersConfig) []error {
	var errs []error
	for _, name := range cfg.Enabled {
		if !KnownProviders[name] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProvider, name))
		}
	}
	for name := range cfg.Weights {
		if !KnownProviders[name] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProvider, name))
		}
	}
	return errs
}

// joinErrors combines multiple errors into a single error with clear
// formatting, matching the aggregate-validation-error shape the teacher's
// config package uses. The result still unwraps to each underlying
// sentinel so callers can errors.Is against any one of them.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return &aggregateError{errs: errs}
}

type aggregateError struct {
	errs []error
}

func (a *aggregateError) Error() string {
	msgs := make([]string, 0, len(a.errs))
	for _, err := range a.errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration invalid:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (a *aggregateError) Unwrap() []error {
	return a.errs
}
