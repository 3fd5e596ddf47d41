// Package validate composes the ignore matcher, filters, binary detector,
// and symlink resolver into the single validate(path) entry point of
// spec §4.5.
package validate

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mvp-joe/codegraphd/internal/binaryd"
	"github.com/mvp-joe/codegraphd/internal/filter"
	"github.com/mvp-joe/codegraphd/internal/fsresolve"
	"github.com/mvp-joe/codegraphd/internal/ignore"
)

// Reason enumerates validation rejection causes, per spec §4.5.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonPathTraversal         Reason = "PATH_TRAVERSAL"
	ReasonOutsideWatchPath      Reason = "OUTSIDE_WATCH_PATH"
	ReasonNotInIncludePaths     Reason = "NOT_IN_INCLUDE_PATHS"
	ReasonIgnoredByPattern      Reason = "IGNORED_BY_PATTERN"
	ReasonExtensionNotAllowed   Reason = "EXTENSION_NOT_ALLOWED"
	ReasonSkippedByPattern      Reason = "SKIPPED_BY_PATTERN"
	ReasonBinaryFile            Reason = "BINARY_FILE"
	ReasonSymlinkNotAllowed     Reason = "SYMLINK_NOT_ALLOWED"
	ReasonSymlinkEscape         Reason = "SYMLINK_ESCAPE"
	ReasonSymlinkLoopOrBroken   Reason = "SYMLINK_LOOP_OR_BROKEN"
	ReasonSizeLimitExceeded     Reason = "SIZE_LIMIT_EXCEEDED"
	ReasonIOError               Reason = "IO_ERROR"
)

// Result is the outcome of Validate: either Valid, or Invalid with a Reason.
type Result struct {
	Valid  bool
	Reason Reason
	Err    error // populated only for ReasonIOError
}

func valid() Result { return Result{Valid: true} }

func invalid(reason Reason) Result { return Result{Valid: false, Reason: reason} }

func ioError(err error) Result { return Result{Valid: false, Reason: ReasonIOError, Err: err} }

// SizeException exempts a filename or suffix from the size limit.
type SizeException struct {
	Filename string // exact basename match, empty to ignore
	Suffix   string // suffix match, empty to ignore
}

// Config holds everything Validate needs. It is intentionally a plain
// struct (not an interface) since path validation is pure per spec §8.
type Config struct {
	WatchRoots      []string
	IgnoreMatcher   *ignore.Matcher
	ExtensionFilter *filter.ExtensionFilter
	SkipFilter      *filter.SkipFilter
	IncludeFilter   *filter.IncludeFilter
	BinaryDetector  *binaryd.Detector
	SymlinkResolver *fsresolve.Resolver
	FollowSymlinks  bool
	MaxFileSizeMB   float64
	SizeExceptions  []SizeException
}

// Validate runs the full gate chain against an absolute path. Directories
// short-circuit to Valid — traversal/pruning control happens in the
// directory scanner (C6), not here.
func Validate(cfg *Config, absPath string) Result {
	if strings.Contains(filepath.ToSlash(absPath), "/../") || strings.HasSuffix(absPath, "/..") {
		return invalid(ReasonPathTraversal)
	}

	relPath, root, ok := relativeToAnyRoot(cfg.WatchRoots, absPath)
	if !ok {
		return invalid(ReasonOutsideWatchPath)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ioError(err)
		}
		return ioError(err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if !cfg.FollowSymlinks {
			return invalid(ReasonSymlinkNotAllowed)
		}
		resolved, rerr := cfg.SymlinkResolver.Resolve(absPath)
		if rerr != nil {
			switch rerr {
			case fsresolve.ErrSymlinkEscape:
				return invalid(ReasonSymlinkEscape)
			default:
				return invalid(ReasonSymlinkLoopOrBroken)
			}
		}
		resolvedInfo, serr := os.Stat(resolved)
		if serr != nil {
			return invalid(ReasonSymlinkLoopOrBroken)
		}
		info = resolvedInfo
		absPath = resolved
	}

	if info.IsDir() {
		return valid()
	}

	if cfg.IncludeFilter != nil && !cfg.IncludeFilter.Included(relPath) {
		return invalid(ReasonNotInIncludePaths)
	}

	if cfg.IgnoreMatcher != nil && cfg.IgnoreMatcher.Match(relPath) {
		return invalid(ReasonIgnoredByPattern)
	}

	if cfg.ExtensionFilter != nil && !cfg.ExtensionFilter.Allowed(relPath) {
		return invalid(ReasonExtensionNotAllowed)
	}

	if cfg.SkipFilter != nil && cfg.SkipFilter.Skipped(relPath) {
		return invalid(ReasonSkippedByPattern)
	}

	if exceeds, reason := checkSize(cfg, relPath, info.Size()); exceeds {
		return invalid(reason)
	}

	if cfg.BinaryDetector != nil {
		isBin, berr := cfg.BinaryDetector.IsBinary(absPath)
		if berr != nil {
			return ioError(berr)
		}
		if isBin {
			return invalid(ReasonBinaryFile)
		}
	}

	_ = root
	return valid()
}

func checkSize(cfg *Config, relPath string, size int64) (bool, Reason) {
	if cfg.MaxFileSizeMB <= 0 {
		return false, ReasonNone
	}
	base := filepath.Base(relPath)
	for _, ex := range cfg.SizeExceptions {
		if ex.Filename != "" && ex.Filename == base {
			return false, ReasonNone
		}
		if ex.Suffix != "" && strings.HasSuffix(relPath, ex.Suffix) {
			return false, ReasonNone
		}
	}
	maxBytes := int64(cfg.MaxFileSizeMB * 1024 * 1024)
	if size > maxBytes {
		return true, ReasonSizeLimitExceeded
	}
	return false, ReasonNone
}

func relativeToAnyRoot(roots []string, absPath string) (string, string, bool) {
	cleanPath := filepath.Clean(absPath)
	for _, root := range roots {
		cleanRoot := filepath.Clean(root)
		rel, err := filepath.Rel(cleanRoot, cleanPath)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..") {
			return filepath.ToSlash(rel), cleanRoot, true
		}
	}
	return "", "", false
}
