// Package filter implements the three orthogonal path gates of spec §4.2:
// extension allow/block lists, skip-globs, and an include-paths allowlist.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ExtensionMode selects whether the configured extension list allows or
// blocks matching extensions.
type ExtensionMode int

const (
	// ExtensionModeNone disables the extension gate entirely.
	ExtensionModeNone ExtensionMode = iota
	ExtensionModeAllow
	ExtensionModeBlock
)

// ExtensionFilter canonicalizes extensions to a lowercase, leading-dot form
// and applies an allow or block list.
type ExtensionFilter struct {
	mode ExtensionMode
	set  map[string]struct{}
}

// NewExtensionFilter builds a filter from a raw extension list ("go", ".GO",
// "Go" all canonicalize the same way).
func NewExtensionFilter(mode ExtensionMode, extensions []string) *ExtensionFilter {
	set := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		set[Canonicalize(e)] = struct{}{}
	}
	return &ExtensionFilter{mode: mode, set: set}
}

// Canonicalize lowercases an extension and ensures a leading dot. This is
// the single normalization point referenced by SPEC_FULL.md's Open Question
// decision #2 — every caller in this module goes through it.
func Canonicalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ext
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Allowed reports whether relPath's extension passes the gate.
func (f *ExtensionFilter) Allowed(relPath string) bool {
	if f == nil || f.mode == ExtensionModeNone {
		return true
	}
	ext := Canonicalize(filepath.Ext(relPath))
	_, present := f.set[ext]
	switch f.mode {
	case ExtensionModeAllow:
		return present
	case ExtensionModeBlock:
		return !present
	default:
		return true
	}
}

// SkipFilter applies a skip-glob list *after* the extension gate. Simple
// patterns without "/" or "**" match filename only; patterns containing
// "**/" additionally try the bare suffix form.
type SkipFilter struct {
	patterns []string
}

// NewSkipFilter builds a skip filter from raw glob patterns.
func NewSkipFilter(patterns []string) *SkipFilter {
	return &SkipFilter{patterns: append([]string{}, patterns...)}
}

// Skipped reports whether relPath matches any configured skip-glob.
func (f *SkipFilter) Skipped(relPath string) bool {
	if f == nil || len(f.patterns) == 0 {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	name := filepath.Base(relPath)

	for _, p := range f.patterns {
		simple := !strings.ContainsAny(p, "/") || !strings.Contains(p, "**")
		if simple && !strings.Contains(p, "/") {
			if ok, _ := doublestar.Match(p, name); ok {
				return true
			}
			continue
		}
		if ok, _ := doublestar.Match(p, relPath); ok {
			return true
		}
		if strings.Contains(p, "**/") {
			suffix := strings.TrimPrefix(p, "**/")
			if ok, _ := doublestar.Match(suffix, relPath); ok {
				return true
			}
			if ok, _ := doublestar.Match(suffix, name); ok {
				return true
			}
		}
	}
	return false
}

// IncludeFilter is an optional allowlist of root-relative or parent-relative
// path prefixes. When empty, every path is admitted.
type IncludeFilter struct {
	roots []string
}

// NewIncludeFilter normalizes each configured root (which may use ".." to
// reach outside the project root) to a clean slash-form prefix.
func NewIncludeFilter(roots []string) *IncludeFilter {
	clean := make([]string, 0, len(roots))
	for _, r := range roots {
		clean = append(clean, filepath.ToSlash(filepath.Clean(r)))
	}
	return &IncludeFilter{roots: clean}
}

// Included reports whether relPath falls under one of the allowed roots.
func (f *IncludeFilter) Included(relPath string) bool {
	if f == nil || len(f.roots) == 0 {
		return true
	}
	relPath = filepath.ToSlash(filepath.Clean(relPath))
	for _, root := range f.roots {
		if root == "." || relPath == root || strings.HasPrefix(relPath, root+"/") {
			return true
		}
	}
	return false
}
