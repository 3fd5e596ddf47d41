// Package bootstrap implements the initial, prioritized, resumable sweep
// of spec §4.13: resume from bootstrap_progress if present, otherwise
// scan + prioritize + persist PENDING rows before handing off to the
// incremental indexer.
package bootstrap

import (
	"path/filepath"
	"sort"
	"strings"
)

const (
	oversizedBytes = 2 * 1024 * 1024
	smallBytes     = 10 * 1024
)

// sizeBand ranks oversized lowest, small files highest, per spec §4.13.
type sizeBand int

const (
	bandSmall sizeBand = iota
	bandNormal
	bandOversized
)

func bandFor(size int64) sizeBand {
	switch {
	case size > oversizedBytes:
		return bandOversized
	case size < smallBytes:
		return bandSmall
	default:
		return bandNormal
	}
}

// category ranks file kinds sources > docs > configs > data > web >
// scripts > notebooks, per spec §4.13.
type category int

const (
	categorySource category = iota
	categoryDoc
	categoryConfig
	categoryData
	categoryWeb
	categoryScript
	categoryNotebook
	categoryOther
)

var extensionCategory = map[string]category{
	".go": categorySource, ".py": categorySource, ".js": categorySource,
	".ts": categorySource, ".java": categorySource, ".rs": categorySource,
	".c": categorySource, ".cpp": categorySource, ".rb": categorySource,

	".md": categoryDoc, ".rst": categoryDoc, ".txt": categoryDoc,

	".yaml": categoryConfig, ".yml": categoryConfig, ".toml": categoryConfig,
	".json": categoryConfig, ".ini": categoryConfig,

	".csv": categoryData, ".tsv": categoryData, ".parquet": categoryData,

	".html": categoryWeb, ".css": categoryWeb,

	".sh": categoryScript, ".bash": categoryScript,

	".ipynb": categoryNotebook,
}

// specialFilenames get fixed category ranks regardless of extension.
var specialFilenames = map[string]category{
	"Dockerfile": categoryConfig,
	"Makefile":   categoryConfig,
	"README.md":  categoryDoc,
}

func categoryFor(path string) category {
	base := filepath.Base(path)
	if c, ok := specialFilenames[base]; ok {
		return c
	}
	ext := strings.ToLower(filepath.Ext(path))
	if c, ok := extensionCategory[ext]; ok {
		return c
	}
	return categoryOther
}

// Candidate is one path awaiting prioritization.
type Candidate struct {
	Path      string
	SizeBytes int64
	ScanOrder int
}

// Prioritizer orders candidates deterministically per spec §4.13: by size
// band, then category (with priority-extension membership breaking
// ties within a category), then ascending size, then original scan order.
type Prioritizer struct {
	PriorityExtensions map[string]bool
}

// Prioritize returns candidates sorted most-important-first. The input
// slice is not mutated.
func (p *Prioritizer) Prioritize(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ba, bb := bandFor(a.SizeBytes), bandFor(b.SizeBytes); ba != bb {
			return ba < bb
		}
		ca, cb := categoryFor(a.Path), categoryFor(b.Path)
		if ca != cb {
			return ca < cb
		}
		pa, pb := p.isPriority(a.Path), p.isPriority(b.Path)
		if pa != pb {
			return pa
		}
		if a.SizeBytes != b.SizeBytes {
			return a.SizeBytes < b.SizeBytes
		}
		return a.ScanOrder < b.ScanOrder
	})
	return out
}

func (p *Prioritizer) isPriority(path string) bool {
	if p.PriorityExtensions == nil {
		return false
	}
	return p.PriorityExtensions[strings.ToLower(filepath.Ext(path))]
}
