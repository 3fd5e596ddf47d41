// Package fsresolve resolves symlinks with a bounded depth, detecting loops
// and escapes from the set of allowed roots (spec §4.4).
package fsresolve

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// ErrSymlinkLoop indicates a path was visited twice during one resolution.
var ErrSymlinkLoop = errors.New("fsresolve: symlink loop detected")

// ErrSymlinkEscape indicates the resolved target falls outside every
// allowed root.
var ErrSymlinkEscape = errors.New("fsresolve: symlink escapes allowed roots")

// ErrDepthExceeded indicates more than MaxDepth hops were required.
var ErrDepthExceeded = errors.New("fsresolve: max symlink depth exceeded")

// Resolver resolves symlinks hop-by-hop, bounded by MaxDepth, and records
// successfully-followed inodes to prevent re-traversal across a scan.
type Resolver struct {
	AllowedRoots []string
	MaxDepth     int

	mu      sync.Mutex
	visited map[string]struct{}
}

// NewResolver creates a Resolver. A MaxDepth of 0 defaults to 3 per spec §4.4.
func NewResolver(allowedRoots []string, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	clean := make([]string, len(allowedRoots))
	for i, r := range allowedRoots {
		clean[i] = filepath.Clean(r)
	}
	return &Resolver{
		AllowedRoots: clean,
		MaxDepth:     maxDepth,
		visited:      make(map[string]struct{}),
	}
}

// Resolve follows path's symlink chain, returning the final real path.
// Each hop's parent resolution is normalized before the next read, a loop
// within a single resolution call (the same path visited twice) fails with
// ErrSymlinkLoop, and a target outside every allowed root fails with
// ErrSymlinkEscape.
func (r *Resolver) Resolve(path string) (string, error) {
	seen := make(map[string]struct{})
	current := filepath.Clean(path)

	for depth := 0; ; depth++ {
		if depth > r.MaxDepth {
			return "", ErrDepthExceeded
		}

		if _, dup := seen[current]; dup {
			return "", ErrSymlinkLoop
		}
		seen[current] = struct{}{}

		info, err := os.Lstat(current)
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink == 0 {
			if !r.withinAllowedRoots(current) {
				return "", ErrSymlinkEscape
			}
			r.markFollowed(current, info)
			return current, nil
		}

		target, err := os.Readlink(current)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		current = filepath.Clean(target)
	}
}

func (r *Resolver) withinAllowedRoots(path string) bool {
	if len(r.AllowedRoots) == 0 {
		return true
	}
	for _, root := range r.AllowedRoots {
		if path == root || isSubPath(root, path) {
			return true
		}
	}
	return false
}

func isSubPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

// markFollowed records a resolved inode so later scan steps skip re-entry,
// keyed by a stable file identity when the platform exposes one, otherwise
// by normalized path.
func (r *Resolver) markFollowed(path string, info os.FileInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visited[fileKey(path, info)] = struct{}{}
}

// AlreadyFollowed reports whether path (or its underlying inode) was
// already resolved during this scan.
func (r *Resolver) AlreadyFollowed(path string, info os.FileInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.visited[fileKey(path, info)]
	return ok
}
