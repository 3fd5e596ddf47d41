// Package scanner implements the iterative, pruning directory walk of
// spec §4.6.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mvp-joe/codegraphd/internal/validate"
)

// Scanner walks one or more roots, validating each node and pruning
// invalid directories.
type Scanner struct {
	Config   *validate.Config
	Parallel bool
}

// New creates a Scanner bound to the given validation config.
func New(cfg *validate.Config, parallel bool) *Scanner {
	return &Scanner{Config: cfg, Parallel: parallel}
}

// Scan walks every root in cfg.WatchRoots and returns a deduplicated,
// insertion-ordered list of validated file paths. A missing root is
// skipped; if every root is missing, Scan fails.
func (s *Scanner) Scan() ([]string, error) {
	roots := s.Config.WatchRoots
	if len(roots) == 0 {
		return nil, nil
	}

	if !s.Parallel || len(roots) == 1 {
		return s.scanSequential(roots)
	}
	return s.scanParallel(roots)
}

func (s *Scanner) scanSequential(roots []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	missing := 0

	for _, root := range roots {
		files, err := s.walkRoot(root)
		if err != nil {
			if os.IsNotExist(err) {
				missing++
				continue
			}
			return nil, err
		}
		for _, f := range files {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}

	if missing == len(roots) {
		return nil, fmt.Errorf("scanner: all %d watch roots are missing", len(roots))
	}
	return out, nil
}

func (s *Scanner) scanParallel(roots []string) ([]string, error) {
	type result struct {
		files []string
		err   error
	}
	results := make([]result, len(roots))

	var wg sync.WaitGroup
	for i, root := range roots {
		wg.Add(1)
		go func(i int, root string) {
			defer wg.Done()
			files, err := s.walkRoot(root)
			results[i] = result{files: files, err: err}
		}(i, root)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var out []string
	missing := 0
	for _, r := range results {
		if r.err != nil {
			if os.IsNotExist(r.err) {
				missing++
				continue
			}
			return nil, r.err
		}
		for _, f := range r.files {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	if missing == len(roots) {
		return nil, fmt.Errorf("scanner: all %d watch roots are missing", len(roots))
	}
	return out, nil
}

// stackEntry is one pending node in the iterative walk.
type stackEntry struct {
	path string
}

// walkRoot performs the iterative stack-based walk for a single root,
// pruning subtrees whose root node fails validation.
func (s *Scanner) walkRoot(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	var out []string
	visited := make(map[string]struct{})
	stack := []stackEntry{{path: root}}

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path := filepath.Clean(entry.path)
		if _, dup := visited[path]; dup {
			continue
		}
		visited[path] = struct{}{}

		info, err := os.Lstat(path)
		if err != nil {
			continue
		}

		res := validate.Validate(s.Config, path)
		if !res.Valid {
			if info.IsDir() {
				continue // prune subtree
			}
			continue // skip file
		}

		if info.IsDir() {
			entries, err := os.ReadDir(path)
			if err != nil {
				continue
			}
			for _, e := range entries {
				stack = append(stack, stackEntry{path: filepath.Join(path, e.Name())})
			}
			continue
		}

		out = append(out, path)
	}

	return out, nil
}
