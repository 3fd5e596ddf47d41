// Package ignore compiles gitignore-style pattern sets into a path matcher.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher tests relative paths against a compiled set of gitignore-style
// patterns. Rules (spec §4.1):
//   - "**" crosses directory boundaries, "*" and "?" do not.
//   - a trailing "/" implies "/**".
//   - a leading "/" anchors the pattern to the root.
//   - a pattern with no wildcards is expanded to both "P" and "P/**".
//   - matching is case-insensitive by default.
type Matcher struct {
	rules          []rule
	caseSensitive  bool
}

type rule struct {
	g        glob.Glob
	source   string
	anchored bool
}

// Option configures Matcher construction.
type Option func(*Matcher)

// CaseSensitive makes matching case-sensitive (default is case-insensitive).
func CaseSensitive() Option {
	return func(m *Matcher) { m.caseSensitive = true }
}

// New compiles patterns in order: explicit config patterns first, then any
// ignore files discovered under root (.contextignore, .gitignore,
// .dockerignore), matching spec §4.1's combination order.
func New(root string, configPatterns []string, opts ...Option) (*Matcher, error) {
	m := &Matcher{}
	for _, opt := range opts {
		opt(m)
	}

	all := append([]string{}, configPatterns...)
	for _, name := range []string{".contextignore", ".gitignore", ".dockerignore"} {
		lines, err := readIgnoreFile(filepath.Join(root, name))
		if err != nil {
			return nil, err
		}
		all = append(all, lines...)
	}

	for _, pat := range all {
		if err := m.add(pat); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewFromPatterns compiles a matcher from an explicit pattern list only,
// without reading any ignore files from disk. Useful for the skip-glob gate
// in internal/filter which reuses the same expansion rules.
func NewFromPatterns(patterns []string, opts ...Option) (*Matcher, error) {
	m := &Matcher{}
	for _, opt := range opts {
		opt(m)
	}
	for _, pat := range patterns {
		if err := m.add(pat); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func readIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// add expands one pattern into one or more glob.Glob rules per spec §4.1.
func (m *Matcher) add(pattern string) error {
	if pattern == "" {
		return nil
	}

	anchored := strings.HasPrefix(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	if strings.HasSuffix(pattern, "/") {
		pattern = strings.TrimSuffix(pattern, "/") + "/**"
	}

	expanded := []string{pattern}
	if !strings.ContainsAny(pattern, "*?[") {
		expanded = []string{pattern, pattern + "/**"}
	}

	for _, p := range expanded {
		// gobwas treats "**/" literally, so an unanchored pattern is
		// compiled both at the root and under any directory.
		forms := []string{p}
		if !anchored {
			if strings.HasPrefix(p, "**/") {
				forms = append(forms, strings.TrimPrefix(p, "**/"))
			} else {
				forms = append(forms, "**/"+p)
			}
		}
		for _, full := range forms {
			if !m.caseSensitive {
				full = strings.ToLower(full)
			}
			g, err := glob.Compile(full, '/')
			if err != nil {
				return err
			}
			m.rules = append(m.rules, rule{g: g, source: pattern, anchored: anchored})
		}
	}
	return nil
}

// Match reports whether relPath (slash-separated, relative to root) is
// ignored. Both the absolute-normalized relative path and the filename-only
// form are tested, per spec §4.1; root-anchored rules test the full path only.
func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	name := filepath.Base(relPath)

	test := relPath
	testName := name
	if !m.caseSensitive {
		test = strings.ToLower(relPath)
		testName = strings.ToLower(name)
	}

	for _, r := range m.rules {
		if r.g.Match(test) || (!r.anchored && r.g.Match(testName)) {
			return true
		}
	}
	return false
}

// Empty reports whether the matcher has no compiled rules.
func (m *Matcher) Empty() bool {
	return len(m.rules) == 0
}
