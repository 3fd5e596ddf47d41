package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/codegraphd/internal/binaryd"
	"github.com/mvp-joe/codegraphd/internal/filter"
	"github.com/mvp-joe/codegraphd/internal/fsresolve"
	"github.com/mvp-joe/codegraphd/internal/ignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(t *testing.T, root string) *Config {
	t.Helper()
	m, err := ignore.NewFromPatterns(nil)
	require.NoError(t, err)
	return &Config{
		WatchRoots:      []string{root},
		IgnoreMatcher:   m,
		ExtensionFilter: filter.NewExtensionFilter(filter.ExtensionModeAllow, []string{"go", "md"}),
		BinaryDetector:  binaryd.New(),
		SymlinkResolver: fsresolve.NewResolver([]string{root}, 3),
		MaxFileSizeMB:   1,
	}
}

func TestValidate_OutsideWatchRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	cfg := baseConfig(t, root)

	path := filepath.Join(other, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0o644))

	res := Validate(cfg, path)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonOutsideWatchPath, res.Reason)
}

func TestValidate_ExtensionNotAllowed(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(t, root)

	path := filepath.Join(root, "script.py")
	require.NoError(t, os.WriteFile(path, []byte("print(1)"), 0o644))

	res := Validate(cfg, path)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonExtensionNotAllowed, res.Reason)
}

func TestValidate_BinaryFile(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(t, root)
	cfg.ExtensionFilter = nil

	path := filepath.Join(root, "image.png")
	require.NoError(t, os.WriteFile(path, []byte{0, 1, 2, 3}, 0o644))

	res := Validate(cfg, path)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonBinaryFile, res.Reason)
}

func TestValidate_SizeLimitExceeded(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(t, root)

	path := filepath.Join(root, "big.go")
	big := make([]byte, 2*1024*1024)
	require.NoError(t, os.WriteFile(path, big, 0o644))

	res := Validate(cfg, path)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonSizeLimitExceeded, res.Reason)
}

func TestValidate_ValidFile(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(t, root)

	path := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	res := Validate(cfg, path)
	assert.True(t, res.Valid)
}

func TestValidate_DirectoryShortCircuits(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(t, root)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))

	res := Validate(cfg, sub)
	assert.True(t, res.Valid)
}

func TestValidate_Pure(t *testing.T) {
	root := t.TempDir()
	cfg := baseConfig(t, root)
	path := filepath.Join(root, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	a := Validate(cfg, path)
	b := Validate(cfg, path)
	assert.Equal(t, a, b)
}
