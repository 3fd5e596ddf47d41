package binaryd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentSniff_NullByte(t *testing.T) {
	assert.True(t, ContentSniff([]byte{'a', 0, 'b'}))
}

func TestContentSniff_PlainText(t *testing.T) {
	assert.False(t, ContentSniff([]byte("package main\n\nfunc main() {}\n")))
}

func TestContentSniff_LowPrintableDensity(t *testing.T) {
	buf := make([]byte, 100)
	for i := range buf {
		buf[i] = 1 // control byte, non-printable, valid UTF-8 rune
	}
	assert.True(t, ContentSniff(buf))
}

func TestDetector_IsBinary_Extension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(path, []byte("not really png but ext rules"), 0o644))

	d := New()
	bin, err := d.IsBinary(path)
	require.NoError(t, err)
	assert.True(t, bin)
}

func TestDetector_IsBinary_TextSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	d := New()
	bin, err := d.IsBinary(path)
	require.NoError(t, err)
	assert.False(t, bin)
}
