//go:build windows

package fsresolve

import (
	"os"
	"path/filepath"
)

// fileKey falls back to the normalized path on Windows, where a portable
// device+inode identity is not readily available via os.FileInfo.
func fileKey(path string, _ os.FileInfo) string {
	return filepath.Clean(path)
}
