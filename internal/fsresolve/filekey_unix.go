//go:build !windows

package fsresolve

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// fileKey returns a stable identity for path: device+inode when the
// platform's os.FileInfo.Sys() exposes a *syscall.Stat_t, else the
// normalized path.
func fileKey(path string, info os.FileInfo) string {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return fmt.Sprintf("%d:%d", stat.Dev, stat.Ino)
	}
	return filepath.Clean(path)
}
