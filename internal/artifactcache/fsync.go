package artifactcache

import (
	"os"
	"path/filepath"
	"runtime"
)

// fsyncDir fsyncs the parent directory of path so that a rename into
// that directory is durable across a crash, not merely the renamed
// file's own contents. Directory fsync is not meaningful on Windows,
// so it is a no-op there.
func fsyncDir(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	dir, err := os.Open(filepath.Dir(path))
	if err != nil {
		return nil
	}
	defer dir.Close()
	return dir.Sync()
}
