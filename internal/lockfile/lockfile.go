// Package lockfile prevents overlapping extraction runs with a temp-dir
// lock file. A lock left behind by a crashed run goes stale after a fixed
// age and is reclaimed.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// StaleAge is how old a lock file must be before it's treated as leftover
// from a crash.
const StaleAge = 5 * time.Minute

// Acquire takes the named lock. It returns a release function and whether
// the lock was obtained; ok=false means another instance holds it.
func Acquire(name string) (release func(), ok bool, err error) {
	dir := filepath.Join(os.TempDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, name+".lock")

	if info, statErr := os.Stat(path); statErr == nil {
		if time.Since(info.ModTime()) < StaleAge {
			return nil, false, nil
		}
		// Stale lock from a previous crash.
		os.Remove(path)
	}

	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid), 0o644); err != nil {
		return nil, false, fmt.Errorf("write lock file: %w", err)
	}
	return func() { os.Remove(path) }, true, nil
}
