package binary

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Relocate moves the extracted binary to finalPath. A plain rename is tried
// first; when that fails (for example across devices), or src is a symlink,
// the file content is copied into a sibling temp file, synced and renamed into place. On failure
// finalPath is left untouched and a *RelocationError is returned.
func Relocate(src, finalPath string) error {
	fail := func(err error) error {
		return &RelocationError{Src: src, Dst: finalPath, Cause: err}
	}

	info, err := os.Lstat(src)
	if err != nil {
		return fail(fmt.Errorf("stat source: %w", err))
	}
	isLink := info.Mode()&os.ModeSymlink != 0
	if isLink {
		// A renamed link would dangle once its relative target is gone.
		if info, err = os.Stat(src); err != nil {
			return fail(fmt.Errorf("resolve source link: %w", err))
		}
	}
	if !info.Mode().IsRegular() {
		return fail(fmt.Errorf("source is not a regular file"))
	}

	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(fmt.Errorf("create dest dir: %w", err))
	}

	if !isLink {
		if err := os.Rename(src, finalPath); err == nil {
			return nil
		}
	}

	if err := copyAtomic(src, finalPath); err != nil {
		return fail(err)
	}
	return nil
}

// copyAtomic copies src next to dst and renames it over dst.
func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanupNeeded := true
	defer func() {
		tmp.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return fmt.Errorf("copy binary: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	return nil
}
