// Package iox provides I/O helpers for resource cleanup and file handoff.
package iox

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// RemoveIfExists removes path, treating an already-missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file in the target directory
// and renames it into place, so readers polling path never observe a
// partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		DiscardClose(tmp)
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		DiscardClose(tmp)
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
