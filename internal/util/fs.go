// Package util provides filesystem helpers shared by the import,
// conversion and sorting pipelines.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MoveFile renames src to dst, falling back to copy+remove when the two
// paths live on different filesystems. Parent directories of dst are
// created as needed.
func MoveFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source: %w", err)
	}
	return nil
}

// CopyFile copies src to dst atomically: the data is written to a
// temporary name in the destination directory and renamed into place,
// so a partial copy never replaces a valid existing file.
func CopyFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// ScopedDir is a temporary directory tied to one operation. Release
// removes it and everything under it on all exit paths.
type ScopedDir struct {
	Path string
}

// NewScopedDir creates a fresh directory under parent.
func NewScopedDir(parent, pattern string) (*ScopedDir, error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	path, err := os.MkdirTemp(parent, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	return &ScopedDir{Path: path}, nil
}

// Join returns a path inside the scoped directory.
func (d *ScopedDir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.Path}, elem...)...)
}

// Release removes the directory tree. Safe to call more than once.
func (d *ScopedDir) Release() {
	if d.Path != "" {
		os.RemoveAll(d.Path)
		d.Path = ""
	}
}

// RemoveEmptyDirs removes dir and its empty ancestors up to (not
// including) stop.
func RemoveEmptyDirs(dir, stop string) {
	for dir != stop && len(dir) > len(stop) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
