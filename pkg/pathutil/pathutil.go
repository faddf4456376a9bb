// Package pathutil provides the filesystem helpers shared by the
// downloader, the catalog worker, and the platform pipelines: parent
// directory creation with a fallback directory, home-relative expansion,
// and cross-device-safe file moves.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
)

// EnsureParentDir joins parts into a path and makes sure its parent
// directory exists. If creating it fails with a permission error and a
// fallback directory is supplied, the first path component is substituted
// with fallback and creation is retried once. Returns the resolved full
// path.
func EnsureParentDir(parts []string, fallback string) (string, error) {
	full := filepath.Join(parts...)
	dir := filepath.Dir(full)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		if !os.IsPermission(err) || fallback == "" {
			return "", fmt.Errorf("creating directory %s: %w", dir, err)
		}
		substituted := append([]string{fallback}, parts[1:]...)
		full = filepath.Join(substituted...)
		dir = filepath.Dir(full)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating fallback directory %s: %w", dir, err)
		}
	}
	return full, nil
}

// ExpandHome replaces a leading "~/" (or a bare "~") with home.
func ExpandHome(home, path string) string {
	if path == "~" {
		return home
	}
	if len(path) >= 2 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}

// Move relocates src to dest, falling back to a copy-then-remove whenever
// os.Rename fails (as it does with EXDEV when the two paths live on
// different devices).
func Move(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory for move destination %s: %w", dest, err)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := cp.Copy(src, dest); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dest, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing %s after move: %w", src, err)
	}
	return nil
}

// Exists reports whether path refers to an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SizeNonZero reports whether path exists and has non-zero size.
func SizeNonZero(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
