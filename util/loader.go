package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ImageExtensions are the file types treated as classroom photos.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsImage reports whether path has one of ImageExtensions, ignoring case.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ListImages returns the image files directly inside dir, sorted by name.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []string: The image paths, joined with dir.
// - error: Error if the directory cannot be read.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImage(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(paths)
	return paths, nil
}

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return nil
}
