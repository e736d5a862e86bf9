package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archivecrawl/crawler/pkg/failure"
)

// GetFileExtension returns path's extension without its leading dot, or ""
// if path has none. Used to pick an asset's on-disk suffix from its
// source URL path.
func GetFileExtension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// EnsureDir creates dir joined with the optional path segments, including
// any missing parents, and is a no-op if the directory already exists.
// Crawl output (exports, assets) is written underneath directories created
// this way rather than assumed to pre-exist.
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	segments := append([]string{dir}, path...)
	target := filepath.Join(segments...)

	if err := os.MkdirAll(target, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}
