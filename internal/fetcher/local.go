package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/repotutor/pkg/models"
)

// FileSystemWalker defines the interface for walking directories.
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files.
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk.
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os.
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// LocalFetcher walks a local directory, applying the same extension
// allow-list and file cap as the repository fetcher.
type LocalFetcher struct {
	MaxFiles int
	Walker   FileSystemWalker
	Reader   FileReader
}

// NewLocalFetcher creates a directory fetcher.
func NewLocalFetcher(maxFiles int) *LocalFetcher {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &LocalFetcher{
		MaxFiles: maxFiles,
		Walker:   &DefaultFileSystemWalker{},
		Reader:   &DefaultFileReader{},
	}
}

// errLimitReached halts the walk once the file cap is hit.
var errLimitReached = errors.New("file limit reached")

// Fetch walks the directory and collects allow-listed files, skipping
// vendored and build trees. Unreadable files are logged and skipped.
func (f *LocalFetcher) Fetch(ctx context.Context, source string) (models.FileSet, error) {
	var files models.FileSet

	err := f.Walker.Walk(source, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if de != nil && de.IsDir() {
				if shouldSkipDir(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !allowed(path) || shouldSkipDir(path) {
				return nil
			}

			b, err := f.Reader.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}

			files = append(files, models.RepoFile{Path: rel(source, path), Content: string(b)})
			if len(files) >= f.MaxFiles {
				return errLimitReached
			}
			return nil
		},
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		return nil, err
	}
	return files, nil
}

// shouldSkipDir returns true for vendored, generated and tooling trees.
func shouldSkipDir(path string) bool {
	p := strings.ToLower(filepath.ToSlash(path)) + "/"
	for _, frag := range []string{
		"/vendor/", "/.git/", "/node_modules/", "/dist/", "/build/",
		"/target/", "/.venv/", "/venv/", "/__pycache__/", "/.idea/",
	} {
		if strings.Contains(p, frag) {
			return true
		}
	}
	return false
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}
