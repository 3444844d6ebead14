package fetcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/seanblong/repotutor/pkg/models"
)

// Fetcher turns a source reference into a bounded in-memory file set.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (models.FileSet, error)
}

// ErrInvalidReference means the source string could not be decomposed into
// owner/repo. It fails fast, before any network call.
var ErrInvalidReference = errors.New("invalid repository reference")

// UpstreamError is a non-success response from the source-hosting API.
// It is fatal only for the tree listing; per-file failures are skipped.
type UpstreamError struct {
	Status int
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Status, e.URL)
}

// DefaultMaxFiles caps how many files a fetch may return.
const DefaultMaxFiles = 100

// allowedExtensions is the allow-list of code, markup and data-serialization
// file types worth showing to the model.
var allowedExtensions = map[string]bool{
	".go":   true,
	".py":   true,
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".java": true,
	".rb":   true,
	".rs":   true,
	".c":    true,
	".cc":   true,
	".cpp":  true,
	".h":    true,
	".sh":   true,
	".md":   true,
	".rst":  true,
	".txt":  true,
	".yaml": true,
	".yml":  true,
	".json": true,
	".toml": true,
}

// allowed reports whether the path's extension is on the allow-list.
func allowed(path string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(path))]
}
