package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repotutor/pkg/models"
)

// HTTPDoer issues HTTP requests; satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var repoPattern = regexp.MustCompile(`github\.com/([^/\s]+)/([^/\s]+)`)

// ParseRepoURL extracts owner and repo from a GitHub URL.
func ParseRepoURL(source string) (owner, repo string, err error) {
	m := repoPattern.FindStringSubmatch(source)
	if m == nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidReference, source)
	}
	repo = strings.TrimSuffix(m[2], ".git")
	return m[1], repo, nil
}

// GithubFetcher obtains a repository's recursive file tree from the GitHub
// REST API, filters it, and fetches the surviving blobs' contents with a
// bounded worker pool.
type GithubFetcher struct {
	Token    string
	BaseURL  string
	HTTP     HTTPDoer
	Workers  int
	MaxFiles int
}

// NewGithubFetcher creates a fetcher against api.github.com. The token is
// optional; without it, only public repositories are reachable.
func NewGithubFetcher(token string) *GithubFetcher {
	return &GithubFetcher{
		Token:    token,
		BaseURL:  "https://api.github.com",
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		Workers:  4,
		MaxFiles: DefaultMaxFiles,
	}
}

type repoResponse struct {
	DefaultBranch string `json:"default_branch"`
}

type treeResponse struct {
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

type treeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Fetch lists the repository's full recursive tree on its default branch,
// filters to allow-listed blobs capped at MaxFiles, and fetches each file's
// content. Individual file failures are skipped; only a failure to obtain
// the tree is fatal.
func (f *GithubFetcher) Fetch(ctx context.Context, source string) (models.FileSet, error) {
	owner, repo, err := ParseRepoURL(source)
	if err != nil {
		return nil, err
	}

	var meta repoResponse
	if err := f.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", f.BaseURL, owner, repo), &meta); err != nil {
		return nil, err
	}
	branch := meta.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	var tree treeResponse
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", f.BaseURL, owner, repo, branch)
	if err := f.getJSON(ctx, url, &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		log.Warn().Str("repo", owner+"/"+repo).Msg("tree listing truncated by upstream")
	}

	paths := filterTree(tree.Tree, f.maxFiles())
	log.Info().Str("repo", owner+"/"+repo).Str("branch", branch).Int("files", len(paths)).Msg("fetching file contents")

	return f.fetchContents(ctx, owner, repo, paths), nil
}

func (f *GithubFetcher) maxFiles() int {
	if f.MaxFiles > 0 {
		return f.MaxFiles
	}
	return DefaultMaxFiles
}

// filterTree keeps blob entries with allow-listed extensions, capped at max.
// Ordering is whatever the upstream API returned.
func filterTree(entries []treeEntry, max int) []string {
	var paths []string
	for _, e := range entries {
		if e.Type != "blob" {
			continue
		}
		if !allowed(e.Path) {
			continue
		}
		paths = append(paths, e.Path)
		if len(paths) >= max {
			break
		}
	}
	return paths
}

// fetchContents retrieves each path's content with a bounded worker pool.
// Results keep listing order; failed files are dropped.
func (f *GithubFetcher) fetchContents(ctx context.Context, owner, repo string, paths []string) models.FileSet {
	type slot struct {
		file models.RepoFile
		ok   bool
	}

	workers := f.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	results := make([]slot, len(paths))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				content, err := f.fetchFile(ctx, owner, repo, paths[i])
				if err != nil {
					log.Warn().Err(err).Str("path", paths[i]).Msg("skipping file")
					continue
				}
				results[i] = slot{file: models.RepoFile{Path: paths[i], Content: content}, ok: true}
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	files := make(models.FileSet, 0, len(paths))
	for _, s := range results {
		if s.ok {
			files = append(files, s.file)
		}
	}
	return files
}

// fetchFile retrieves one blob's content; upstream delivers it base64-encoded.
func (f *GithubFetcher) fetchFile(ctx context.Context, owner, repo, path string) (string, error) {
	var out contentResponse
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", f.BaseURL, owner, repo, path)
	if err := f.getJSON(ctx, url, &out); err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(out.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return string(raw), nil
}

func (f *GithubFetcher) getJSON(ctx context.Context, url string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if f.Token != "" {
		req.Header.Set("Authorization", "token "+f.Token)
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Status: resp.StatusCode, URL: url}
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
