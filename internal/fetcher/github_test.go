package fetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		owner       string
		repo        string
		expectError bool
	}{
		{name: "https url", source: "https://github.com/acme/widgets", owner: "acme", repo: "widgets"},
		{name: "git suffix", source: "https://github.com/acme/widgets.git", owner: "acme", repo: "widgets"},
		{name: "bare host path", source: "github.com/acme/widgets", owner: "acme", repo: "widgets"},
		{name: "trailing path", source: "https://github.com/acme/widgets/tree/main/docs", owner: "acme", repo: "widgets"},
		{name: "not a github url", source: "https://gitlab.com/acme/widgets", expectError: true},
		{name: "missing repo", source: "https://github.com/acme", expectError: true},
		{name: "empty", source: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.source)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidReference) {
					t.Errorf("Expected ErrInvalidReference, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if owner != tt.owner || repo != tt.repo {
				t.Errorf("Expected %s/%s, got %s/%s", tt.owner, tt.repo, owner, repo)
			}
		})
	}
}

// countingDoer fails every request and counts how many were attempted.
type countingDoer struct {
	calls int32
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&d.calls, 1)
	return nil, errors.New("network disabled")
}

func TestGithubFetcherInvalidReferenceNoNetwork(t *testing.T) {
	doer := &countingDoer{}
	f := &GithubFetcher{BaseURL: "https://api.github.com", HTTP: doer, Workers: 2, MaxFiles: 10}

	_, err := f.Fetch(context.Background(), "not a repository at all")
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("Expected ErrInvalidReference, got %v", err)
	}
	if n := atomic.LoadInt32(&doer.calls); n != 0 {
		t.Errorf("Expected no network calls for an invalid reference, got %d", n)
	}
}

// newGithubAPIServer serves repo metadata, a recursive tree and per-file
// contents the way the GitHub REST API shapes them.
func newGithubAPIServer(t *testing.T, tree string, contents map[string]string, failPaths map[string]int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"default_branch":"main"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("recursive") != "1" {
			t.Errorf("Expected recursive=1 tree listing, got %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, tree)
	})
	mux.HandleFunc("/repos/acme/widgets/contents/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path[len("/repos/acme/widgets/contents/"):]
		if status, ok := failPaths[path]; ok {
			w.WriteHeader(status)
			return
		}
		content, ok := contents[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(content))
		fmt.Fprintf(w, `{"content":%q,"encoding":"base64"}`, encoded)
	})
	return httptest.NewServer(mux)
}

func newTestGithubFetcher(srv *httptest.Server) *GithubFetcher {
	return &GithubFetcher{
		BaseURL:  srv.URL,
		HTTP:     srv.Client(),
		Workers:  2,
		MaxFiles: DefaultMaxFiles,
	}
}

func TestGithubFetcherFetch(t *testing.T) {
	tree := `{"tree":[
		{"path":"main.go","type":"blob"},
		{"path":"src","type":"tree"},
		{"path":"logo.png","type":"blob"},
		{"path":"src/util.go","type":"blob"},
		{"path":"README.md","type":"blob"}
	]}`
	contents := map[string]string{
		"main.go":     "package main\n",
		"src/util.go": "package util\n",
		"README.md":   "# Widgets\n",
	}

	srv := newGithubAPIServer(t, tree, contents, nil)
	defer srv.Close()

	f := newTestGithubFetcher(srv)
	files, err := f.Fetch(context.Background(), "https://github.com/acme/widgets")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Trees and disallowed extensions are filtered out; listing order holds.
	expected := []struct{ path, content string }{
		{"main.go", "package main\n"},
		{"src/util.go", "package util\n"},
		{"README.md", "# Widgets\n"},
	}
	if len(files) != len(expected) {
		t.Fatalf("Expected %d files, got %d", len(expected), len(files))
	}
	for i, e := range expected {
		if files[i].Path != e.path {
			t.Errorf("File %d: expected path %q, got %q", i, e.path, files[i].Path)
		}
		if files[i].Content != e.content {
			t.Errorf("File %d: expected content %q, got %q", i, e.content, files[i].Content)
		}
	}
}

func TestGithubFetcherFileCap(t *testing.T) {
	tree := `{"tree":[
		{"path":"a.go","type":"blob"},
		{"path":"b.go","type":"blob"},
		{"path":"c.go","type":"blob"}
	]}`
	contents := map[string]string{"a.go": "a", "b.go": "b", "c.go": "c"}

	srv := newGithubAPIServer(t, tree, contents, nil)
	defer srv.Close()

	f := newTestGithubFetcher(srv)
	f.MaxFiles = 2

	files, err := f.Fetch(context.Background(), "https://github.com/acme/widgets")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected cap of 2 files, got %d", len(files))
	}
	if files[0].Path != "a.go" || files[1].Path != "b.go" {
		t.Errorf("Expected first two listed files, got %q and %q", files[0].Path, files[1].Path)
	}
}

func TestGithubFetcherSkipsFailedFiles(t *testing.T) {
	tree := `{"tree":[
		{"path":"ok.go","type":"blob"},
		{"path":"broken.go","type":"blob"},
		{"path":"also_ok.go","type":"blob"}
	]}`
	contents := map[string]string{"ok.go": "package ok", "also_ok.go": "package alsook"}

	srv := newGithubAPIServer(t, tree, contents, map[string]int{"broken.go": http.StatusInternalServerError})
	defer srv.Close()

	f := newTestGithubFetcher(srv)
	files, err := f.Fetch(context.Background(), "https://github.com/acme/widgets")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files after skipping the failed one, got %d", len(files))
	}
	if files[0].Path != "ok.go" || files[1].Path != "also_ok.go" {
		t.Errorf("Unexpected surviving files: %q, %q", files[0].Path, files[1].Path)
	}
}

func TestGithubFetcherTreeFailureIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"default_branch":"main"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestGithubFetcher(srv)
	_, err := f.Fetch(context.Background(), "https://github.com/acme/widgets")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", upstream.Status)
	}
}

func TestGithubFetcherAuthHeader(t *testing.T) {
	var sawAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"default_branch":"main"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestGithubFetcher(srv)
	f.Token = "secret-token"

	var meta repoResponse
	if err := f.getJSON(context.Background(), srv.URL+"/repos/acme/widgets", &meta); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sawAuth != "token secret-token" {
		t.Errorf("Expected token auth header, got %q", sawAuth)
	}
}
