package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/repotutor/internal/ai"
	"github.com/seanblong/repotutor/internal/auth"
	"github.com/seanblong/repotutor/internal/config"
	"github.com/seanblong/repotutor/internal/fetcher"
	"github.com/seanblong/repotutor/internal/pipeline"
	"github.com/seanblong/repotutor/internal/rpc"
	"github.com/seanblong/repotutor/internal/store"
	"github.com/spf13/pflag"
)

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("repotutor-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting repotutor api")

	ctx := context.Background()

	// Tutorial persistence: Postgres when a DSN is configured, otherwise
	// in-memory only.
	var st store.TutorialStore
	if cfg.Database != "" {
		pg, err := store.New(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		st = pg
	} else {
		logger.Warn().Msg("no database configured, tutorials are stored in memory only")
		st = store.NewMemoryStore()
	}

	resolver := &ai.Resolver{
		Default: ai.Provider(strings.ToLower(cfg.Provider)),
		Keys: map[ai.Provider]string{
			ai.ProviderGemini:     cfg.GeminiAPIKey,
			ai.ProviderOpenAI:     cfg.OpenAIAPIKey,
			ai.ProviderAnthropic:  cfg.AnthropicAPIKey,
			ai.ProviderOpenRouter: cfg.OpenRouterAPIKey,
		},
		Models: map[ai.Provider]string{
			ai.ProviderGemini:     cfg.GeminiModel,
			ai.ProviderOpenAI:     cfg.OpenAIModel,
			ai.ProviderAnthropic:  cfg.AnthropicModel,
			ai.ProviderOpenRouter: cfg.OpenRouterModel,
		},
	}
	// Fail on an unsupported default provider now rather than on the first request.
	if _, err := resolver.Resolve(""); err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	gh := fetcher.NewGithubFetcher(cfg.GithubToken)
	gh.Workers = cfg.FetchWorkers
	gh.MaxFiles = cfg.MaxFiles

	pipe := &pipeline.Pipeline{
		Repo:            gh,
		Clients:         resolver,
		DefaultLanguage: cfg.Language,
	}
	if cfg.AllowLocal {
		pipe.Dir = fetcher.NewLocalFetcher(cfg.MaxFiles)
	}

	authCfg := &auth.Config{Enabled: cfg.Auth.Enabled, Secret: []byte(cfg.Auth.JwtSecret)}
	dispatcher := rpc.NewDispatcher(pipe, st)
	protocol := rpc.NewHandler(dispatcher)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("/mcp", authCfg.Middleware(protocol.ServeHTTP))
	mux.HandleFunc("/tutorials", authCfg.Middleware(listTutorials(st)))
	mux.HandleFunc("/tutorials/", authCfg.Middleware(getTutorial(st)))

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

// listTutorials serves stored tutorial metadata, newest first.
func listTutorials(st store.TutorialStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entries, err := st.List(ctx)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if entries == nil {
			if _, err := w.Write([]byte("[]")); err != nil {
				http.Error(w, "Failed to write response", http.StatusInternalServerError)
			}
			return
		}
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, "Failed to encode tutorials", 500)
		}
	}
}

// getTutorial serves one stored tutorial's content by key.
func getTutorial(st store.TutorialStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/tutorials/")
		if key == "" {
			http.NotFound(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		content, found, err := st.Get(ctx, key)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if !found {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		if _, err := w.Write([]byte(content)); err != nil {
			log.Printf("failed to write tutorial %s: %v", key, err)
		}
	}
}
