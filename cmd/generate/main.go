package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/seanblong/repotutor/internal/ai"
	"github.com/seanblong/repotutor/internal/config"
	"github.com/seanblong/repotutor/internal/fetcher"
	"github.com/seanblong/repotutor/internal/pipeline"
	"github.com/seanblong/repotutor/pkg/models"
	"github.com/spf13/pflag"
)

// One-shot tutorial generation without the server: fetch, generate, write.
func main() {
	fs := pflag.NewFlagSet("repotutor-generate", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	if cfg.Source == "" {
		log.Fatal("--source is required (repository URL or local directory)")
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

	gh := fetcher.NewGithubFetcher(cfg.GithubToken)
	gh.Workers = cfg.FetchWorkers
	gh.MaxFiles = cfg.MaxFiles

	pipe := &pipeline.Pipeline{
		Repo:            gh,
		Dir:             fetcher.NewLocalFetcher(cfg.MaxFiles),
		Clients:         resolver,
		DefaultLanguage: cfg.Language,
	}

	doc, err := pipe.Generate(context.Background(), models.TutorialRequest{
		Source:     cfg.Source,
		SourceType: cfg.SourceType,
		Language:   cfg.Language,
	})
	if err != nil {
		log.Fatalf("generation failed: %v", err)
	}

	if cfg.Output == "" || cfg.Output == "-" {
		if _, err := os.Stdout.WriteString(doc.Content); err != nil {
			log.Fatalf("write failed: %v", err)
		}
		return
	}

	if dir := filepath.Dir(cfg.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("create output directory: %v", err)
		}
	}
	if err := os.WriteFile(cfg.Output, []byte(doc.Content), 0o644); err != nil {
		log.Fatalf("write failed: %v", err)
	}
	log.Printf("tutorial written to %s", cfg.Output)
}
