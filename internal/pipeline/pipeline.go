package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repotutor/internal/ai"
	"github.com/seanblong/repotutor/internal/fetcher"
	"github.com/seanblong/repotutor/pkg/models"
)

// ClientResolver maps a requested provider name to a completion client.
// An empty name selects the configured default.
type ClientResolver interface {
	Resolve(provider string) (ai.Client, error)
}

// Pipeline composes a source fetcher and a completion client into the
// two-stage tutorial generation: identify abstractions, then synthesize
// prose. Linear, no retries; stage A completes before stage B starts.
type Pipeline struct {
	Repo            fetcher.Fetcher
	Dir             fetcher.Fetcher // nil disables local directory sources
	Clients         ClientResolver
	DefaultLanguage string
}

// ErrBadAbstractions means stage-A output was not a valid abstraction list.
var ErrBadAbstractions = errors.New("model output is not a valid abstraction list")

// Generate runs the full pipeline for one request and returns the assembled
// document. Failures from the fetcher or the client propagate unchanged.
func (p *Pipeline) Generate(ctx context.Context, req models.TutorialRequest) (*models.TutorialDocument, error) {
	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = "repo"
	}

	var f fetcher.Fetcher
	switch sourceType {
	case "repo":
		f = p.Repo
	case "dir":
		f = p.Dir
	default:
		return nil, fmt.Errorf("unsupported source_type: %s", sourceType)
	}
	if f == nil {
		return nil, fmt.Errorf("source_type %q is not enabled", sourceType)
	}

	files, err := f.Fetch(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no files fetched from source")
	}

	client, err := p.Clients.Resolve(req.LLMProvider)
	if err != nil {
		return nil, err
	}

	log.Info().Int("files", len(files)).Str("source", req.Source).Msg("identifying abstractions")
	raw, err := client.Complete(ctx, ai.StageIdentify, identifyPrompt(files))
	if err != nil {
		return nil, fmt.Errorf("abstraction identification: %w", err)
	}

	abstractions, err := parseAbstractions(raw)
	if err != nil {
		return nil, err
	}

	language := req.Language
	if language == "" {
		language = p.DefaultLanguage
	}
	if language == "" {
		language = "English"
	}

	log.Info().Int("abstractions", len(abstractions)).Str("language", language).Msg("synthesizing tutorial")
	body, err := client.Complete(ctx, ai.StageSynthesize, synthesizePrompt(projectName(req.Source), abstractions, language))
	if err != nil {
		return nil, fmt.Errorf("tutorial synthesis: %w", err)
	}

	return assemble(req.Source, body), nil
}

// parseAbstractions decodes stage-A output. Surrounding code fences are
// tolerated; anything else malformed is fatal to the pipeline.
func parseAbstractions(raw string) ([]models.Abstraction, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	var out []models.Abstraction
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAbstractions, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrBadAbstractions)
	}
	for i, a := range out {
		if a.Name == "" || a.Type == "" || a.Description == "" || a.FilePath == "" {
			return nil, fmt.Errorf("%w: entry %d is missing required fields", ErrBadAbstractions, i)
		}
	}
	return out, nil
}

// projectName returns the last path segment of the source reference.
func projectName(source string) string {
	s := strings.TrimRight(strings.TrimSpace(source), "/")
	s = strings.TrimSuffix(s, ".git")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

const footer = "\n\n---\n*Generated by repotutor*\n"

// assemble wraps the model-authored body with header metadata and the fixed
// footer. The document is immutable once built.
func assemble(source, body string) *models.TutorialDocument {
	now := time.Now().UTC()
	name := projectName(source)

	var b strings.Builder
	fmt.Fprintf(&b, "# Tutorial: %s\n\n", name)
	fmt.Fprintf(&b, "**Source:** %s\n", source)
	fmt.Fprintf(&b, "**Generated:** %s\n\n", now.Format(time.RFC3339))
	b.WriteString(strings.TrimSpace(body))
	b.WriteString(footer)

	return &models.TutorialDocument{
		Title:       "Tutorial: " + name,
		Source:      source,
		Content:     b.String(),
		GeneratedAt: now,
	}
}
