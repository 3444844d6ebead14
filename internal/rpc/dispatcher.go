package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/repotutor/internal/store"
	"github.com/seanblong/repotutor/pkg/models"
)

const (
	// ServerName is the fixed server identifier reported by initialize.
	ServerName    = "repotutor"
	ServerVersion = "0.1.0"

	protocolVersion = "2024-11-05"
	toolName        = "generate_tutorial"
	previewLimit    = 1000
)

// TutorialGenerator is the one stateful capability exposed through tools/call.
type TutorialGenerator interface {
	Generate(ctx context.Context, req models.TutorialRequest) (*models.TutorialDocument, error)
}

// Dispatcher routes decoded protocol messages to the server's behaviors.
// Every response carries exactly one of result/error and echoes the inbound
// id, regardless of which branch executed.
type Dispatcher struct {
	Pipeline TutorialGenerator
	Store    store.TutorialStore
	Now      func() time.Time
}

func NewDispatcher(p TutorialGenerator, st store.TutorialStore) *Dispatcher {
	return &Dispatcher{Pipeline: p, Store: st, Now: time.Now}
}

// Handle dispatches one request by method. Unknown methods surface as
// protocol-level errors, never as transport failures.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": ServerName, "version": ServerVersion},
		})
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": []any{toolSchema()}})
	case "tools/call":
		return d.handleToolCall(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func toolSchema() map[string]any {
	return map[string]any{
		"name":        toolName,
		"description": "Generate a tutorial from a codebase. Fetches a bounded sample of the repository's files and synthesizes a narrative walkthrough of its main abstractions.",
		"inputSchema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"source": map[string]any{
					"type":        "string",
					"description": "GitHub repository URL or local directory path",
				},
				"source_type": map[string]any{
					"type":        "string",
					"enum":        []string{"repo", "dir"},
					"description": "Either 'repo' for a GitHub URL or 'dir' for a local directory",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Natural language for the tutorial (default: English)",
				},
				"llm_provider": map[string]any{
					"type":        "string",
					"enum":        []string{"gemini", "openai", "anthropic", "openrouter"},
					"description": "LLM provider to use",
				},
			},
			"required": []string{"source"},
		},
	}
}

// handleToolCall runs the pipeline and persists the result. All failures,
// panics included, are converted into protocol error envelopes.
func (d *Dispatcher) handleToolCall(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("tool call panicked")
			resp = errorResponse(req.ID, CodeInternalError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	var params struct {
		Name      string                 `json:"name"`
		Arguments models.TutorialRequest `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}
	if params.Name != toolName {
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown tool: %s", params.Name))
	}
	if strings.TrimSpace(params.Arguments.Source) == "" {
		return errorResponse(req.ID, CodeInvalidParams, "source is required")
	}

	doc, err := d.Pipeline.Generate(ctx, params.Arguments)
	if err != nil {
		log.Warn().Err(err).Str("source", params.Arguments.Source).Msg("tutorial generation failed")
		return errorResponse(req.ID, CodeToolError, err.Error())
	}

	key := store.NewKey(d.Now())
	if err := d.Store.Put(ctx, key, doc.Content); err != nil {
		return errorResponse(req.ID, CodeToolError, "failed to store tutorial: "+err.Error())
	}

	preview := doc.Content
	if len(preview) > previewLimit {
		preview = preview[:previewLimit] + "..."
	}
	text := fmt.Sprintf("%s\n\nTutorial generated successfully.\nStored under key: %s", preview, key)

	return resultResponse(req.ID, map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
		"key":     key,
	})
}
