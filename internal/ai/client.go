package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

// Stage identifies which pipeline step a completion serves. The stub client
// keys its canned responses on it; real backends ignore it.
type Stage string

const (
	StageIdentify   Stage = "identify"
	StageSynthesize Stage = "synthesize"
)

// Client issues a single chat-style completion and returns the raw text.
// One attempt, one response; no retries or streaming.
type Client interface {
	Complete(ctx context.Context, stage Stage, prompt string) (string, error)
}

// Provider is the closed set of supported completion backends.
type Provider string

const (
	ProviderGemini     Provider = "gemini"
	ProviderOpenAI     Provider = "openai"
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenRouter Provider = "openrouter"
	ProviderStub       Provider = "stub"
)

// systemPrompt is the fixed system role sent with every completion.
const systemPrompt = "You are an expert at analyzing code and creating tutorials."

// Sampling bounds shared by all backends.
const (
	temperature = 0.2
	maxTokens   = 4000
)

// ClientConfig holds configuration for completion clients.
type ClientConfig struct {
	Provider Provider
	APIKey   string
	Model    string
}

// NewClient creates a completion client based on configuration. An unknown
// provider is an explicit error; a known provider with no API key degrades
// to the stub so credential-free deployments still answer.
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderGemini:
		if config.APIKey == "" {
			return stubFallback(config.Provider), nil
		}
		return NewGeminiClient(context.Background(), config)
	case ProviderOpenAI:
		if config.APIKey == "" {
			return stubFallback(config.Provider), nil
		}
		return NewOpenAIClient(config), nil
	case ProviderAnthropic:
		if config.APIKey == "" {
			return stubFallback(config.Provider), nil
		}
		return NewAnthropicClient(config), nil
	case ProviderOpenRouter:
		if config.APIKey == "" {
			return stubFallback(config.Provider), nil
		}
		return NewOpenRouterClient(config), nil
	case ProviderStub:
		return NewStubClient(), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

func stubFallback(p Provider) Client {
	log.Warn().Str("provider", string(p)).Msg("no API key configured, falling back to stub responses")
	return NewStubClient()
}

// Resolver builds clients on demand from configured credentials.
// An empty name selects the default provider.
type Resolver struct {
	Default Provider
	Keys    map[Provider]string
	Models  map[Provider]string
}

func (r *Resolver) Resolve(name string) (Client, error) {
	p := r.Default
	if name != "" {
		p = Provider(strings.ToLower(strings.TrimSpace(name)))
	}
	return NewClient(&ClientConfig{Provider: p, APIKey: r.Keys[p], Model: r.Models[p]})
}

// StubClient returns deterministic canned responses. It backs the "stub"
// provider and the missing-credential fallback.
type StubClient struct{}

// NewStubClient creates a new StubClient.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// stubAbstractions is the canned stage-A output: a JSON array matching the
// abstraction shape, so the pipeline parses it like a real completion.
const stubAbstractions = `[
  {"name": "Request Handler", "type": "module", "description": "Receives inbound requests, validates them and routes them to the right component.", "file_path": "src/handler"},
  {"name": "Data Model", "type": "class", "description": "Defines the core records the system stores and passes between components.", "file_path": "src/models"},
  {"name": "Service Client", "type": "class", "description": "Wraps calls to external services behind a small interface with explicit errors.", "file_path": "src/client"}
]`

const stubTutorial = `## Overview
This project is organized around a small number of core abstractions that
receive requests, shape data and talk to external services.

## Key Concepts
The Request Handler routes inbound work, the Data Model defines the records
that flow through the system, and the Service Client isolates external calls.

## Component Interaction
A request enters through the handler, is shaped into model records, and any
external work is delegated to the service client before a response is built.

## Example Usage
Construct the service client, wire it into the handler, and send a request;
the handler returns the shaped result.

## Best Practices
Keep external calls behind the client interface, validate requests at the
handler boundary, and keep model records immutable once built.`

// Complete returns the canned response for the given stage.
func (s *StubClient) Complete(ctx context.Context, stage Stage, prompt string) (string, error) {
	switch stage {
	case StageIdentify:
		return stubAbstractions, nil
	default:
		return stubTutorial, nil
	}
}
