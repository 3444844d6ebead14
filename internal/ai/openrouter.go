package ai

import (
	"context"
	"net/http"
	"time"
)

const openRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterClient talks to OpenRouter's OpenAI-compatible completion API.
type OpenRouterClient struct {
	config   *ClientConfig
	http     *http.Client
	endpoint string
}

func NewOpenRouterClient(config *ClientConfig) *OpenRouterClient {
	if config.Model == "" {
		config.Model = "anthropic/claude-3.5-sonnet"
	}

	return &OpenRouterClient{
		config:   config,
		http:     &http.Client{Timeout: 120 * time.Second},
		endpoint: openRouterEndpoint,
	}
}

// Complete implements the completion functionality against OpenRouter.
func (c *OpenRouterClient) Complete(ctx context.Context, _ Stage, prompt string) (string, error) {
	return completeChat(ctx, c.http, c.endpoint, c.setHeaders, c.config.Model, prompt)
}

func (c *OpenRouterClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
}
