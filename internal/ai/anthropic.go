package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

const anthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicClient talks to the Anthropic messages API, which carries the
// system prompt as a top-level field rather than a message.
type AnthropicClient struct {
	config   *ClientConfig
	http     *http.Client
	endpoint string
}

func NewAnthropicClient(config *ClientConfig) *AnthropicClient {
	if config.Model == "" {
		config.Model = "claude-3-5-sonnet-20241022"
	}

	return &AnthropicClient{
		config:   config,
		http:     &http.Client{Timeout: 120 * time.Second},
		endpoint: anthropicEndpoint,
	}
}

// Complete implements the completion functionality against the Anthropic API.
func (c *AnthropicClient) Complete(ctx context.Context, _ Stage, prompt string) (string, error) {
	payload := map[string]any{
		"model":       c.config.Model,
		"system":      systemPrompt,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error.Message != "" {
			return "", errors.New(e.Error.Message)
		}
		return "", errors.New(resp.Status)
	}

	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Content) == 0 {
		return "", errors.New("no content")
	}

	return strings.TrimSpace(out.Content[0].Text), nil
}
