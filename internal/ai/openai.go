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

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

type OpenAIClient struct {
	config   *ClientConfig
	http     *http.Client
	endpoint string
}

func NewOpenAIClient(config *ClientConfig) *OpenAIClient {
	if config.Model == "" {
		config.Model = "gpt-4o"
	}

	return &OpenAIClient{
		config:   config,
		http:     &http.Client{Timeout: 120 * time.Second},
		endpoint: openAIEndpoint,
	}
}

// Complete implements the completion functionality against the OpenAI API.
func (c *OpenAIClient) Complete(ctx context.Context, _ Stage, prompt string) (string, error) {
	return completeChat(ctx, c.http, c.endpoint, c.setHeaders, c.config.Model, prompt)
}

// setHeaders sets common headers for OpenAI requests.
func (c *OpenAIClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
}

// completeChat issues one OpenAI-style chat completion and returns the first
// choice's text. Shared by the OpenAI and OpenRouter backends, which speak
// the same wire format.
func completeChat(ctx context.Context, hc *http.Client, endpoint string, setHeaders func(*http.Request), model, prompt string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	setHeaders(req)

	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct{ Error struct{ Message string } }
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error.Message != "" {
			return "", errors.New(e.Error.Message)
		}
		return "", errors.New(resp.Status)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices")
	}

	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
