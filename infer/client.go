// Package infer proxies one-off completion requests to the serving
// runtime hosting the currently-trained adapter, implementing the same
// contract as api.InferBackend.
//
// Grounded on original_source/infra/app/main.py's /infer handler: a plain
// HTTP POST to a vLLM-style OpenAI-compatible /v1/completions endpoint with
// fixed max_tokens/temperature defaults, reading back choices[0].text. The
// client shape (bytes.Buffer + http.NewRequestWithContext + http.Client
// with a fixed Timeout) mirrors train/dispatcher.go's Dispatcher.
package infer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is an api.InferBackend backed by an OpenAI-compatible completions
// endpoint.
type Client struct {
	url        string
	model      string
	httpClient *http.Client
}

// NewClient builds a Client targeting url (e.g.
// "http://localhost:8000/v1/completions").
func NewClient(url, model string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// Infer sends prompt to the serving runtime with the same fixed defaults
// original_source uses (max_tokens=512, temperature=0.7) and returns the
// first completion's text.
func (c *Client) Infer(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Prompt:      prompt,
		MaxTokens:   512,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("serving runtime returned status %d", resp.StatusCode)
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return cr.Choices[0].Text, nil
}
