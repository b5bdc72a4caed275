// Package completion talks to the text-completion backend and turns the
// conversation into accepted replies and summaries.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vthunder/chatbot/internal/config"
)

// DefaultTimeout bounds a single backend call
const DefaultTimeout = 120 * time.Second

// Backend performs one completion call
type Backend interface {
	Complete(ctx context.Context, body config.Params) (string, error)
}

// StatusError is returned when the backend answers with a non-200 status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion backend returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPBackend posts to an OpenAI-style /v1/completions endpoint
type HTTPBackend struct {
	url    string
	apiKey string
	client *http.Client
}

// HTTPConfig configures an HTTPBackend
type HTTPConfig struct {
	// Host is "host:port" or a full base URL ("https://example.com")
	Host    string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPBackend creates a backend client
func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	host := cfg.Host
	if host == "" {
		host = "localhost:5000"
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTPBackend{
		url:    strings.TrimRight(host, "/") + "/v1/completions",
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// URL returns the completions endpoint
func (b *HTTPBackend) URL() string {
	return b.url
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// Complete implements Backend
func (b *HTTPBackend) Complete(ctx context.Context, body config.Params) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("response has no choices")
	}
	return result.Choices[0].Text, nil
}
