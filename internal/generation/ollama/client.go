// Package ollama is a minimal client for the Ollama /api/generate endpoint.
// The core treats generation as an opaque request/response service; streaming
// is deliberately not used.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atlascope/wikirag/internal/domain"
)

const defaultTimeout = 120 * time.Second

// Client talks to one Ollama server.
type Client struct {
	baseURL string
	client  *http.Client
}

// Config holds Ollama connection settings.
type Config struct {
	Host    string
	Timeout time.Duration
}

// NewClient creates an Ollama client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Host, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Request describes one completion call.
type Request struct {
	Model       string
	Prompt      string
	System      string
	Temperature *float64
}

// Result is the parsed generation response.
type Result struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	TotalDuration   int64  `json:"total_duration"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Generate issues a non-streaming completion request.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	payload := map[string]any{
		"model":  req.Model,
		"prompt": req.Prompt,
		"stream": false,
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if req.Temperature != nil {
		payload["options"] = map[string]any{"temperature": *req.Temperature}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data),
	)
	if err != nil {
		return Result{}, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: ollama generate: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read ollama response: %v", domain.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf(
			"%w: ollama generate returned %d: %s", domain.ErrUpstream, resp.StatusCode, truncate(body, 256),
		)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("%w: decode ollama response: %v", domain.ErrUpstream, err)
	}
	return result, nil
}

// HealthCheck verifies the Ollama server is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama health check: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama health check: status %d", domain.ErrUpstream, resp.StatusCode)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
