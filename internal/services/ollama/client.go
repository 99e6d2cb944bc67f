// Package ollama implements generation.Provider against a local Ollama
// server's /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/artifact"
	"scribe/internal/generation"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 120 * time.Second
)

// Config holds connection settings for an Ollama server.
type Config struct {
	Name    string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client talks to Ollama without streaming.
type Client struct {
	name    string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient applies defaults for the base URL and timeout. A nil httpClient
// gets one with the configured timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "ollama"
	}
	return &Client{
		name:    name,
		baseURL: baseURL,
		model:   strings.TrimSpace(cfg.Model),
		http:    httpClient,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  *options      `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int64       `json:"prompt_eval_count"`
	EvalCount       int64       `json:"eval_count"`
	Error           string      `json:"error"`
}

// Name implements generation.Provider.
func (c *Client) Name() string { return c.name }

// Generate implements generation.Provider.
func (c *Client) Generate(ctx context.Context, req generation.Request) (generation.Response, error) {
	if strings.TrimSpace(req.User) == "" {
		return generation.Response{}, fmt.Errorf("%w: ollama: user prompt required", generation.ErrProvider)
	}
	body := chatRequest{Model: c.model, Stream: false}
	if system := strings.TrimSpace(req.System); system != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: system})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: strings.TrimSpace(req.User)})
	if req.JSON {
		body.Format = "json"
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		body.Options = &options{NumPredict: req.MaxTokens, Temperature: req.Temperature}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return generation.Response{}, fmt.Errorf("ollama: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(encoded))
	if err != nil {
		return generation.Response{}, fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return generation.Response{}, ctxErr
		}
		return generation.Response{}, fmt.Errorf("%w: ollama: send request: %w", generation.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return generation.Response{}, fmt.Errorf("%w: ollama: read response: %w", generation.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return generation.Response{}, fmt.Errorf("%w: ollama: status %d: %s", generation.ErrProvider, resp.StatusCode, artifact.Snippet(string(raw)))
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return generation.Response{}, fmt.Errorf("%w: ollama: decode response: %w", generation.ErrProvider, err)
	}
	if parsed.Error != "" {
		return generation.Response{}, fmt.Errorf("%w: ollama: %s", generation.ErrProvider, parsed.Error)
	}
	content := strings.TrimSpace(parsed.Message.Content)
	if content == "" {
		return generation.Response{}, fmt.Errorf("%w: ollama: empty content", generation.ErrProvider)
	}
	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return generation.Response{
		Content:  content,
		Provider: c.name,
		Model:    model,
		Usage: generation.Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
		},
	}, nil
}

// HealthCheck verifies the server is reachable and the model is pulled.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: create ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, artifact.Snippet(string(raw)))
	}
	var tags struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("ollama: decode tags: %w", err)
	}
	if c.model == "" {
		return nil
	}
	for _, m := range tags.Models {
		if matchesModel(m.Name, c.model) || matchesModel(m.Model, c.model) {
			return nil
		}
	}
	return errors.New("ollama: model " + c.model + " not pulled")
}

// matchesModel treats "llama3.2" and "llama3.2:latest" as the same model.
func matchesModel(have, want string) bool {
	if have == want {
		return true
	}
	return strings.TrimSuffix(have, ":latest") == strings.TrimSuffix(want, ":latest")
}
