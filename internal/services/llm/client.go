package llm

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
	defaultEndpoint       = "https://api.openai.com/v1/chat/completions"
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config describes one OpenAI-compatible chat completion endpoint.
type Config struct {
	// Name labels the provider in logs and results, e.g. "groq".
	Name           string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client calls a chat completion endpoint and retries transient failures.
type Client struct {
	cfg  Config
	http *http.Client

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	sleep     func(time.Duration)
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts bounds the total number of calls per Generate.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// WithRetryBackoff sets the first retry delay and the ceiling for all of them,
// including server Retry-After hints.
func WithRetryBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = max(base, 0)
		c.maxDelay = max(ceiling, 0)
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

func NewClient(cfg Config, opts ...Option) *Client {
	cfg = Config{
		Name:           strings.TrimSpace(cfg.Name),
		APIKey:         strings.TrimSpace(cfg.APIKey),
		BaseURL:        strings.TrimSpace(cfg.BaseURL),
		Model:          strings.TrimSpace(cfg.Model),
		Referer:        strings.TrimSpace(cfg.Referer),
		Title:          strings.TrimSpace(cfg.Title),
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEndpoint
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: timeout},
		attempts:  defaultRetryAttempts,
		baseDelay: defaultRetryBaseDelay,
		maxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.cfg.Name }

func (c *Client) Model() string { return c.cfg.Model }

// Generate sends one chat completion. Token usage is summed over every
// attempt, including ones that came back empty.
func (c *Client) Generate(ctx context.Context, req generation.Request) (generation.Response, error) {
	op := "llm generate"
	if name := strings.TrimSpace(req.Operation); name != "" {
		op = "llm " + name
	}
	user := strings.TrimSpace(req.User)
	if user == "" {
		return generation.Response{}, fmt.Errorf("%w: %s: user prompt required", generation.ErrProvider, op)
	}
	if c.cfg.APIKey == "" {
		return generation.Response{}, fmt.Errorf("%w: %s: api key required", generation.ErrProvider, op)
	}

	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if system := strings.TrimSpace(req.System); system != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: system})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: user})
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	out, err := c.complete(ctx, op, body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return generation.Response{}, err
		}
		return generation.Response{}, fmt.Errorf("%w: %w", generation.ErrProvider, err)
	}
	model := out.model
	if model == "" {
		model = c.cfg.Model
	}
	return generation.Response{
		Content:  out.content,
		Provider: c.cfg.Name,
		Model:    model,
		Usage:    out.usage,
	}, nil
}

// HealthCheck asks for a trivial JSON reply to prove the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.Generate(ctx, generation.Request{
		Operation: "health",
		System:    "You must respond with JSON only.",
		User:      `Respond with {"ok":true}`,
		JSON:      true,
	})
	if err != nil {
		return err
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := artifact.Decode(resp.Content, &reply); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !reply.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

// post performs a single HTTP round trip. The raw body is returned alongside
// decode failures so callers can quote it.
func (c *Client) post(ctx context.Context, payload chatRequest) (chatResponse, []byte, error) {
	var decoded chatResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return decoded, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return decoded, nil, fmt.Errorf("llm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return decoded, nil, fmt.Errorf("llm request (timeout=%s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return decoded, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return decoded, raw, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw)), retryAfter: wait}
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return decoded, raw, fmt.Errorf("llm request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded, raw, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	return decoded, raw, nil
}
