// Package generation defines the text-generation collaborator used by the
// notes stage along with decorators that add provider fallback and request
// rate limiting.
package generation

import (
	"context"
	"errors"
	"strings"
)

// ErrProvider marks a failure reported by (or while reaching) a generation
// provider, as opposed to a failure to parse what it returned.
var ErrProvider = errors.New("generation provider failed")

// Request is one chat-style completion request.
type Request struct {
	// Operation labels the call in logs and errors (for example "chapters").
	Operation   string
	System      string
	User        string
	JSON        bool
	Temperature float64
	MaxTokens   int
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// Total returns TotalTokens, or the sum of its parts when the provider only
// reported those.
func (u Usage) Total() int64 {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// Response carries the generated content.
type Response struct {
	Content  string
	Provider string
	Model    string
	Usage    Usage
}

// ModelLabel renders provider and model as "provider:model".
func (r Response) ModelLabel() string {
	provider := strings.TrimSpace(r.Provider)
	model := strings.TrimSpace(r.Model)
	switch {
	case provider == "":
		return model
	case model == "":
		return provider
	default:
		return provider + ":" + model
	}
}

// Provider generates text for a request.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (Response, error)

// Name implements Provider.
func (f ProviderFunc) Name() string { return "func" }

// Generate implements Provider.
func (f ProviderFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
