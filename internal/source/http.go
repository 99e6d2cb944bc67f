package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/language"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 32 << 20
	userAgent          = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// HTTPConfig is shared by the HTTP caption providers.
type HTTPConfig struct {
	Name     string
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
	Client   *http.Client
}

func (c HTTPConfig) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (c HTTPConfig) language() string {
	if lang := language.Normalize(c.Language); lang != "" {
		return lang
	}
	return language.English
}

// get performs the request and returns the body of a 2xx response. Transport
// and status failures come back as *FetchError.
func get(ctx context.Context, client *http.Client, provider string, req *http.Request) ([]byte, http.Header, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, &FetchError{Kind: KindUnavailable, Provider: provider, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, &FetchError{Kind: KindUnavailable, Provider: provider, Message: "read body", Err: err}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, nil, &FetchError{
			Kind:       classifyStatus(resp.StatusCode),
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    snippet(string(body)),
		}
	}
	return body, resp.Header, nil
}

func snippet(body string) string {
	clean := strings.Join(strings.Fields(body), " ")
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}

func joinFragmentText(parts []string) string {
	return strings.Join(parts, " ")
}

func newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &FetchError{Kind: KindMalformed, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
