package source

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"scribe/internal/transcript"
)

// TimedText reads json3 caption tracks.
type TimedText struct {
	cfg HTTPConfig
}

// NewTimedText builds the provider.
func NewTimedText(cfg HTTPConfig) *TimedText {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "timedtext"
	}
	return &TimedText{cfg: cfg}
}

// Name implements Provider.
func (p *TimedText) Name() string { return p.cfg.Name }

type json3Track struct {
	Events []struct {
		TStartMs    float64 `json:"tStartMs"`
		DDurationMs float64 `json:"dDurationMs"`
		Segs        []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Fetch implements Provider.
func (p *TimedText) Fetch(ctx context.Context, sourceID string) (*Item, error) {
	endpoint, err := url.Parse(p.cfg.BaseURL)
	if err != nil || endpoint.Host == "" {
		return nil, &FetchError{Kind: KindMalformed, Provider: p.Name(), Message: "invalid base url"}
	}
	query := endpoint.Query()
	query.Set("v", sourceID)
	query.Set("lang", p.cfg.language())
	query.Set("fmt", "json3")
	endpoint.RawQuery = query.Encode()

	req, err := newRequest(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}
	body, header, err := get(ctx, p.cfg.httpClient(), p.Name(), req)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.Contains(header.Get("Content-Type"), "text/html") || strings.HasPrefix(trimmed, "<!") {
		return nil, &FetchError{Kind: KindBlocked, Provider: p.Name(), Message: "upstream returned an html error page"}
	}
	if trimmed == "" {
		return nil, &FetchError{Kind: KindMalformed, Provider: p.Name(), Message: "empty caption response"}
	}

	var track json3Track
	if err := json.Unmarshal(body, &track); err != nil {
		return nil, &FetchError{Kind: KindMalformed, Provider: p.Name(), Message: "decode caption track", Err: err}
	}
	fragments := make([]transcript.Fragment, 0, len(track.Events))
	texts := make([]string, 0, len(track.Events))
	for _, event := range track.Events {
		var b strings.Builder
		for _, seg := range event.Segs {
			b.WriteString(seg.UTF8)
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		fragments = append(fragments, transcript.Fragment{
			Text:     text,
			Start:    event.TStartMs / 1000,
			Duration: event.DDurationMs / 1000,
		})
		texts = append(texts, text)
	}
	if len(fragments) == 0 {
		return nil, &FetchError{Kind: KindMalformed, Provider: p.Name(), Message: "transcript is empty"}
	}
	return &Item{
		SourceID:  sourceID,
		Language:  p.cfg.language(),
		Provider:  p.Name(),
		RawText:   joinFragmentText(texts),
		Fragments: fragments,
		FetchedAt: time.Now().UTC(),
	}, nil
}
