package source

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"scribe/internal/language"
	"scribe/internal/transcript"
)

// TranscriptAPI reads captions from a hosted transcript API that returns
// millisecond offsets.
type TranscriptAPI struct {
	cfg HTTPConfig
}

// NewTranscriptAPI builds the provider.
func NewTranscriptAPI(cfg HTTPConfig) *TranscriptAPI {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "transcript-api"
	}
	return &TranscriptAPI{cfg: cfg}
}

// Name implements Provider.
func (p *TranscriptAPI) Name() string { return p.cfg.Name }

type transcriptAPIResponse struct {
	Lang    string `json:"lang"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Content []struct {
		Text     string  `json:"text"`
		Offset   float64 `json:"offset"`
		Duration float64 `json:"duration"`
	} `json:"content"`
}

// Fetch implements Provider.
func (p *TranscriptAPI) Fetch(ctx context.Context, sourceID string) (*Item, error) {
	endpoint, err := url.Parse(p.cfg.BaseURL)
	if err != nil || endpoint.Host == "" {
		return nil, &FetchError{Kind: KindMalformed, Provider: p.Name(), Message: "invalid base url"}
	}
	query := endpoint.Query()
	query.Set("videoId", sourceID)
	query.Set("lang", p.cfg.language())
	query.Set("text", "false")
	endpoint.RawQuery = query.Encode()

	req, err := newRequest(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}
	if key := strings.TrimSpace(p.cfg.APIKey); key != "" {
		req.Header.Set("x-api-key", key)
	}
	body, _, err := get(ctx, p.cfg.httpClient(), p.Name(), req)
	if err != nil {
		return nil, err
	}

	var payload transcriptAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Kind: KindMalformed, Provider: p.Name(), Message: "decode response", Err: err}
	}
	if payload.Error != "" {
		msg := payload.Message
		if msg == "" {
			msg = payload.Error
		}
		return nil, &FetchError{Kind: KindMalformed, Provider: p.Name(), Message: msg}
	}

	fragments := make([]transcript.Fragment, 0, len(payload.Content))
	texts := make([]string, 0, len(payload.Content))
	for _, entry := range payload.Content {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fragments = append(fragments, transcript.Fragment{
			Text:     text,
			Start:    entry.Offset / 1000,
			Duration: entry.Duration / 1000,
		})
		texts = append(texts, text)
	}
	if len(fragments) == 0 {
		return nil, &FetchError{Kind: KindMalformed, Provider: p.Name(), Message: "no transcript available"}
	}
	lang := language.Normalize(payload.Lang)
	if lang == "" {
		lang = p.cfg.language()
	}
	return &Item{
		SourceID:  sourceID,
		Language:  lang,
		Provider:  p.Name(),
		RawText:   joinFragmentText(texts),
		Fragments: fragments,
		FetchedAt: time.Now().UTC(),
	}, nil
}
