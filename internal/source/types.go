package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scribe/internal/transcript"
)

// Item is one fetched transcript.
type Item struct {
	SourceID        string                `json:"source_id"`
	Title           string                `json:"title,omitempty"`
	Language        string                `json:"language"`
	Provider        string                `json:"provider"`
	RawText         string                `json:"raw_text"`
	DurationSeconds float64               `json:"duration_seconds,omitempty"`
	Fragments       []transcript.Fragment `json:"fragments"`
	FetchedAt       time.Time             `json:"fetched_at"`
}

// Duration returns the reported duration, or the end of the last fragment
// when the provider did not report one.
func (i *Item) Duration() float64 {
	if i == nil {
		return 0
	}
	if i.DurationSeconds > 0 {
		return i.DurationSeconds
	}
	var end float64
	for _, f := range i.Fragments {
		if e := f.Start + f.Duration; e > end {
			end = e
		}
	}
	return end
}

// Kind classifies a fetch failure.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindBlocked     Kind = "blocked"
	KindUnavailable Kind = "unavailable"
	KindMalformed   Kind = "malformed"
)

// Retryable reports whether failures of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindBlocked, KindUnavailable:
		return true
	default:
		return false
	}
}

// FetchError is the typed failure returned by providers and fetchers.
type FetchError struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString("source fetch")
	if e.Provider != "" {
		b.WriteString(" (")
		b.WriteString(e.Provider)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind; ok is false for unclassified errors.
func KindOf(err error) (Kind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Provider fetches captions from one upstream.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, sourceID string) (*Item, error)
}

// Fetcher is what the pipeline depends on.
type Fetcher interface {
	Fetch(ctx context.Context, sourceID string) (*Item, error)
}

// classifyStatus maps an upstream HTTP status to a failure kind.
func classifyStatus(code int) Kind {
	switch {
	case code == 429:
		return KindRateLimited
	case code == 401, code == 403:
		return KindBlocked
	case code == 408, code >= 500:
		return KindUnavailable
	default:
		return KindMalformed
	}
}
