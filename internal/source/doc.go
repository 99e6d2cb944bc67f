// Package source fetches raw timed captions from external providers.
//
// Providers report failures as *FetchError values classified by Kind.
// RetryingFetcher retries rate-limited, blocked and unavailable failures with
// capped exponential backoff and jitter; malformed or unclassified failures
// surface immediately. FallbackFetcher moves to the next provider only after
// the previous provider's retry budget is spent. Chain adds source id
// validation, spacing between upstream calls, and the content-length limit.
package source
