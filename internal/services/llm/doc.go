// Package llm provides an OpenAI-compatible chat completions client that
// implements generation.Provider.
//
// Any endpoint speaking the chat completions schema works (Groq, OpenAI,
// OpenRouter). Responses are read leniently: message content, streaming
// delta content, legacy text, and tool/function call arguments are all
// accepted, and token usage is reported when the endpoint includes it.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty content, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). A Retry-After header overrides the computed delay. Context
// cancellation aborts retries immediately. Failures wrap
// generation.ErrProvider.
package llm
