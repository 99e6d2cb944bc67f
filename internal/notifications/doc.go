// Package notifications publishes job alerts to an ntfy topic.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to check whether notifications are enabled. Deliveries
// are retried briefly on transport errors and 5xx responses.
package notifications
