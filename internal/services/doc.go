// Package services defines shared utilities consumed by the pipeline stages
// and the external integrations under it (llm, ollama).
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, owners, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Details, which
//     flattens a wrapped failure into the reason stored on a failed job.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
