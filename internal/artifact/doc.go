// Package artifact defines the typed study-material records produced by the
// generation stage and the parsers that turn raw model output into them.
//
// Parsers fail fast: malformed or wrongly shaped payloads return an error
// wrapping ErrParse and never a partially filled record. Field defaults that
// the model may omit (difficulty, end times) are filled in afterwards.
package artifact
