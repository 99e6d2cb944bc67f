// Package language normalizes transcript language codes to ISO 639-1 and
// names them for prompts and exports.
package language
