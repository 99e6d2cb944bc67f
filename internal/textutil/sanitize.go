package textutil

import (
	"strings"
	"unicode"
)

var unsafeFileChars = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SafeFileName strips path separators and characters Windows rejects, and
// collapses whitespace runs to single spaces. Case is preserved.
func SafeFileName(name string) string {
	cleaned := unsafeFileChars.Replace(strings.TrimSpace(name))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return strings.Trim(cleaned, ". ")
}

// Slug lowercases value and joins its letter and digit runs with single
// dashes. Underscores are kept. Empty results become "unknown".
func Slug(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	pendingDash := false
	for _, r := range strings.TrimSpace(value) {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
