package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// English is the language notes are generated in.
const English = "en"

// Normalize reduces a BCP 47 tag or ISO 639-2 code to its two-letter base
// language ("en-US" and "eng" both become "en"). Input x/text cannot parse
// is returned lowercased and trimmed.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	tag, err := xlang.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	base, confidence := tag.Base()
	if confidence == xlang.No {
		return code
	}
	return base.String()
}

// IsEnglish reports whether code names English in any form.
func IsEnglish(code string) bool {
	return Normalize(code) == English
}

// DisplayName returns the English name of code, e.g. "Japanese". Unknown
// codes are returned uppercased and an empty code reads "Unknown".
func DisplayName(code string) string {
	normalized := Normalize(code)
	if normalized == "" {
		return "Unknown"
	}
	tag, err := xlang.Parse(normalized)
	if err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(normalized)
}
