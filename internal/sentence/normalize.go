package sentence

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText trims surrounding whitespace and applies Unicode NFC.
// Composed form keeps one code point per visible accent (é, not e + U+0301),
// so offsets stay aligned with what a reader sees.
func NormalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

// IsNormalized reports whether text is already in the form NormalizeText produces.
func IsNormalized(text string) bool {
	return strings.TrimSpace(text) == text && norm.NFC.IsNormalString(text)
}
