package catalog

import (
	"strings"
	"unicode"
)

// Slugify lowercases s and joins its ASCII letter and digit runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		if unicode.IsLetter(r) || unicode.IsMark(r) {
			// non-ASCII letters are dropped without splitting the word
			continue
		}
		pendingDash = true
	}
	return b.String()
}
