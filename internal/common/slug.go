package common

import (
	"strings"
	"unicode"
)

// Slugify converts text to a lowercase hyphen-separated slug. Runs of
// non-alphanumeric characters collapse into a single hyphen, and the
// result is trimmed to maxLen (0 means no limit) without a trailing
// hyphen.
func Slugify(text string, maxLen int) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteRune('-')
			lastHyphen = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "-")
	}
	return slug
}
