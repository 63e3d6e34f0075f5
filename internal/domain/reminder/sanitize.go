package reminder

import (
	"regexp"
	"strings"
)

var paragraphTag = regexp.MustCompile(`(?i)</?p>`)

// SanitizeDescription removes paragraph wrappers and trims the result.
// Any other markup is left as is.
func SanitizeDescription(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(paragraphTag.ReplaceAllString(text, ""))
}
