package utils

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

// FeatureLabel returns the display name of feature i, falling back to "x<i>"
// when names is short or the name is blank.
func FeatureLabel(names []string, i int) string {
	if i >= 0 && i < len(names) && strings.TrimSpace(names[i]) != "" {
		return names[i]
	}
	return "x" + strconv.Itoa(i)
}
