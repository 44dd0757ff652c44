package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title renders a category or label for display ("conservative" -> "Conservative").
func Title(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return ""
	}
	return cases.Title(language.English).String(value)
}

// CollapseSpace trims value and replaces runs of whitespace with single spaces.
func CollapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Truncate shortens value to at most limit runes, marking the cut with "...".
func Truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	if limit <= 3 {
		return string([]rune(value)[:limit])
	}
	return string([]rune(value)[:limit-3]) + "..."
}
