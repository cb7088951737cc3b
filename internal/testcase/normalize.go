package testcase

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalize cleans a step or result line into a Gherkin-safe token. Commas
// are removed, whitespace is collapsed and trimmed, and trailing periods are
// stripped. An empty result means the line carries no step.
func Normalize(line string) string {
	s := strings.ReplaceAll(line, ",", "")
	s = strings.Join(strings.Fields(s), " ")
	for strings.HasSuffix(s, ".") {
		s = strings.TrimRight(strings.TrimSuffix(s, "."), " ")
	}
	return s
}

var numberPrefix = regexp.MustCompile(`^\s*(?:\d+\s*[.)]|[-*•])\s+`)

// denumber strips a leading "1. ", "2) " or bullet marker.
func denumber(line string) string {
	return numberPrefix.ReplaceAllString(line, "")
}

// splitLines breaks a field into normalized, de-numbered, non-empty lines.
func splitLines(field string) []string {
	var out []string
	for _, line := range strings.Split(field, "\n") {
		if s := Normalize(denumber(line)); hasWordChar(s) {
			out = append(out, s)
		}
	}
	return out
}

// hasWordChar filters separator lines such as "---" or "```".
func hasWordChar(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
