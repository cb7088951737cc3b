package model

import (
	"regexp"
	"strings"
)

// ExtractFence returns the body of the first ```lang fenced block in text.
// When no such fence exists it returns the trimmed text and false.
func ExtractFence(text, lang string) (string, bool) {
	re := regexp.MustCompile("(?is)```" + regexp.QuoteMeta(lang) + "[ \t]*\r?\n(.*?)```")
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return strings.TrimSpace(text), false
}
