package scenario

import (
	"sort"
	"strings"
)

var vocabularyKeywords = []string{"Given ", "When ", "Then ", "And "}

// Vocabulary is the set of unique rendered step lines of a run.
type Vocabulary struct {
	steps map[string]struct{}
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{steps: map[string]struct{}{}}
}

// Add records a step line. Blank lines are ignored.
func (v *Vocabulary) Add(line string) {
	if line = strings.TrimSpace(line); line != "" {
		v.steps[line] = struct{}{}
	}
}

func (v *Vocabulary) Has(line string) bool {
	_, ok := v.steps[strings.TrimSpace(line)]
	return ok
}

func (v *Vocabulary) Len() int { return len(v.steps) }

// Sorted returns the steps in lexicographic order.
func (v *Vocabulary) Sorted() []string {
	out := make([]string, 0, len(v.steps))
	for s := range v.steps {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CollectSteps adds every line of text that starts with a step keyword.
func (v *Vocabulary) CollectSteps(text string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, kw := range vocabularyKeywords {
			if strings.HasPrefix(line, kw) {
				v.Add(line)
				break
			}
		}
	}
}
