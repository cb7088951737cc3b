// Package scenario folds test-case records into deduplicated BDD scenarios
// and renders them as Gherkin.
package scenario

import (
	"log/slog"
	"strings"

	"github.com/chriserin/bddgen/internal/model"
	"github.com/chriserin/bddgen/internal/testcase"
)

// DefaultFeature labels scenarios when no feature name is configured.
const DefaultFeature = "Application Functionality"

// Entry is one scenario keyed by its test-case description.
type Entry struct {
	Description string
	Feature     string
	Steps       []string // every contributing record's steps, in processing order
	FinalResult string   // last non-empty result line seen
}

// Aggregator accumulates records across every story of a run.
type Aggregator struct {
	feature string
	logger  *slog.Logger
	index   map[string]int
	entries []Entry
	dropped int
}

// NewAggregator returns an empty aggregator. An empty feature uses
// DefaultFeature; a nil logger uses slog.Default().
func NewAggregator(feature string, logger *slog.Logger) *Aggregator {
	if feature == "" {
		feature = DefaultFeature
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{feature: feature, logger: logger, index: map[string]int{}}
}

// Add folds records into the aggregate. Steps from records sharing a
// description are appended; the final result is last-write-wins.
func (a *Aggregator) Add(records ...testcase.Record) {
	for _, r := range records {
		key := Key(r.Description)
		if key == "" {
			a.dropped++
			a.logger.Info("skipping record without description", "story", r.StoryID, "seq", r.Seq)
			continue
		}

		i, ok := a.index[key]
		if !ok {
			i = len(a.entries)
			a.index[key] = i
			a.entries = append(a.entries, Entry{Description: key, Feature: a.feature})
		}
		e := &a.entries[i]

		if r.FailedSoft() {
			a.logger.Debug("fail-soft record contributes no steps", "story", r.StoryID)
			continue
		}

		if usable(r.Steps) {
			for _, line := range r.Steps {
				if s := testcase.Normalize(line); s != "" {
					e.Steps = append(e.Steps, s)
				}
			}
		} else if len(r.Steps) > 0 {
			a.logger.Warn("skipping error step content", "description", key, "story", r.StoryID)
		}

		if usable(r.Results) {
			for j := len(r.Results) - 1; j >= 0; j-- {
				if s := testcase.Normalize(r.Results[j]); s != "" {
					e.FinalResult = s
					break
				}
			}
		} else if len(r.Results) > 0 {
			a.logger.Warn("skipping error result content", "description", key, "story", r.StoryID)
		}
	}
}

// usable reports whether a step or result field carries content rather than
// an error marker left by older tooling.
func usable(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	_, sentinel := model.ParseSentinel(strings.Join(lines, "\n"))
	return !sentinel
}

// Entries returns the scenarios in first-seen order.
func (a *Aggregator) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	for i, e := range a.entries {
		e.Steps = append([]string(nil), e.Steps...)
		out[i] = e
	}
	return out
}

// Len is the number of distinct scenarios.
func (a *Aggregator) Len() int { return len(a.entries) }

// Dropped is the number of records skipped for a blank description.
func (a *Aggregator) Dropped() int { return a.dropped }

// Key is the aggregation key for a description: trimmed and case-sensitive.
// Internal spacing is significant.
func Key(description string) string {
	return strings.TrimSpace(description)
}

// Title is the key as it appears on a Scenario: line.
func (e Entry) Title() string {
	return strings.Join(strings.Fields(e.Description), " ")
}
