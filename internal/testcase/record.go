package testcase

import "strings"

// Story is one caller-supplied user story.
type Story struct {
	ID                 string
	Title              string
	AcceptanceCriteria string
}

// Record is a single structured test case derived from a story.
type Record struct {
	StoryID     string
	Title       string
	Seq         int // positive, unique within a story
	Description string
	Steps       []string
	Results     []string
}

// StepText returns the steps joined one per line, as stored in the
// StepAction column.
func (r Record) StepText() string {
	return strings.Join(r.Steps, "\n")
}

// ResultText returns the expected results joined one per line.
func (r Record) ResultText() string {
	return strings.Join(r.Results, "\n")
}

// FailedSoft reports whether r is the placeholder emitted for a story whose
// generation failed.
func (r Record) FailedSoft() bool {
	return strings.HasPrefix(r.Description, failedPrefix)
}

// Set is the phase-one handoff: every record produced for a batch of stories,
// in story-processing order.
type Set struct {
	Stories int
	Records []Record
}

// Degraded counts records that are fail-soft placeholders.
func (s *Set) Degraded() int {
	n := 0
	for _, r := range s.Records {
		if r.FailedSoft() {
			n++
		}
	}
	return n
}
