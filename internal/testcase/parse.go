package testcase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chriserin/bddgen/internal/model"
)

const (
	failedPrefix = "Test case generation failed for "

	// BlobLimit bounds the raw text kept by the single-blob strategy.
	BlobLimit = 1000
	// TruncationMarker is appended as its own step when the blob was cut.
	TruncationMarker = "[truncated]"

	defaultSteps   = "No step actions specified"
	defaultResults = "Expected results not specified"
	blobResult     = "All test steps should execute successfully as per acceptance criteria"
)

// Strategy extracts records from response text. Extract returns nil when the
// text does not fit the strategy's grammar. StoryID and Title are stamped by
// the caller.
type Strategy struct {
	Name    string
	Extract func(text, title string) []Record
}

// strategies is the single place the fallback order is declared: each entry
// is strictly more permissive than the one before it.
var strategies = []Strategy{
	{Name: "strict", Extract: extractStrict},
	{Name: "block-split", Extract: extractBlocks},
	{Name: "single-blob", Extract: extractBlob},
}

// Strategies returns the ordered extraction strategies.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}

// FailSoft is the record emitted for a story whose generation failed.
func FailSoft(storyID, title string) Record {
	return Record{
		StoryID:     storyID,
		Title:       title,
		Seq:         1,
		Description: failedPrefix + title,
		Steps:       []string{"Manual test case creation required"},
		Results:     []string{"Test case should be created manually"},
	}
}

// Parse turns one model response into ordered test-case records. It always
// returns at least one record.
func Parse(resp model.Response, storyID, title string) []Record {
	records, _ := ParseWithStrategy(resp, storyID, title)
	return records
}

// ParseWithStrategy is Parse that also names the strategy that produced the
// records ("fail-soft" for error responses, "recovered" after a panic).
func ParseWithStrategy(resp model.Response, storyID, title string) (records []Record, strategy string) {
	if resp.Failed() {
		return []Record{FailSoft(storyID, title)}, "fail-soft"
	}

	defer func() {
		if r := recover(); r != nil {
			records = stamp(extractBlob(resp.Text, title), storyID, title)
			strategy = "recovered"
		}
	}()

	body := TrimPreamble(resp.Text)
	for _, s := range strategies {
		if recs := s.Extract(body, title); len(recs) > 0 {
			return stamp(recs, storyID, title), s.Name
		}
	}
	return stamp(extractBlob(body, title), storyID, title), "single-blob"
}

// TrimPreamble drops chatter before a "Test Cases:" header and any worked
// example the model appends after its answer.
func TrimPreamble(text string) string {
	if i := strings.Index(text, "Test Cases:"); i >= 0 {
		text = text[i+len("Test Cases:"):]
	}
	if i := strings.Index(text, "Example (for clarity,"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func stamp(recs []Record, storyID, title string) []Record {
	used := make(map[int]bool, len(recs))
	next := 1
	for i := range recs {
		recs[i].StoryID = storyID
		recs[i].Title = title
		if recs[i].Seq <= 0 || used[recs[i].Seq] {
			for used[next] {
				next++
			}
			recs[i].Seq = next
		}
		used[recs[i].Seq] = true
	}
	return recs
}

// block is the text between two sequence markers.
type block struct {
	marker string // raw marker value, may be empty
	body   string
	index  int // 1-based position in the response
}

func splitBlocks(text string, marker *regexp.Regexp) []block {
	locs := marker.FindAllStringSubmatchIndex(text, -1)
	blocks := make([]block, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, block{
			marker: text[loc[2]:loc[3]],
			body:   text[loc[1]:end],
			index:  i + 1,
		})
	}
	return blocks
}

// seqFromMarker coerces a marker value to a positive integer. An empty value
// falls back to the block position; a non-numeric value is an error.
func seqFromMarker(value string, index int) (int, error) {
	v := strings.TrimSpace(value)
	v = strings.TrimPrefix(v, "#")
	v = strings.TrimRight(v, ".):")
	if v == "" {
		return index, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("sequence marker %q is not a number", value)
	}
	if n <= 0 {
		return index, nil
	}
	return n, nil
}

// field is a labeled span within a block.
type field struct {
	kind  int
	start int // label start
	end   int // label end, content begins here
}

const (
	fieldDescription = iota + 1
	fieldSteps
	fieldResults
)

// fields locates labels using re, whose groups 1..3 name description, steps
// and results respectively. Only the first occurrence of each label counts.
func fields(body string, re *regexp.Regexp) map[int]string {
	var found []field
	seen := map[int]bool{}
	for _, loc := range re.FindAllStringSubmatchIndex(body, -1) {
		for kind := fieldDescription; kind <= fieldResults; kind++ {
			if loc[2*kind] >= 0 {
				if !seen[kind] {
					found = append(found, field{kind: kind, start: loc[0], end: loc[1]})
					seen[kind] = true
				}
				break
			}
		}
	}

	out := make(map[int]string, len(found))
	for i, f := range found {
		end := len(body)
		if i+1 < len(found) {
			end = found[i+1].start
		}
		out[f.kind] = strings.TrimSpace(body[f.end:end])
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ---------------------------------------------------------------------------
// strict
// ---------------------------------------------------------------------------

var (
	strictMarker = regexp.MustCompile(`(?mi)^[ \t]*S\.No:[ \t]*(\S+)[ \t]*$`)
	strictLabels = regexp.MustCompile(`(?mi)^[ \t]*(?:(TestCasesDescription)|(StepAction)|(ExpectedResult)):`)
)

// extractStrict captures every block that carries all three labels in order.
// Blocks are delimited by markers first, so one block's results can never
// run into the next block's description.
func extractStrict(text, _ string) []Record {
	var recs []Record
	for _, b := range splitBlocks(text, strictMarker) {
		seq, err := seqFromMarker(b.marker, b.index)
		if err != nil {
			continue
		}
		f := fields(b.body, strictLabels)
		desc, okD := f[fieldDescription]
		steps, okS := f[fieldSteps]
		results, okR := f[fieldResults]
		if !okD || !okS || !okR {
			continue
		}
		if !inOrder(b.body, strictLabels) {
			continue
		}
		rec := Record{
			Seq:         seq,
			Description: oneLine(desc),
			Steps:       splitLines(steps),
			Results:     splitLines(results),
		}
		if rec.Description == "" || (len(rec.Steps) == 0 && len(rec.Results) == 0) {
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

// inOrder reports whether the first description, steps and results labels
// appear in that order.
func inOrder(body string, re *regexp.Regexp) bool {
	last := 0
	seen := map[int]bool{}
	for _, loc := range re.FindAllStringSubmatchIndex(body, -1) {
		for kind := fieldDescription; kind <= fieldResults; kind++ {
			if loc[2*kind] >= 0 && !seen[kind] {
				if kind < last {
					return false
				}
				seen[kind] = true
				last = kind
			}
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// block-split
// ---------------------------------------------------------------------------

var (
	looseMarker = regexp.MustCompile(`(?mi)^[ \t]*\**[ \t]*S\.?[ \t]?No\b\.?[ \t]*\**[ \t]*:?[ \t]*\**[ \t]*([^\s*]*)`)
	looseLabels = regexp.MustCompile(`(?mi)^[ \t]*(?:[-*][ \t]+)?\**[ \t]*(?:(test[ \t]*cases?[ \t]*description|description)|(steps?[ \t]*actions?|steps)|(expected[ \t]*results?))[ \t]*\**[ \t]*:[ \t]*\**`)
	// inlineLabels finds the compound labels anywhere, for blocks written on
	// one line.
	inlineLabels = regexp.MustCompile(`(?i)\b(?:(test[ \t]*cases?[ \t]*description)|(steps?[ \t]*actions?)|(expected[ \t]*results?))[ \t]*\**[ \t]*:[ \t]*\**`)
)

// extractBlocks splits on every sequence marker and reads each block on its
// own, substituting defaults for missing sections.
func extractBlocks(text, title string) []Record {
	blocks := splitBlocks(text, looseMarker)
	if len(blocks) == 0 && (looseLabels.MatchString(text) || inlineLabels.MatchString(text)) {
		// labeled but unnumbered: the whole response is one block
		blocks = []block{{body: text, index: 1}}
	}

	var recs []Record
	for _, b := range blocks {
		seq, err := seqFromMarker(b.marker, b.index)
		if err != nil {
			continue
		}
		f := fields(b.body, looseLabels)
		if len(f) < fieldResults {
			if g := fields(b.body, inlineLabels); len(g) > len(f) {
				f = g
			}
		}

		rec := Record{Seq: seq, Description: oneLine(f[fieldDescription])}
		if rec.Description == "" {
			rec.Description = fmt.Sprintf("Test case %d for %s", b.index, title)
		}
		if s, ok := f[fieldSteps]; ok {
			rec.Steps = splitLines(s)
		} else {
			rec.Steps = []string{defaultSteps}
		}
		if r, ok := f[fieldResults]; ok {
			rec.Results = splitLines(r)
		} else {
			rec.Results = []string{defaultResults}
		}
		if len(rec.Steps) == 0 && len(rec.Results) == 0 {
			rec.Steps = []string{defaultSteps}
			rec.Results = []string{defaultResults}
		}
		recs = append(recs, rec)
	}
	return recs
}

// ---------------------------------------------------------------------------
// single-blob
// ---------------------------------------------------------------------------

// extractBlob keeps a bounded prefix of the raw text as the steps of one
// generic record.
func extractBlob(text, title string) []Record {
	raw, cut := truncate(text, BlobLimit)
	steps := splitLines(raw)
	if cut {
		steps = append(steps, TruncationMarker)
	}
	return []Record{{
		Seq:         1,
		Description: "Comprehensive test for " + title,
		Steps:       steps,
		Results:     []string{blobResult},
	}}
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
