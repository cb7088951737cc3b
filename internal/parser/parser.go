package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`@[^@\s]+`)

var stepKeywords = []string{"Given", "When", "Then", "And", "But", "*"}

// Scenario keywords and their synonyms, longest first.
var (
	outlineKeywords  = []string{"Scenario Outline:", "Scenario Template:"}
	scenarioKeywords = []string{"Scenario:", "Example:"}
	examplesKeywords = []string{"Examples:", "Scenarios:"}
)

// Parse parses a .feature file and returns a Document AST and any parse errors.
func Parse(filename string, content []byte) (*Document, []ParseError) {
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	p := &parser{lines: lines}

	doc := &Document{}
	feature := &Feature{}
	doc.Feature = feature

	p.skipBlank()

	// Collect feature-level tags
	var featureTags []Tag
	for p.i < len(lines) {
		trimmed := strings.TrimSpace(lines[p.i])
		if isTagLine(trimmed) {
			featureTags = append(featureTags, parseTags(trimmed)...)
			p.i++
			continue
		}
		if trimmed == "" || isComment(trimmed) {
			p.i++
			continue
		}
		break
	}
	feature.Header.Tags = featureTags

	if p.i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[p.i]), "Feature:") {
		trimmed := strings.TrimSpace(lines[p.i])
		feature.Header.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, "Feature:"))
		feature.Header.Line = p.i + 1
		p.i++

		feature.Header.Description = p.description()
	} else {
		// No Feature: line, use filename without extension
		feature.Header.Name = filenameWithoutExt(filename)
	}

	// Body loop
	var pendingTags []Tag
	var rule *Rule
	for p.i < len(lines) {
		trimmed := strings.TrimSpace(lines[p.i])

		switch {
		case trimmed == "" || isComment(trimmed):
			p.i++

		case isDocStringDelimiter(trimmed):
			p.addError("doc string outside a step")
			p.i = skipDocString(lines, p.i)

		case isTagLine(trimmed):
			pendingTags = append(pendingTags, parseTags(trimmed)...)
			p.i++

		case strings.HasPrefix(trimmed, "Feature:"):
			p.addError("multiple Feature: lines")
			p.i++
			p.i = consumeBlock(lines, p.i)

		case strings.HasPrefix(trimmed, "Background:"):
			pendingTags = nil // Background doesn't get tags
			owner := &feature.Background
			if rule != nil {
				owner = &rule.Background
			}
			if *owner != nil {
				p.addError("multiple Background sections")
			}
			p.i++
			desc, groups, _ := p.body(false)
			*owner = &Background{Description: desc, StepGroups: groups}

		case scenarioKeyword(trimmed) != "":
			keyword := scenarioKeyword(trimmed)
			outline := hasPrefix(trimmed, outlineKeywords)
			sd := ScenarioDefinition{
				Tags:    pendingTags,
				Outline: outline,
				Line:    p.i + 1,
			}
			if rule != nil {
				sd.Rule = rule.Name
			}
			sd.Scenario.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, keyword))
			pendingTags = nil
			p.i++
			sd.Scenario.Description, sd.Scenario.StepGroups, sd.Examples = p.body(outline)
			if outline && len(sd.Examples) == 0 {
				p.errors = append(p.errors, ParseError{Line: sd.Line, Message: "Scenario Outline has no Examples"})
			}
			feature.Scenarios = append(feature.Scenarios, sd)

		case strings.HasPrefix(trimmed, "Rule:"):
			feature.Rules = append(feature.Rules, Rule{
				Tags: pendingTags,
				Name: strings.TrimSpace(strings.TrimPrefix(trimmed, "Rule:")),
				Line: p.i + 1,
			})
			rule = &feature.Rules[len(feature.Rules)-1]
			pendingTags = nil
			p.i++
			rule.Description = p.description()

		case hasPrefix(trimmed, examplesKeywords):
			p.addError("Examples outside a Scenario Outline")
			p.i++
			p.i = consumeBlock(lines, p.i)

		case isStep(trimmed):
			p.addError("step outside a scenario")
			p.i++

		default:
			p.addError(fmt.Sprintf("unexpected line %q", trimmed))
			p.i++
		}
	}

	return doc, p.errors
}

type parser struct {
	lines  []string
	i      int
	errors []ParseError
}

func (p *parser) addError(msg string) {
	p.errors = append(p.errors, ParseError{Line: p.i + 1, Message: msg})
}

func (p *parser) skipBlank() {
	for p.i < len(p.lines) {
		trimmed := strings.TrimSpace(p.lines[p.i])
		if trimmed != "" && !isComment(trimmed) {
			return
		}
		p.i++
	}
}

// description reads free text up to the next keyword, tag or step.
func (p *parser) description() string {
	var descLines []string
	for p.i < len(p.lines) {
		trimmed := strings.TrimSpace(p.lines[p.i])
		if isKeyword(trimmed) || isTagLine(trimmed) || isStep(trimmed) {
			break
		}
		descLines = append(descLines, p.lines[p.i])
		p.i++
	}
	return strings.TrimSpace(strings.Join(descLines, "\n"))
}

// body reads the description, steps and (for outlines) example tables of a
// Background or Scenario, stopping at the next section keyword or at a tag
// line that introduces one.
func (p *parser) body(allowExamples bool) (string, []StepGroup, []DataTable) {
	var descLines []string
	var groups []StepGroup
	var examples []DataTable

	for p.i < len(p.lines) {
		trimmed := strings.TrimSpace(p.lines[p.i])

		switch {
		case trimmed == "" || isComment(trimmed):
			p.i++

		case isKeyword(trimmed) && !hasPrefix(trimmed, examplesKeywords):
			return strings.Join(descLines, "\n"), groups, examples

		case hasPrefix(trimmed, examplesKeywords):
			if !allowExamples {
				return strings.Join(descLines, "\n"), groups, examples
			}
			p.i++
			p.skipBlank()
			if table := p.table(); table != nil {
				examples = append(examples, *table)
			} else {
				p.addError("Examples without a table")
			}

		case isTagLine(trimmed):
			if tagPrecedesKeyword(p.lines, p.i) {
				return strings.Join(descLines, "\n"), groups, examples
			}
			p.i++

		case isStep(trimmed):
			step := p.step()
			if len(groups) == 0 || isPrimary(step.Keyword) {
				groups = append(groups, StepGroup{Step: step})
			} else {
				last := &groups[len(groups)-1]
				last.AltSteps = append(last.AltSteps, step)
			}

		case isDocStringDelimiter(trimmed):
			p.addError("doc string without a step")
			p.i = skipDocString(p.lines, p.i)

		case strings.HasPrefix(trimmed, "|"):
			p.addError("data table without a step")
			p.table()

		default:
			if len(groups) > 0 {
				p.addError(fmt.Sprintf("unexpected line %q", trimmed))
			} else {
				descLines = append(descLines, trimmed)
			}
			p.i++
		}
	}
	return strings.Join(descLines, "\n"), groups, examples
}

// step reads the step at p.i and any argument directly beneath it.
func (p *parser) step() Step {
	trimmed := strings.TrimSpace(p.lines[p.i])
	keyword, text := splitStep(trimmed)
	st := Step{Keyword: keyword, Text: text, Line: p.i + 1}
	p.i++

	p.skipBlank()
	if p.i >= len(p.lines) {
		return st
	}
	next := strings.TrimSpace(p.lines[p.i])
	switch {
	case isDocStringDelimiter(next):
		st.Argument = &StepArgument{DocString: p.docString()}
	case strings.HasPrefix(next, "|"):
		st.Argument = &StepArgument{DataTable: p.table()}
	}
	return st
}

func (p *parser) docString() *DocString {
	opener := p.lines[p.i]
	trimmed := strings.TrimSpace(opener)
	delimiter := `"""`
	if strings.HasPrefix(trimmed, "```") {
		delimiter = "```"
	}
	indent := len(opener) - len(strings.TrimLeft(opener, " \t"))
	ds := &DocString{MediaType: strings.TrimSpace(strings.TrimPrefix(trimmed, delimiter))}
	start := p.i + 1

	var body []string
	for j := start; j < len(p.lines); j++ {
		if strings.TrimSpace(p.lines[j]) == delimiter {
			ds.Content = strings.Join(body, "\n")
			p.i = j + 1
			return ds
		}
		line := p.lines[j]
		if len(line) >= indent && strings.TrimSpace(line[:indent]) == "" {
			line = line[indent:]
		} else {
			line = strings.TrimLeft(line, " \t")
		}
		body = append(body, line)
	}
	p.addError("unterminated doc string")
	p.i = len(p.lines)
	ds.Content = strings.Join(body, "\n")
	return ds
}

// table reads consecutive "|" rows. It returns nil if p.i is not on a row.
func (p *parser) table() *DataTable {
	var rows [][]string
	for p.i < len(p.lines) {
		trimmed := strings.TrimSpace(p.lines[p.i])
		if !strings.HasPrefix(trimmed, "|") {
			break
		}
		if !strings.HasSuffix(trimmed, "|") || len(trimmed) == 1 {
			p.addError("unterminated table row")
		}
		rows = append(rows, splitRow(trimmed))
		p.i++
	}
	if len(rows) == 0 {
		return nil
	}
	return &DataTable{HeaderRow: rows[0], Rows: rows[1:]}
}

func splitRow(trimmed string) []string {
	inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "|"), "|")
	cells := strings.Split(inner, "|")
	for k, c := range cells {
		cells[k] = strings.TrimSpace(c)
	}
	return cells
}

func splitStep(trimmed string) (string, string) {
	for _, kw := range stepKeywords {
		if trimmed == kw {
			return kw, ""
		}
		if strings.HasPrefix(trimmed, kw+" ") {
			return kw, strings.TrimSpace(trimmed[len(kw):])
		}
	}
	return "", trimmed
}

func isStep(trimmed string) bool {
	kw, _ := splitStep(trimmed)
	return kw != ""
}

func isPrimary(keyword string) bool {
	return keyword == "Given" || keyword == "When" || keyword == "Then"
}

func parseTags(line string) []Tag {
	matches := tagPattern.FindAllString(line, -1)
	var tags []Tag
	for _, m := range matches {
		tags = append(tags, Tag{Name: m})
	}
	return tags
}

func isTagLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "@")
}

func isComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#")
}

func isKeyword(trimmed string) bool {
	return strings.HasPrefix(trimmed, "Feature:") ||
		strings.HasPrefix(trimmed, "Background:") ||
		strings.HasPrefix(trimmed, "Rule:") ||
		scenarioKeyword(trimmed) != "" ||
		hasPrefix(trimmed, examplesKeywords)
}

// scenarioKeyword returns the scenario or outline keyword trimmed starts
// with, or "".
func scenarioKeyword(trimmed string) string {
	for _, kw := range outlineKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return kw
		}
	}
	for _, kw := range scenarioKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return kw
		}
	}
	return ""
}

func hasPrefix(trimmed string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

func isDocStringDelimiter(trimmed string) bool {
	return strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "```")
}

// skipDocString advances past a doc string block. i points at the opening delimiter.
// Returns the index of the line after the closing delimiter.
func skipDocString(lines []string, i int) int {
	opener := strings.TrimSpace(lines[i])
	delimiter := `"""`
	if strings.HasPrefix(opener, "```") {
		delimiter = "```"
	}
	i++ // move past opening delimiter
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) == delimiter {
			return i + 1 // past the closing delimiter
		}
		i++
	}
	return i // EOF without closing delimiter
}

// consumeBlock advances past content lines, skipping over doc strings,
// until the next keyword, tag line, or EOF.
func consumeBlock(lines []string, i int) int {
	for i < len(lines) {
		t := strings.TrimSpace(lines[i])
		if isDocStringDelimiter(t) {
			i = skipDocString(lines, i)
			continue
		}
		if (isKeyword(t) && !hasPrefix(t, examplesKeywords)) || isTagLine(t) {
			break
		}
		i++
	}
	return i
}

// tagPrecedesKeyword checks if a tag line at index i is followed by a section keyword.
func tagPrecedesKeyword(lines []string, i int) bool {
	for j := i + 1; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" || isComment(t) || isTagLine(t) {
			continue
		}
		return isKeyword(t)
	}
	return false
}
