package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ParsedFile is the Layer 2 application model extracted from the AST.
type ParsedFile struct {
	Name      string
	Scenarios []ParsedScenario
	Errors    []ParseError
}

// ParsedScenario represents a single scenario extracted from a .feature file.
type ParsedScenario struct {
	Name    string   // from Scenario: line
	Tags    []string // e.g. "@smoke"
	Steps   []string // keyword and text, e.g. "When the user logs in"
	Content string   // raw text from Scenario: line to end of scenario
	Line    int      // 1-based line number of Scenario: line
}

// Transform converts a Layer 1 Document into a Layer 2 ParsedFile.
func Transform(doc *Document, filename string, content []byte, errs []ParseError) *ParsedFile {
	pf := &ParsedFile{
		Errors: errs,
	}

	if doc.Feature == nil {
		pf.Name = filenameWithoutExt(filename)
		return pf
	}
	pf.Name = doc.Feature.Header.Name

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	scenarios := doc.Feature.Scenarios

	for n, sd := range scenarios {
		ps := ParsedScenario{
			Name: sd.Scenario.Name,
			Line: sd.Line,
		}
		for _, tag := range sd.Tags {
			ps.Tags = append(ps.Tags, tag.Name)
		}
		for _, st := range sd.Scenario.Steps() {
			ps.Steps = append(ps.Steps, strings.TrimSpace(st.Keyword+" "+st.Text))
		}

		// Content runs to the next scenario or Rule, less their tags
		startLine := sd.Line - 1 // 0-based
		endLine := len(lines)
		if n+1 < len(scenarios) {
			endLine = scenarios[n+1].Line - 1
		}
		for _, r := range doc.Feature.Rules {
			if r.Line > sd.Line && r.Line-1 < endLine {
				endLine = r.Line - 1
			}
		}
		for endLine > startLine {
			t := strings.TrimSpace(lines[endLine-1])
			if t == "" || isTagLine(t) || isComment(t) {
				endLine--
			} else {
				break
			}
		}

		if startLine < len(lines) {
			ps.Content = strings.Join(lines[startLine:endLine], "\n")
		}

		pf.Scenarios = append(pf.Scenarios, ps)
	}

	return pf
}

// ErrNoScenarios reports Gherkin text without a single Scenario.
var ErrNoScenarios = errors.New("no scenarios found")

// Validate parses content and reports the first problem that makes it
// unusable as a feature file.
func Validate(filename string, content []byte) (*ParsedFile, error) {
	doc, errs := Parse(filename, content)
	pf := Transform(doc, filename, content, errs)
	if len(errs) > 0 {
		return pf, fmt.Errorf("line %d: %s", errs[0].Line, errs[0].Message)
	}
	if len(pf.Scenarios) == 0 {
		return pf, ErrNoScenarios
	}
	for _, s := range pf.Scenarios {
		if len(s.Steps) == 0 {
			return pf, fmt.Errorf("line %d: scenario %q has no steps", s.Line, s.Name)
		}
	}
	return pf, nil
}

func filenameWithoutExt(filename string) string {
	name := filename
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[:idx]
	}
	return name
}
