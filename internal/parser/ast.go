package parser

// Layer 1: Gherkin AST

type Document struct {
	Feature *Feature
}

type Feature struct {
	Header     FeatureHeader
	Background *Background
	Rules      []Rule
	Scenarios  []ScenarioDefinition // including those under a Rule
}

type FeatureHeader struct {
	Tags        []Tag
	Name        string
	Description string
	Line        int
}

// Rule groups the scenarios that follow it, up to the next Rule.
type Rule struct {
	Tags        []Tag
	Name        string
	Description string
	Background  *Background
	Line        int
}

type Background struct {
	Description string
	StepGroups  []StepGroup
}

type ScenarioDefinition struct {
	Tags     []Tag
	Scenario Scenario
	Outline  bool
	Examples []DataTable // only for outlines
	Rule     string      // name of the enclosing Rule
	Line     int         // 1-based line number of Scenario: line
}

type Scenario struct {
	Name        string
	Description string
	StepGroups  []StepGroup
}

type Tag struct {
	Name string // e.g. "@smoke"
}

// StepGroup is a primary step followed by its continuation steps.
type StepGroup struct {
	Step     Step
	AltSteps []Step // And, But, *
}

type Step struct {
	Keyword  string // Given, When, Then, And, But, *
	Text     string
	Line     int
	Argument *StepArgument
}

type StepArgument struct {
	DocString *DocString
	DataTable *DataTable
}

type DocString struct {
	MediaType string
	Content   string
}

type DataTable struct {
	HeaderRow []string
	Rows      [][]string
}

type ParseError struct {
	Line    int
	Message string
}

// Steps flattens the groups back into document order.
func (s Scenario) Steps() []Step {
	return flatten(s.StepGroups)
}

func flatten(groups []StepGroup) []Step {
	var out []Step
	for _, g := range groups {
		out = append(out, g.Step)
		out = append(out, g.AltSteps...)
	}
	return out
}
