package scenario

import (
	"fmt"
	"strings"
)

// Prompt builds the single consolidated rewrite request for all entries.
func Prompt(entries []Entry, precondition string) string {
	var b strings.Builder
	b.WriteString("You are a software automation assistant. Generate a BDD Cucumber feature file based on the following structured test case data.\n")
	b.WriteString("For each scenario, follow these strict rules:\n")
	b.WriteString("- The 'Scenario Title' is the Scenario name.\n")
	fmt.Fprintf(&b, "- Start every scenario with the step 'Given %s'.\n", precondition)
	b.WriteString("- Translate the 'Raw Action Steps' into clear, concise Gherkin steps.\n")
	b.WriteString("  - The first action step after the Given starts with 'When'.\n")
	b.WriteString("  - Every later action step starts with 'And'.\n")
	fmt.Fprintf(&b, "- The 'Final Expected Result' is the single 'Then' step. If it is empty, use '%s'.\n", thenPlaceholder)
	b.WriteString("- Indent with 2 spaces for Scenario and 4 spaces for steps.\n")
	b.WriteString("- Do not include any remarks outside the Gherkin content.\n")
	b.WriteString("- Only provide the Gherkin content wrapped in a ```gherkin block.\n\n")
	b.WriteString("Here is the structured test case data:\n\n")

	for _, e := range entries {
		fmt.Fprintf(&b, "Feature: %s\n", e.Feature)
		fmt.Fprintf(&b, "Scenario Title: %s\n", e.Title())
		fmt.Fprintf(&b, "Raw Action Steps: %s\n", strings.Join(e.Steps, "; "))
		fmt.Fprintf(&b, "Final Expected Result: %s\n\n", e.FinalResult)
	}
	return b.String()
}
