package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	newStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// NewLine reports a file written by this run.
func NewLine(w io.Writer, path string) {
	fmt.Fprintln(w, newStyle.Render("new")+"  "+path)
}

func WarnLine(w io.Writer, msg string) {
	fmt.Fprintln(w, warnStyle.Render("warn")+" "+msg)
}

// SummaryLine closes a run's output.
func SummaryLine(w io.Writer, runID string, scenarios, files int, outcome string) {
	fmt.Fprintf(w, "run %s: %d scenarios, %d automation files (%s)\n", ShortID(runID), scenarios, files, outcome)
}

// ShortID is the prefix used to show run IDs; any unique prefix resolves.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stateStyle(state string) lipgloss.Style {
	switch state {
	case "Done":
		return newStyle
	case "ErrorAborted":
		return errStyle
	default:
		return warnStyle
	}
}

// RunRow prints one line of `bddgen status`.
func RunRow(w io.Writer, id, state string, progress, stories, degraded int, updated time.Time, stateWidth int) {
	padded := stateStyle(state).Render(state)
	if n := stateWidth - len(state); n > 0 {
		padded += strings.Repeat(" ", n)
	}
	line := fmt.Sprintf("%-8s  %s  %3d%%  %d stories", ShortID(id), padded, progress, stories)
	if degraded > 0 {
		line += " " + warnStyle.Render(fmt.Sprintf("(%d degraded)", degraded))
	}
	line += "  " + dimStyle.Render(updated.Local().Format("2006-01-02 15:04"))
	fmt.Fprintln(w, line)
}

// ErrorLine prints the stored error of an aborted run.
func ErrorLine(w io.Writer, msg string) {
	fmt.Fprintln(w, "          "+errStyle.Render(msg))
}

// CaseRow prints one test case of `bddgen list`.
func CaseRow(w io.Writer, storyID string, seq int, description string, steps int, storyWidth int) {
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		dimStyle.Render(storyID)+strings.Repeat(" ", max(storyWidth-len(storyID), 0)),
		fmt.Sprintf("%2d", seq),
		description,
		dimStyle.Render(fmt.Sprintf("(%d steps)", steps)))
}

// ShowHeader introduces a rendered feature file.
func ShowHeader(w io.Writer, runID, path, mode string) {
	fmt.Fprintln(w, boldStyle.Render("run "+ShortID(runID))+"  "+path+"  "+dimStyle.Render(mode))
}

var gherkinKeywords = []string{
	"Feature:", "Rule:", "Background:", "Scenario Outline:", "Scenario Template:",
	"Scenario:", "Example:", "Examples:", "Scenarios:",
}

var stepKeywords = []string{"Given ", "When ", "Then ", "And ", "But "}

// ShowGherkin prints Gherkin text with its keywords highlighted.
func ShowGherkin(w io.Writer, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintln(w, highlight(line))
	}
}

func highlight(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(trimmed)]
	for _, kw := range gherkinKeywords {
		if strings.HasPrefix(trimmed, kw) {
			rest := strings.TrimSpace(trimmed[len(kw):])
			if rest == "" {
				return indent + keywordStyle.Render(kw)
			}
			return indent + keywordStyle.Render(kw) + " " + boldStyle.Render(rest)
		}
	}
	for _, kw := range stepKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return indent + stepStyle.Render(strings.TrimSpace(kw)) + " " + trimmed[len(kw):]
		}
	}
	if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "@") {
		return indent + dimStyle.Render(trimmed)
	}
	return line
}

// OkLine reports a feature file that parsed.
func OkLine(w io.Writer, path string, scenarios int) {
	fmt.Fprintf(w, "%s   %s %s\n", newStyle.Render("ok"), path, dimStyle.Render(fmt.Sprintf("(%d scenarios)", scenarios)))
}

// BadLine reports a feature file that did not parse.
func BadLine(w io.Writer, path, reason string) {
	fmt.Fprintf(w, "%s  %s: %s\n", errStyle.Render("bad"), path, reason)
}
