package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chriserin/bddgen/internal/model"
	"github.com/chriserin/bddgen/internal/parser"
)

const (
	// DefaultPrecondition opens every locally rendered scenario.
	DefaultPrecondition = "User provided with application URL"

	whenPlaceholder = "When the system processes the request"
	thenPlaceholder = "Then the expected outcome should be achieved"

	// FeatureFile is the rendered artifact's file name.
	FeatureFile = "feature_file.feature"
)

// Mode names the path that produced a Rendering.
type Mode string

const (
	ModeModel Mode = "model"
	ModeLocal Mode = "local"
)

// Rendering is the Gherkin text of a run and the steps it contains.
type Rendering struct {
	Text       string
	Vocabulary *Vocabulary
	Mode       Mode
	Warnings   []string
}

// Synthesizer renders aggregated entries as Gherkin, through the model when
// it is usable and deterministically otherwise.
type Synthesizer struct {
	svc          model.Service
	useModel     bool
	precondition string
	logger       *slog.Logger
}

// NewSynthesizer builds a synthesizer. useModel is decided by the caller;
// the synthesizer does not probe the service.
func NewSynthesizer(svc model.Service, useModel bool, precondition string, logger *slog.Logger) *Synthesizer {
	if precondition == "" {
		precondition = DefaultPrecondition
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{svc: svc, useModel: useModel && svc != nil, precondition: precondition, logger: logger}
}

// Render never fails: any problem on the model path falls back to local
// rendering and is reported in Warnings.
func (s *Synthesizer) Render(ctx context.Context, entries []Entry) Rendering {
	var warnings []string
	if s.useModel && len(entries) > 0 {
		r, err := s.renderModel(ctx, entries)
		if err == nil {
			return r
		}
		s.logger.Warn("model rewrite failed, rendering locally", "err", err)
		warnings = append(r.Warnings, fmt.Sprintf("model rewrite failed: %v", err))
	}

	text, vocab := RenderLocal(entries, s.precondition)
	return Rendering{Text: text, Vocabulary: vocab, Mode: ModeLocal, Warnings: warnings}
}

func (s *Synthesizer) renderModel(ctx context.Context, entries []Entry) (r Rendering, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	resp := model.Call(ctx, s.svc, Prompt(entries, s.precondition))
	if resp.Failed() {
		return r, fmt.Errorf("%s: %w", resp.Kind, resp.Err)
	}

	body, fenced := model.ExtractFence(resp.Text, "gherkin")
	if !fenced {
		s.logger.Warn("gherkin fence not found, using raw response")
		r.Warnings = append(r.Warnings, "gherkin fence not found; used raw response")
	}
	if _, err := parser.Validate(FeatureFile, []byte(body)); err != nil {
		return r, fmt.Errorf("invalid gherkin: %w", err)
	}

	r.Vocabulary = NewVocabulary()
	r.Vocabulary.CollectSteps(body)
	r.Text = body + "\n"
	r.Mode = ModeModel
	return r, nil
}

// RenderLocal renders entries with the fixed layout: two spaces before
// Scenario:, four before each step. Output is byte-identical for identical
// input.
func RenderLocal(entries []Entry, precondition string) (string, *Vocabulary) {
	if precondition == "" {
		precondition = DefaultPrecondition
	}
	vocab := NewVocabulary()
	var b strings.Builder
	seen := map[string]bool{}

	step := func(line string) {
		b.WriteString("    ")
		b.WriteString(line)
		b.WriteString("\n")
		vocab.Add(line)
	}

	for _, e := range entries {
		feature := e.Feature
		if feature == "" {
			feature = DefaultFeature
		}
		if !seen[feature] {
			seen[feature] = true
			fmt.Fprintf(&b, "Feature: %s\n\n", feature)
		}

		fmt.Fprintf(&b, "  Scenario: %s\n", e.Title())
		step("Given " + precondition)
		if len(e.Steps) == 0 {
			step(whenPlaceholder)
		}
		for i, s := range e.Steps {
			if i == 0 {
				step("When " + s)
			} else {
				step("And " + s)
			}
		}
		if e.FinalResult != "" {
			step("Then " + e.FinalResult)
		} else {
			step(thenPlaceholder)
		}
		b.WriteString("\n")
	}
	return b.String(), vocab
}
