// Package pipeline sequences the two generation phases: user stories to test
// cases, then test cases to Gherkin and downstream automation files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/chriserin/bddgen/internal/model"
	"github.com/chriserin/bddgen/internal/scenario"
	"github.com/chriserin/bddgen/internal/sheet"
	"github.com/chriserin/bddgen/internal/testcase"
)

// ArtifactsDir holds the feature file and generated automation code.
const ArtifactsDir = "BDD_Automation_Files"

// ErrAborted wraps every error that ends a run in ErrorAborted.
var ErrAborted = errors.New("run aborted")

// Store persists run state and artifacts. The runner never calls it
// concurrently, though UpdateRun may arrive from emitter goroutines.
type Store interface {
	CreateRun(id, source, state string) error
	UpdateRun(id, state string, progress int, errMsg string) error
	SaveTestCases(runID string, stories int, records []testcase.Record) error
	SaveFeature(runID, path, mode, content string, steps int) error
}

// Emitter turns the sorted step vocabulary into automation files and returns
// the paths written. Failures of single files are reported in err while the
// rest are still written.
type Emitter interface {
	Emit(ctx context.Context, steps []string, progress func(done, total int)) ([]string, error)
}

// ProgressFunc observes state and progress changes.
type ProgressFunc func(state State, percent int, message string)

// RunContext is everything one run needs. Nothing is read from globals.
type RunContext struct {
	ID           string // generated when empty
	Resume       bool   // ID names a run already in Store
	InputPath    string
	OutputDir    string
	Feature      string
	Precondition string

	// Model is nil when the service is unavailable. It should already carry
	// the retry policy.
	Model   model.Service
	Emitter Emitter
	Store   Store
	Logger  *slog.Logger
	OnEvent ProgressFunc
}

// Result is what phase two produced.
type Result struct {
	RunID       string
	FeaturePath string
	Rendering   scenario.Rendering
	Scenarios   int
	Outcome     Outcome
	Files       []string
	Warnings    []string
}

// Runner executes one run. State and Progress are safe to read from other
// goroutines while it works.
type Runner struct {
	rc      RunContext
	logger  *slog.Logger
	created bool

	// pub orders publishes so observers see progress in the order it was
	// raised. Taken before mu.
	pub sync.Mutex

	mu       sync.Mutex
	state    State
	progress int
	result   *Result
	err      error
	done     chan struct{}
}

func NewRunner(rc RunContext) *Runner {
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
	if rc.Logger == nil {
		rc.Logger = slog.Default()
	}
	return &Runner{
		rc:      rc,
		logger:  rc.Logger.With("run", rc.ID),
		created: rc.Resume,
	}
}

func (r *Runner) ID() string { return r.rc.ID }

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Progress is in [0,100] and never decreases.
func (r *Runner) Progress() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Run executes both phases.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	set, err := r.GenerateTestCases(ctx)
	if err != nil {
		return nil, err
	}
	return r.SynthesizeScenarios(ctx, set.Records)
}

// Start runs both phases on a new goroutine. The returned channel closes when
// the run ends; Wait returns its outcome.
func (r *Runner) Start(ctx context.Context) <-chan struct{} {
	r.mu.Lock()
	if r.done == nil {
		r.done = make(chan struct{})
		go func() {
			res, err := r.Run(ctx)
			r.mu.Lock()
			r.result, r.err = res, err
			r.mu.Unlock()
			close(r.done)
		}()
	}
	done := r.done
	r.mu.Unlock()
	return done
}

// Wait blocks until a started run ends.
func (r *Runner) Wait() (*Result, error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil, errors.New("run not started")
	}
	<-done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// GenerateTestCases is phase one: read stories, ask the model for each, and
// parse every response into records. A failing story degrades to a fail-soft
// record; only input errors and cancellation abort.
func (r *Runner) GenerateTestCases(ctx context.Context) (*testcase.Set, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	if err := r.transition(ReadingInput, 0, "reading "+filepath.Base(r.rc.InputPath)); err != nil {
		return nil, err
	}

	if err := sheet.ValidateInput(r.rc.InputPath); err != nil {
		return nil, r.abort(err)
	}
	stories, err := sheet.ReadStories(r.rc.InputPath, r.logger)
	if err != nil {
		return nil, r.abort(err)
	}
	if len(stories) == 0 {
		return nil, r.abort(errors.New("no user stories found"))
	}

	if err := r.transition(ParsingStories, 0, fmt.Sprintf("%d stories", len(stories))); err != nil {
		return nil, err
	}

	set := &testcase.Set{Stories: len(stories)}
	for i, story := range stories {
		if err := ctx.Err(); err != nil {
			return nil, r.abort(err)
		}

		resp := model.Call(ctx, r.rc.Model, testcase.Prompt(story))
		if err := ctx.Err(); err != nil {
			return nil, r.abort(err)
		}
		if resp.Failed() {
			r.logger.Warn("test case generation degraded", "story", story.ID, "kind", resp.Kind, "err", resp.Err)
		}
		records, strategy := testcase.ParseWithStrategy(resp, story.ID, story.Title)
		r.logger.Debug("parsed story", "story", story.ID, "strategy", strategy, "records", len(records))
		set.Records = append(set.Records, records...)

		r.advance((i+1)*50/len(stories), fmt.Sprintf("story %d of %d: %s", i+1, len(stories), story.ID))
	}

	path := filepath.Join(r.rc.OutputDir, sheet.TestCasesFile)
	if err := sheet.WriteTestCases(path, set.Records); err != nil {
		return nil, r.abort(err)
	}
	if r.rc.Store != nil {
		if err := r.rc.Store.SaveTestCases(r.rc.ID, set.Stories, set.Records); err != nil {
			return nil, r.abort(err)
		}
	}
	if n := set.Degraded(); n > 0 {
		r.logger.Warn("some stories need manual test cases", "degraded", n, "stories", set.Stories)
	}

	if err := r.transition(TestCasesReady, 50, fmt.Sprintf("%d test cases written to %s", len(set.Records), path)); err != nil {
		return nil, err
	}
	return set, nil
}

// SynthesizeScenarios is phase two. records may come from GenerateTestCases,
// a workbook, or the store.
func (r *Runner) SynthesizeScenarios(ctx context.Context, records []testcase.Record) (*Result, error) {
	if err := r.begin(); err != nil {
		return nil, err
	}
	if r.State() == Idle {
		if err := r.transition(TestCasesReady, 50, fmt.Sprintf("%d test cases loaded", len(records))); err != nil {
			return nil, err
		}
	}
	if err := r.transition(SynthesizingScenarios, 50, "aggregating scenarios"); err != nil {
		return nil, err
	}

	agg := scenario.NewAggregator(r.rc.Feature, r.logger)
	agg.Add(records...)
	entries := agg.Entries()
	res := &Result{RunID: r.rc.ID, Scenarios: len(entries)}
	r.advance(55, fmt.Sprintf("%d scenarios", len(entries)))

	if len(entries) == 0 {
		res.Outcome = NothingToEmit
		res.Warnings = append(res.Warnings, "no valid scenarios found in the test cases")
		if err := r.transition(Done, 100, "nothing to render"); err != nil {
			return nil, err
		}
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, r.abort(err)
	}
	if err := r.transition(RenderingArtifacts, 60, "rendering Gherkin"); err != nil {
		return nil, err
	}

	synth := scenario.NewSynthesizer(r.rc.Model, r.rc.Model != nil, r.rc.Precondition, r.logger)
	res.Rendering = synth.Render(ctx, entries)
	res.Warnings = append(res.Warnings, res.Rendering.Warnings...)

	dir := filepath.Join(r.rc.OutputDir, ArtifactsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, r.abort(fmt.Errorf("creating %s: %w", dir, err))
	}
	res.FeaturePath = filepath.Join(dir, scenario.FeatureFile)
	if err := os.WriteFile(res.FeaturePath, []byte(res.Rendering.Text), 0o644); err != nil {
		return nil, r.abort(fmt.Errorf("writing feature file: %w", err))
	}
	if r.rc.Store != nil {
		vocab := res.Rendering.Vocabulary.Len()
		if err := r.rc.Store.SaveFeature(r.rc.ID, res.FeaturePath, string(res.Rendering.Mode), res.Rendering.Text, vocab); err != nil {
			return nil, r.abort(err)
		}
	}
	r.advance(75, "feature file written to "+res.FeaturePath)

	switch {
	case res.Rendering.Vocabulary.Len() == 0:
		res.Outcome = NothingToEmit
	case r.rc.Model == nil || r.rc.Emitter == nil:
		res.Outcome = EmitSkipped
		r.logger.Info("model unavailable, skipping automation files")
	default:
		files, err := r.rc.Emitter.Emit(ctx, res.Rendering.Vocabulary.Sorted(), func(done, total int) {
			if total > 0 {
				r.advance(75+done*24/total, fmt.Sprintf("automation file %d of %d", done, total))
			}
		})
		if err != nil {
			r.logger.Warn("some automation files were not generated", "err", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("automation files: %v", err))
		}
		res.Files = files
		res.Outcome = Emitted
	}

	if err := r.transition(Done, 100, string(res.Outcome)); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) begin() error {
	if r.created || r.rc.Store == nil {
		r.created = true
		return nil
	}
	if err := r.rc.Store.CreateRun(r.rc.ID, r.rc.InputPath, Idle.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	r.created = true
	return nil
}

// transition moves to state and raises progress to at least pct.
func (r *Runner) transition(to State, pct int, msg string) error {
	r.pub.Lock()
	defer r.pub.Unlock()
	r.mu.Lock()
	from := r.state
	if !CanTransition(from, to) {
		r.mu.Unlock()
		return fmt.Errorf("invalid transition %s -> %s", from, to)
	}
	r.state = to
	if pct > r.progress {
		r.progress = pct
	}
	progress := r.progress
	r.mu.Unlock()

	r.logger.Debug("state", "from", from, "to", to, "progress", progress)
	r.publish(to, progress, msg, "")
	return nil
}

// advance raises progress within the current state.
func (r *Runner) advance(pct int, msg string) {
	r.pub.Lock()
	defer r.pub.Unlock()
	r.mu.Lock()
	if pct > 100 {
		pct = 100
	}
	if pct > r.progress {
		r.progress = pct
	}
	state, progress := r.state, r.progress
	r.mu.Unlock()
	r.publish(state, progress, msg, "")
}

// abort ends the run in ErrorAborted and returns err wrapped in ErrAborted.
func (r *Runner) abort(err error) error {
	r.pub.Lock()
	defer r.pub.Unlock()
	r.mu.Lock()
	r.state = ErrorAborted
	progress := r.progress
	r.mu.Unlock()

	r.logger.Error("run aborted", "err", err)
	r.publish(ErrorAborted, progress, err.Error(), err.Error())
	return fmt.Errorf("%w: %w", ErrAborted, err)
}

func (r *Runner) publish(state State, progress int, msg, errMsg string) {
	if r.rc.Store != nil {
		if err := r.rc.Store.UpdateRun(r.rc.ID, state.String(), progress, errMsg); err != nil {
			r.logger.Warn("recording run state", "err", err)
		}
	}
	if r.rc.OnEvent != nil {
		r.rc.OnEvent(state, progress, msg)
	}
}
