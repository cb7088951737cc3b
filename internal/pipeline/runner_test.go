package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/chriserin/bddgen/internal/db"
	"github.com/chriserin/bddgen/internal/model"
	"github.com/chriserin/bddgen/internal/scenario"
	"github.com/chriserin/bddgen/internal/sheet"
	"github.com/chriserin/bddgen/internal/testcase"
)

const loginCases = `Test Cases:

S.No: 1
TestCasesDescription: Valid Login
StepAction:
Navigate to login page
Enter valid credentials
ExpectedResult:
Login page loads
Dashboard is shown

S.No: 2
TestCasesDescription: Invalid Login Credentials
StepAction:
Enter invalid password
ExpectedResult:
Error message displayed
`

const searchCases = `Test Cases:

S.No: 1
TestCasesDescription: Invalid Login Credentials
StepAction:
Enter unknown username
ExpectedResult:
Unknown user error displayed
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeStories(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stories.xlsx")
	f := excelize.NewFile()
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", ref, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func twoStories(t *testing.T) string {
	return writeStories(t, [][]interface{}{
		{sheet.ColStoryID, sheet.ColTitle, sheet.ColCriteria},
		{"US-1", "Login", "User can log in"},
		{"US-2", "Search", "User can search"},
	})
}

// storyModel answers test-case prompts per story and fails every other prompt,
// which sends Gherkin rendering down the local path.
func storyModel() model.Func {
	return func(_ context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "User Story ID: US-1"):
			return loginCases, nil
		case strings.Contains(prompt, "User Story ID: US-2"):
			return searchCases, nil
		}
		return "", errors.New("rewrite unavailable")
	}
}

type fakeEmitter struct {
	steps []string
	err   error
}

func (e *fakeEmitter) Emit(_ context.Context, steps []string, progress func(done, total int)) ([]string, error) {
	e.steps = steps
	progress(1, 2)
	progress(2, 2)
	return []string{"steps.js"}, e.err
}

type event struct {
	state    State
	progress int
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) observe(s State, pct int, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{s, pct})
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, e := range r.events {
		if len(out) == 0 || out[len(out)-1] != e.state {
			out = append(out, e.state)
		}
	}
	return out
}

func (r *recorder) assertMonotonic(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	last := 0
	for _, e := range r.events {
		assert.GreaterOrEqual(t, e.progress, last, "progress went backwards at %s", e.state)
		assert.LessOrEqual(t, e.progress, 100)
		last = e.progress
	}
}

func newContext(t *testing.T, input string, svc model.Service, rec *recorder) RunContext {
	return RunContext{
		InputPath: input,
		OutputDir: t.TempDir(),
		Model:     svc,
		Logger:    quietLogger(),
		OnEvent:   rec.observe,
	}
}

func TestRunner_FullRun(t *testing.T) {
	rec := &recorder{}
	emitter := &fakeEmitter{}
	rc := newContext(t, twoStories(t), storyModel(), rec)
	rc.Emitter = emitter

	r := NewRunner(rc)
	assert.NotEmpty(t, r.ID())
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []State{ReadingInput, ParsingStories, TestCasesReady, SynthesizingScenarios, RenderingArtifacts, Done}, rec.states())
	rec.assertMonotonic(t)
	assert.Equal(t, Done, r.State())
	assert.Equal(t, 100, r.Progress())

	assert.Equal(t, 2, res.Scenarios)
	assert.Equal(t, Emitted, res.Outcome)
	assert.Equal(t, []string{"steps.js"}, res.Files)
	assert.Equal(t, scenario.ModeLocal, res.Rendering.Mode)
	assert.NotEmpty(t, res.Warnings)

	written, err := os.ReadFile(res.FeaturePath)
	require.NoError(t, err)
	assert.Equal(t, res.Rendering.Text, string(written))
	assert.Equal(t, filepath.Join(rc.OutputDir, ArtifactsDir, scenario.FeatureFile), res.FeaturePath)
	assert.Contains(t, string(written), "  Scenario: Invalid Login Credentials\n")
	assert.Contains(t, string(written), "    Then Unknown user error displayed\n")
	assert.Equal(t, 1, strings.Count(string(written), "Scenario: Invalid Login Credentials"))

	assert.Equal(t, res.Rendering.Vocabulary.Sorted(), emitter.steps)
	assert.Contains(t, emitter.steps, "When Enter invalid password")

	cases, err := sheet.ReadTestCases(filepath.Join(rc.OutputDir, sheet.TestCasesFile))
	require.NoError(t, err)
	assert.Len(t, cases, 3)
}

func TestRunner_DegradedRun(t *testing.T) {
	rec := &recorder{}
	rc := newContext(t, twoStories(t), model.Func(func(context.Context, string) (string, error) {
		return "", errors.New("quota")
	}), rec)

	r := NewRunner(rc)
	set, err := r.GenerateTestCases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, set.Stories)
	assert.Equal(t, 2, set.Degraded())
	assert.Equal(t, TestCasesReady, r.State())
	assert.Equal(t, 50, r.Progress())

	res, err := r.SynthesizeScenarios(context.Background(), set.Records)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scenarios)
	assert.Contains(t, res.Rendering.Text, "    When the system processes the request\n")
	assert.Equal(t, EmitSkipped, res.Outcome)
	rec.assertMonotonic(t)
}

func TestRunner_UnavailableModel(t *testing.T) {
	rec := &recorder{}
	rc := newContext(t, twoStories(t), nil, rec)
	rc.Emitter = &fakeEmitter{}

	res, err := NewRunner(rc).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EmitSkipped, res.Outcome)
	assert.Equal(t, scenario.ModeLocal, res.Rendering.Mode)
	assert.Empty(t, res.Files)
}

func TestRunner_MissingColumnsAborts(t *testing.T) {
	rec := &recorder{}
	input := writeStories(t, [][]interface{}{
		{"ID", "Title"},
		{"US-1", "Login"},
	})
	r := NewRunner(newContext(t, input, storyModel(), rec))

	_, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrAborted)
	var mce *sheet.MissingColumnsError
	require.ErrorAs(t, err, &mce)
	assert.Equal(t, ErrorAborted, r.State())
	assert.Equal(t, []State{ReadingInput, ErrorAborted}, rec.states())
}

func TestRunner_InvalidInputAborts(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(newContext(t, filepath.Join(t.TempDir(), "missing.xlsx"), nil, rec))
	_, err := r.GenerateTestCases(context.Background())
	require.ErrorIs(t, err, ErrAborted)
	assert.ErrorContains(t, err, "does not exist")
	assert.Equal(t, ErrorAborted, r.State())
}

func TestRunner_NoStoriesAborts(t *testing.T) {
	input := writeStories(t, [][]interface{}{
		{sheet.ColStoryID, sheet.ColTitle, sheet.ColCriteria},
	})
	r := NewRunner(newContext(t, input, nil, &recorder{}))
	_, err := r.GenerateTestCases(context.Background())
	require.ErrorIs(t, err, ErrAborted)
	assert.ErrorContains(t, err, "no user stories")
}

func TestRunner_CancelledAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	svc := model.Func(func(context.Context, string) (string, error) {
		calls++
		cancel()
		return loginCases, nil
	})
	r := NewRunner(newContext(t, twoStories(t), svc, &recorder{}))

	_, err := r.Run(ctx)
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ErrorAborted, r.State())
	assert.Equal(t, 25, r.Progress())
}

func TestRunner_NothingToEmit(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(newContext(t, "", storyModel(), rec))

	res, err := r.SynthesizeScenarios(context.Background(), []testcase.Record{
		{StoryID: "US-1", Seq: 1, Description: "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, NothingToEmit, res.Outcome)
	assert.Zero(t, res.Scenarios)
	assert.Empty(t, res.FeaturePath)
	assert.Equal(t, []State{TestCasesReady, SynthesizingScenarios, Done}, rec.states())
}

func TestRunner_EmitErrorsAreWarnings(t *testing.T) {
	rc := newContext(t, "", storyModel(), &recorder{})
	rc.Emitter = &fakeEmitter{err: errors.New("pom.xml: no fence")}
	r := NewRunner(rc)

	res, err := r.SynthesizeScenarios(context.Background(), []testcase.Record{
		{StoryID: "US-1", Seq: 1, Description: "Valid Login", Steps: []string{"Open app"}, Results: []string{"App open"}},
	})
	require.NoError(t, err)
	assert.Equal(t, Emitted, res.Outcome)
	assert.Contains(t, strings.Join(res.Warnings, "\n"), "pom.xml: no fence")
	assert.Equal(t, Done, r.State())
}

func TestRunner_StartWait(t *testing.T) {
	r := NewRunner(newContext(t, twoStories(t), storyModel(), &recorder{}))
	_, err := r.Wait()
	require.Error(t, err)

	done := r.Start(context.Background())
	assert.Equal(t, done, r.Start(context.Background()))
	<-done

	res, err := r.Wait()
	require.NoError(t, err)
	assert.Equal(t, r.ID(), res.RunID)
	assert.Equal(t, Done, r.State())
}

func TestRunner_RecordsToStore(t *testing.T) {
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "bddgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	store := db.NewStore(sqlDB)

	rc := newContext(t, twoStories(t), storyModel(), &recorder{})
	rc.Store = store
	rc.ID = "run-1"
	res, err := NewRunner(rc).Run(context.Background())
	require.NoError(t, err)

	run, err := store.Run("run-1")
	require.NoError(t, err)
	assert.Equal(t, Done.String(), run.State)
	assert.Equal(t, 100, run.Progress)
	assert.Equal(t, 2, run.Stories)

	cases, err := store.TestCases("run-1")
	require.NoError(t, err)
	assert.Len(t, cases, 3)

	feature, err := store.LatestFeature("run-1")
	require.NoError(t, err)
	assert.Equal(t, res.Rendering.Text, feature.Content)
	assert.Equal(t, string(scenario.ModeLocal), feature.Mode)
}

func TestRunner_AbortIsStored(t *testing.T) {
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "bddgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	store := db.NewStore(sqlDB)

	rc := newContext(t, filepath.Join(t.TempDir(), "stories.csv"), nil, &recorder{})
	rc.Store = store
	rc.ID = "run-2"
	_, err = NewRunner(rc).Run(context.Background())
	require.ErrorIs(t, err, ErrAborted)

	run, err := store.Run("run-2")
	require.NoError(t, err)
	assert.Equal(t, ErrorAborted.String(), run.State)
	assert.NotEmpty(t, run.Error)
}

// concurrentEmitter reports every file from its own goroutine.
type concurrentEmitter struct{ files int }

func (e *concurrentEmitter) Emit(_ context.Context, _ []string, progress func(done, total int)) ([]string, error) {
	var wg sync.WaitGroup
	for i := 1; i <= e.files; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			progress(done, e.files)
		}(i)
	}
	wg.Wait()
	return nil, nil
}

// slowStore is a Store that lingers on one progress value and counts
// overlapping UpdateRun calls.
type slowStore struct {
	slowAt int

	mu       sync.Mutex
	inFlight int
	overlap  bool
	progress []int
}

func (s *slowStore) CreateRun(string, string, string) error { return nil }

func (s *slowStore) UpdateRun(_, _ string, progress int, _ string) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > 1 {
		s.overlap = true
	}
	s.mu.Unlock()

	if progress == s.slowAt {
		time.Sleep(20 * time.Millisecond)
	}

	s.mu.Lock()
	s.inFlight--
	s.progress = append(s.progress, progress)
	s.mu.Unlock()
	return nil
}

func (s *slowStore) SaveTestCases(string, int, []testcase.Record) error { return nil }

func (s *slowStore) SaveFeature(string, string, string, string, int) error { return nil }

func TestRunner_ConcurrentEmitProgressStaysOrdered(t *testing.T) {
	for range 20 {
		rec := &recorder{}
		store := &slowStore{slowAt: 87}
		rc := newContext(t, "", storyModel(), rec)
		rc.Store = store
		rc.Emitter = &concurrentEmitter{files: 2}

		res, err := NewRunner(rc).SynthesizeScenarios(context.Background(), []testcase.Record{
			{StoryID: "US-1", Seq: 1, Description: "Valid Login", Steps: []string{"Open app"}, Results: []string{"App open"}},
		})
		require.NoError(t, err)
		assert.Equal(t, Emitted, res.Outcome)
		rec.assertMonotonic(t)

		assert.False(t, store.overlap, "UpdateRun called concurrently")
		assert.IsNonDecreasing(t, store.progress)
		assert.Equal(t, 100, store.progress[len(store.progress)-1])
	}
}

func TestRunner_CancelledDuringLastStoryAborts(t *testing.T) {
	input := writeStories(t, [][]interface{}{
		{sheet.ColStoryID, sheet.ColTitle, sheet.ColCriteria},
		{"US-1", "Login", "User can log in"},
	})
	ctx, cancel := context.WithCancel(context.Background())
	svc := model.Func(func(c context.Context, _ string) (string, error) {
		cancel()
		return "", c.Err()
	})
	rc := newContext(t, input, svc, &recorder{})
	r := NewRunner(rc)

	set, err := r.GenerateTestCases(ctx)
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, set)
	assert.Equal(t, ErrorAborted, r.State())
	assert.NoFileExists(t, filepath.Join(rc.OutputDir, sheet.TestCasesFile))
}
