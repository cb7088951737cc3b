package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/chriserin/bddgen/internal/db"
	"github.com/chriserin/bddgen/internal/pipeline"
	"github.com/chriserin/bddgen/internal/sheet"
	"github.com/chriserin/bddgen/internal/testcase"
)

var (
	fromFlag string
	runFlag  string
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Render Gherkin scenarios and automation files from test cases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd.Context())
		if err != nil {
			return err
		}
		return RunScenarios(cmd.Context(), cmd.OutOrStdout(), env, fromFlag, runFlag)
	},
}

func init() {
	scenariosCmd.Flags().StringVar(&fromFlag, "from", "", "Test case workbook to read instead of a stored run")
	scenariosCmd.Flags().StringVar(&runFlag, "run", "", "Stored run to read (default latest)")
	rootCmd.AddCommand(scenariosCmd)
}

// RunScenarios runs phase two over a workbook or a stored run's records.
func RunScenarios(ctx context.Context, w io.Writer, env Env, from, runID string) error {
	if from != "" && runID != "" {
		return errors.New("--from and --run are mutually exclusive")
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	var records []testcase.Record
	if from != "" {
		if err := sheet.ValidateInput(from); err != nil {
			return err
		}
		if records, err = sheet.ReadTestCases(from); err != nil {
			return err
		}
		runID = uuid.NewString()
		if err := store.CreateRun(runID, from, pipeline.Idle.String()); err != nil {
			return err
		}
		if err := store.SaveTestCases(runID, countStories(records), records); err != nil {
			return err
		}
	} else {
		run, err := resolveRun(store, runID)
		if err != nil {
			return err
		}
		runID = run.ID
		if records, err = store.TestCases(runID); err != nil {
			return err
		}
	}

	runner, progress := newRunner(w, env, store, pipeline.RunContext{ID: runID, Resume: true})
	res, err := runner.SynthesizeScenarios(ctx, records)
	progress.Finish()
	if err != nil {
		return err
	}
	report(w, res)
	return nil
}

func resolveRun(store *db.Store, id string) (db.Run, error) {
	if id != "" {
		return store.Run(id)
	}
	run, err := store.LatestRun()
	if errors.Is(err, db.ErrRunNotFound) {
		return run, fmt.Errorf("no stored test cases; run `bddgen cases` first")
	}
	return run, err
}

func countStories(records []testcase.Record) int {
	seen := map[string]bool{}
	for _, r := range records {
		seen[r.StoryID] = true
	}
	return len(seen)
}
