package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/chriserin/bddgen/internal/pipeline"
	"github.com/chriserin/bddgen/internal/sheet"
	"github.com/chriserin/bddgen/internal/ui"
	"github.com/spf13/cobra"
)

var casesCmd = &cobra.Command{
	Use:   "cases <stories.xlsx>",
	Short: "Generate test cases from a user story workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd.Context())
		if err != nil {
			return err
		}
		return RunCases(cmd.Context(), cmd.OutOrStdout(), env, args[0])
	},
}

func init() {
	rootCmd.AddCommand(casesCmd)
}

// RunCases runs phase one and stores its records under a new run.
func RunCases(ctx context.Context, w io.Writer, env Env, input string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	runner, progress := newRunner(w, env, store, pipeline.RunContext{InputPath: input})
	set, err := runner.GenerateTestCases(ctx)
	progress.Finish()
	if err != nil {
		return err
	}

	ui.NewLine(w, filepath.Join(env.Config.OutputDir, sheet.TestCasesFile))
	if n := set.Degraded(); n > 0 {
		ui.WarnLine(w, fmt.Sprintf("%d of %d stories need manual test cases", n, set.Stories))
	}
	fmt.Fprintf(w, "run %s: %d test cases from %d stories\n", ui.ShortID(runner.ID()), len(set.Records), set.Stories)
	return nil
}
