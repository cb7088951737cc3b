package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/chriserin/bddgen/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <stories.xlsx>",
	Short: "Generate test cases, Gherkin and automation files in one pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd.Context())
		if err != nil {
			return err
		}
		return RunAll(cmd.Context(), cmd.OutOrStdout(), env, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// RunAll runs both phases on a background goroutine and waits for it.
func RunAll(ctx context.Context, w io.Writer, env Env, input string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	runner, progress := newRunner(w, env, store, pipeline.RunContext{InputPath: input})
	<-runner.Start(ctx)
	res, err := runner.Wait()
	progress.Finish()
	if err != nil {
		return err
	}
	report(w, res)
	return nil
}
