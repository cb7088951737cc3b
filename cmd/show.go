package cmd

import (
	"io"

	"github.com/chriserin/bddgen/internal/ui"
	"github.com/spf13/cobra"
)

var showRunFlag string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the feature file rendered for a run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunShow(cmd.OutOrStdout(), showRunFlag)
	},
}

func init() {
	showCmd.Flags().StringVar(&showRunFlag, "run", "", "Run ID or prefix (default latest)")
	rootCmd.AddCommand(showCmd)
}

func RunShow(w io.Writer, runID string) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	run, err := resolveRun(store, runID)
	if err != nil {
		return err
	}
	feature, err := store.LatestFeature(run.ID)
	if err != nil {
		return err
	}

	ui.ShowHeader(w, run.ID, feature.Path, feature.Mode)
	io.WriteString(w, "\n")
	ui.ShowGherkin(w, feature.Content)
	return nil
}
