package cmd

import (
	"fmt"
	"io"

	"github.com/chriserin/bddgen/internal/ui"
	"github.com/spf13/cobra"
)

var limitFlag int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs with their state and progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunStatus(cmd.OutOrStdout(), limitFlag)
	},
}

func init() {
	statusCmd.Flags().IntVarP(&limitFlag, "limit", "n", 10, "Number of runs to show")
	rootCmd.AddCommand(statusCmd)
}

func RunStatus(w io.Writer, limit int) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	runs, err := store.Runs(limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Runs: %d\n", len(runs))

	stateWidth := 0
	for _, r := range runs {
		if len(r.State) > stateWidth {
			stateWidth = len(r.State)
		}
	}
	for _, r := range runs {
		ui.RunRow(w, r.ID, r.State, r.Progress, r.Stories, r.Degraded, r.UpdatedAt, stateWidth)
		if r.Error != "" {
			ui.ErrorLine(w, r.Error)
		}
	}
	return nil
}
