package cmd

import (
	"fmt"
	"io"

	"github.com/chriserin/bddgen/internal/ui"
	"github.com/spf13/cobra"
)

var (
	listRunFlag  string
	degradedFlag bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the test cases of a run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunList(cmd.OutOrStdout(), listRunFlag, degradedFlag)
	},
}

func init() {
	listCmd.Flags().StringVar(&listRunFlag, "run", "", "Run ID or prefix (default latest)")
	listCmd.Flags().BoolVar(&degradedFlag, "degraded", false, "Show only stories whose generation failed")
	rootCmd.AddCommand(listCmd)
}

func RunList(w io.Writer, runID string, degradedOnly bool) error {
	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	run, err := resolveRun(store, runID)
	if err != nil {
		return err
	}
	records, err := store.TestCases(run.ID)
	if err != nil {
		return err
	}

	// Compute column widths
	storyWidth := 0
	for _, r := range records {
		if len(r.StoryID) > storyWidth {
			storyWidth = len(r.StoryID)
		}
	}

	shown := 0
	for _, r := range records {
		if degradedOnly && !r.FailedSoft() {
			continue
		}
		ui.CaseRow(w, r.StoryID, r.Seq, r.Description, len(r.Steps), storyWidth)
		shown++
	}
	if shown == 0 && degradedOnly {
		fmt.Fprintln(w, "no degraded stories")
	}
	return nil
}
