package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	offlineFlag bool
	verboseFlag bool
	configFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "bddgen",
	Short: "Generate test cases and Gherkin scenarios from user stories",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verboseFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&offlineFlag, "offline", false, "Do not call the model; render locally")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug output")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default bddgen.yml)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
