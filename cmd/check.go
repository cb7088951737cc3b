package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/chriserin/bddgen/internal/config"
	"github.com/chriserin/bddgen/internal/parser"
	"github.com/chriserin/bddgen/internal/pipeline"
	"github.com/chriserin/bddgen/internal/ui"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [file.feature...]",
	Short: "Validate feature files (default: the output directory's)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			cfg, err := loadConfig(configFlag)
			if err != nil {
				return err
			}
			if args, err = featureFiles(cfg); err != nil {
				return err
			}
		}
		return RunCheck(cmd.OutOrStdout(), args)
	},
}

// featureFiles lists the feature files in cfg's artifacts directory.
func featureFiles(cfg *config.Config) ([]string, error) {
	return filepath.Glob(filepath.Join(cfg.OutputDir, pipeline.ArtifactsDir, "*.feature"))
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// RunCheck validates each file and fails when any is invalid.
func RunCheck(w io.Writer, paths []string) error {
	sort.Strings(paths)

	invalid := 0
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		pf, err := parser.Validate(path, content)
		if err != nil {
			invalid++
			ui.BadLine(w, path, err.Error())
			continue
		}
		ui.OkLine(w, path, len(pf.Scenarios))
	}

	fmt.Fprintf(w, "checked %d files\n", len(paths))
	if invalid > 0 {
		return fmt.Errorf("%d invalid feature files", invalid)
	}
	return nil
}
