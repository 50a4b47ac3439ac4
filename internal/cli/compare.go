package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/GenLoc-2025/GenLoc/internal/traceanalysis"
)

// NewCompareCmd lists localized bugs per accuracy level across repeated runs.
func NewCompareCmd() *cobra.Command {
	var project, outDir string
	var resultFiles []string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Write per-run, common and union localized bug ids by accuracy level",
		RunE: func(cmd *cobra.Command, args []string) error {
			if project == "" || len(resultFiles) == 0 {
				return fmt.Errorf("--project and at least one --results file are required")
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			out := cmd.OutOrStdout()

			runs := make([]traceanalysis.AccuracySections, 0, len(resultFiles))
			for i, path := range resultFiles {
				sections, err := readAccuracySections(path)
				if err != nil {
					return err
				}
				runs = append(runs, sections)

				name := fmt.Sprintf("localized_bugs_%s-run-%d.csv", project, i+1)
				if err := writeSectionsFile(filepath.Join(outDir, name), sections); err != nil {
					return err
				}
				fmt.Fprintf(out, "Run %d: %d/%d/%d bugs at @1/@5/@10 -> %s\n", i+1,
					len(sections[traceanalysis.AccuracyAt1]), len(sections[traceanalysis.AccuracyAt5]),
					len(sections[traceanalysis.AccuracyAt10]), name)
			}

			common, union := traceanalysis.CompareRuns(runs)
			for name, s := range map[string]traceanalysis.AccuracySections{
				project + "_common_bugs.csv": common,
				project + "_union_bugs.csv":  union,
			} {
				if err := writeSectionsFile(filepath.Join(outDir, name), s); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "Common and union bugs written to %s\n", outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project name used in output file names")
	cmd.Flags().StringSliceVar(&resultFiles, "results", nil, "Results file of one run (repeatable)")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "Directory for the CSV files")
	return cmd
}

func readAccuracySections(path string) (traceanalysis.AccuracySections, error) {
	f, err := os.Open(path)
	if err != nil {
		return traceanalysis.AccuracySections{}, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	sections, err := traceanalysis.ExtractAccuracySections(f)
	if err != nil {
		return traceanalysis.AccuracySections{}, fmt.Errorf("%s: %w", path, err)
	}
	return sections, nil
}

func writeSectionsFile(path string, s traceanalysis.AccuracySections) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := traceanalysis.WriteAccuracySections(w, s); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
