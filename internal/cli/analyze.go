package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GenLoc-2025/GenLoc/internal/traceanalysis"
)

// NewAnalyzeCmd summarises which tools contributed to localized bugs.
func NewAnalyzeCmd() *cobra.Command {
	var traceDir, resultsPath, outPath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report tool usage from trace logs against ranking results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if traceDir == "" || resultsPath == "" {
				return fmt.Errorf("--trace-dir and --results are required")
			}
			f, err := os.Open(resultsPath)
			if err != nil {
				return fmt.Errorf("open results: %w", err)
			}
			results, err := traceanalysis.LoadResults(f)
			f.Close()
			if err != nil {
				return err
			}

			traces, err := traceanalysis.LoadTraces(cmd.Context(), traceDir)
			if err != nil {
				return err
			}
			usage := traceanalysis.FunctionUsage(traces)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bugs traced: %d, average tool calls: %.2f\n\n", len(usage), traceanalysis.AverageCalls(usage))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FUNCTION\tSUCCESS\tFAILURE")
			for _, c := range traceanalysis.Contribution(results, usage) {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", c.Function, c.Success, c.Failure)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if outPath == "" {
				return nil
			}
			calls := traceanalysis.SuccessfulCalls(results, traces)
			w, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := traceanalysis.WriteSuccessfulCalls(w, calls); err != nil {
				w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d successful calls written to %s\n", len(calls), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&traceDir, "trace-dir", "", "Directory of bug_<id>_log.txt files for one project")
	cmd.Flags().StringVar(&resultsPath, "results", "", "CSV with bug_id, suspicious_files and fixed_files columns")
	cmd.Flags().StringVar(&outPath, "out", "", "Write successful tool calls as CSV")
	return cmd
}
