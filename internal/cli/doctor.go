package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GenLoc-2025/GenLoc/internal/llm/configbuilder"
	"github.com/GenLoc-2025/GenLoc/internal/tools"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			reg, err := configbuilder.BuildRegistryFromConfig(cfg)
			if err != nil {
				return err
			}
			_, route, err := reg.Resolve(cfg.Localizer.Model)
			if err != nil {
				return fmt.Errorf("resolve localizer model: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, models: %d, tools: %d\n", len(cfg.Providers), len(cfg.Models), len(tools.Catalog()))
			fmt.Fprintf(out, "Localizer model: %s (%s via %s), max iterations: %d\n", route.Name, route.Model, route.Provider, cfg.Localizer.MaxIterations)
			if info, err := os.Stat(cfg.Codebase.SourceRoot); err != nil || !info.IsDir() {
				fmt.Fprintf(out, "Source root %q: not a readable directory\n", cfg.Codebase.SourceRoot)
			} else {
				fmt.Fprintf(out, "Source root %q: ok\n", cfg.Codebase.SourceRoot)
			}
			fmt.Fprintf(out, "Trace dir: %s, metrics: %v\n", cfg.Trace.Dir, cfg.Server.MetricsEnabled)
			return nil
		},
	}
}
