package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// NewDebugCmd создаёт команду запуска диагностик.
func NewDebugCmd(app *App, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug DIAGNOSTIC",
		Short: "Run a diagnostic stage",
		Long: `Run a diagnostic stage outside the pipeline dependency graph.

Diagnostics have no prerequisites and never satisfy dependencies of
pipeline stages; their output goes to the stage log directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			app.ServeMetrics(cfg)

			ctx := cmd.Context()
			orch, _, cleanup, err := app.BuildOrchestrator(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			record, diagErr := orch.RunDiagnostic(ctx, args[0])
			if record != nil {
				out.Records([]*domain.RunRecord{record})
			}
			return diagErr
		},
	}

	cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		reg, err := app.BuildRegistry(cfg)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		var ids []string
		for _, s := range reg.Diagnostics() {
			if strings.HasPrefix(s.ID, toComplete) {
				ids = append(ids, s.ID)
			}
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	}

	return cmd
}
