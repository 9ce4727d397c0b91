package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт команду выполнения stage'ей конвейера.
func NewRunCmd(app *App, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run SELECTOR",
		Short: "Execute pipeline stages",
		Long: `Execute pipeline stages selected by SELECTOR.

Selector forms:
  3a       run a single stage
  from:3a  run a stage and everything after it in canonical order
  2:3b     run a closed range of stages in canonical order

Prerequisites outside the selection must have a succeeded record
in the run log; stages inside the selection satisfy each other by
execution order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			req, err := parseSelector(args[0])
			if err != nil {
				return err
			}

			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			app.ServeMetrics(cfg)

			ctx := cmd.Context()
			orch, log, cleanup, err := app.BuildOrchestrator(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			history, err := log.History(ctx, "")
			if err != nil {
				return fmt.Errorf("load run history: %w", err)
			}

			records, execErr := orch.Execute(ctx, req, history)
			if len(records) > 0 {
				out.Records(records)
			}
			if execErr != nil {
				return execErr
			}

			out.Success(fmt.Sprintf("Pipeline completed: %d stage(s)", len(records)))
			return nil
		},
	}

	return cmd
}
