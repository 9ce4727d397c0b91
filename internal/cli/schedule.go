package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/scheduler"
)

// NewScheduleCmd создаёт команду периодического перезапуска конвейера.
func NewScheduleCmd(app *App, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule CRON_EXPR SELECTOR",
		Short: "Re-run selected stages on a cron schedule",
		Long: `Re-run selected stages on a cron schedule until interrupted.

CRON_EXPR is a standard 5-field cron expression. SELECTOR uses the
same forms as the run command. A failed run is logged and the next
tick proceeds as scheduled.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scheduler.ValidateCronExpr(args[0]); err != nil {
				return err
			}
			req, err := parseSelector(args[1])
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

			run := func(ctx context.Context) error {
				history, err := log.History(ctx, "")
				if err != nil {
					return fmt.Errorf("load run history: %w", err)
				}
				records, err := orch.Execute(ctx, req, history)
				if err != nil {
					return err
				}
				app.Logger.Info("scheduled run completed", "stages", len(records))
				return nil
			}

			app.Logger.Info("scheduler starting", "cron", args[0], "selector", args[1])
			return scheduler.New(args[0], run, app.Logger).Start(ctx)
		},
	}

	return cmd
}
