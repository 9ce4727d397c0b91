package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCmd создаёт команду просмотра журнала запусков.
func NewHistoryCmd(app *App, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [STAGE]",
		Short: "Show the run log, optionally for a single stage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			stageID := ""
			if len(args) == 1 {
				stageID = args[0]
			}

			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			log, closeLog, err := app.OpenRunLog(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			records, err := log.History(ctx, stageID)
			if err != nil {
				return err
			}

			headers := []string{"STAGE", "RUN_ID", "OUTCOME", "STARTED", "DURATION", "ERROR"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.StageID,
					r.RunID.String(),
					string(r.Outcome),
					r.StartedAt.Format(time.RFC3339),
					r.Duration().Round(time.Millisecond).String(),
					r.Error,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	return cmd
}
