package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// NewStagesCmd создаёт команду списка stage'ей.
func NewStagesCmd(app *App, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List pipeline stages and diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			reg, err := app.BuildRegistry(cfg)
			if err != nil {
				return err
			}

			order, err := reg.CanonicalOrder()
			if err != nil {
				return err
			}
			all := append(order, reg.Diagnostics()...)

			headers := []string{"ID", "KIND", "REQUIRES", "CORES", "MEMORY_GB", "WALL_CLOCK", "QUEUE", "DESCRIPTION"}
			rows := make([][]string, len(all))
			for i, s := range all {
				kind := "pipeline"
				if s.Diagnostic {
					kind = "diagnostic"
				}
				rows[i] = []string{
					s.ID,
					kind,
					strings.Join(s.Requires, ","),
					strconv.Itoa(s.Profile.Cores),
					fmt.Sprintf("%.0f", s.Profile.MemoryGB()),
					s.Profile.WallClock.String(),
					string(s.Profile.Queue),
					s.Description,
				}
			}

			type stageView struct {
				ID          string                 `json:"id"`
				Diagnostic  bool                   `json:"diagnostic"`
				Requires    []string               `json:"requires,omitempty"`
				Profile     domain.ResourceProfile `json:"profile"`
				Description string                 `json:"description"`
			}
			views := make([]stageView, len(all))
			for i, s := range all {
				views[i] = stageView{
					ID:          s.ID,
					Diagnostic:  s.Diagnostic,
					Requires:    s.Requires,
					Profile:     s.Profile,
					Description: s.Description,
				}
			}

			out.Print(headers, rows, views)
			return nil
		},
	}

	return cmd
}
