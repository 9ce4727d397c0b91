package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/submit"
)

// NewSubmitCmd создаёт команду рендеринга submission-скрипта.
func NewSubmitCmd(app *App, outputFn func() *Output) *cobra.Command {
	var binary string
	var logDir string
	var outPath string

	cmd := &cobra.Command{
		Use:   "submit STAGE",
		Short: "Render a cluster submission script for a stage",
		Long: `Render an SGE submission script for a stage.

The script requests the cores, per-slot memory, wall clock limit and
queue class from the stage resource profile, then invokes this binary
with "run STAGE" on the compute node.`,
		Args: cobra.ExactArgs(1),
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
			stage, err := reg.Resolve(args[0])
			if err != nil {
				return err
			}

			params := submit.Params{
				Binary:     binary,
				ConfigPath: app.ConfigPath,
				LogDir:     logDir,
			}

			if outPath == "" {
				return submit.Render(os.Stdout, stage, params)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create script %s: %w", outPath, err)
			}
			if err := submit.Render(f, stage, params); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close script %s: %w", outPath, err)
			}

			out.Success(fmt.Sprintf("Submission script written: %s", outPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&binary, "binary", "", "Pipeline binary path on the compute node")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "Directory for scheduler stdout/stderr")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the script to a file instead of stdout")

	return cmd
}
