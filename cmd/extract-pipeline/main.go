// Extract Pipeline — оркестратор staged-конвейера извлечения
// событийных траекторий пациентов для case/control исследований.
//
// Использование:
//
//	extract-pipeline [--config PATH] [--json] <command> [flags]
//
// Команды:
//
//	run       Выполнение stage'ей по селектору
//	stages    Список stage'ей и их ресурсных профилей
//	history   Журнал запусков
//	submit    Submission-скрипт для кластера
//	schedule  Периодический перезапуск по cron
//	debug     Диагностические stage'и
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/cli"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/orchestrator"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/registry"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

// Коды выхода различимы для shell-обёрток и планировщика кластера.
const (
	exitOK = iota
	exitError
	exitConfig
	exitUnknownStage
	exitUnsatisfiedDep
	exitAborted
)

func main() {
	logger := telemetry.SetupLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := &cli.App{Logger: logger}
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "extract-pipeline",
		Short:         "Staged extraction pipeline orchestrator",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "config.yaml", "Path to the pipeline config file")
	rootCmd.PersistentFlags().StringVar(&app.Dataset, "dataset", "", "Override the dataset location from the config")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(app, outputFn),
		cli.NewStagesCmd(app, outputFn),
		cli.NewHistoryCmd(app, outputFn),
		cli.NewSubmitCmd(app, outputFn),
		cli.NewScheduleCmd(app, outputFn),
		cli.NewDebugCmd(app, outputFn),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode отображает класс ошибки в код выхода процесса.
func exitCode(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrPipelineAborted):
		return exitAborted
	case errors.Is(err, orchestrator.ErrUnsatisfiedDependency):
		return exitUnsatisfiedDep
	case errors.Is(err, registry.ErrUnknownStage),
		errors.Is(err, orchestrator.ErrInvalidRange),
		errors.Is(err, orchestrator.ErrEmptySelection):
		return exitUnknownStage
	case errors.Is(err, config.ErrEmptyConfig),
		errors.Is(err, config.ErrMissingPath),
		errors.Is(err, config.ErrUnknownBackend):
		return exitConfig
	default:
		return exitError
	}
}
