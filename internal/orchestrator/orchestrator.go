package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/events"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/registry"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/runlog"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/runner"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/telemetry"
)

// Mode — режим выбора stage'ей.
type Mode string

const (
	// ModeSingle — запустить ровно один stage.
	ModeSingle Mode = "single"

	// ModeFromStage — запустить stage и все stage'и после него
	// в каноническом порядке реестра.
	ModeFromStage Mode = "from"

	// ModeRange — запустить замкнутый интервал stage'ей
	// в каноническом порядке.
	ModeRange Mode = "range"
)

// Request — запрос на выполнение.
type Request struct {
	// Mode — режим выбора.
	Mode Mode

	// Stage — идентификатор stage'а (single и from).
	Stage string

	// Start, End — границы интервала включительно (range).
	Start string
	End   string
}

// Orchestrator управляет выполнением конвейера.
//
// Оркестратор нигде не хранит состояние между вызовами, кроме журнала
// запусков: история для проверки зависимостей передаётся вызывающей
// стороной явно, устаревшее состояние с диска не подхватывается.
//
// Stage'и выполняются строго последовательно: поздние stage'и читают
// артефакты ранних, а последовательность даёт единственному handler'у
// эксклюзивный временной доступ к датасету без дополнительных блокировок.
type Orchestrator struct {
	registry  *registry.Registry
	runner    *runner.Runner
	log       runlog.Log
	publisher *events.Publisher
	logger    *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	Registry *registry.Registry
	Runner   *runner.Runner
	RunLog   runlog.Log

	// Publisher — опциональный издатель событий (nil — события не публикуются).
	Publisher *events.Publisher

	Logger *slog.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry:  cfg.Registry,
		runner:    cfg.Runner,
		log:       cfg.RunLog,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// Execute выполняет выбранные stage'и последовательно.
//
// history — ранее персистированные записи (для проверки зависимостей);
// оркестратор не читает их с диска сам.
//
// При падении stage'а оставшаяся последовательность немедленно
// останавливается (без best-effort продолжения) и возвращается
// *AbortError с идентификатором упавшего stage'а. Все записи,
// произведённые до остановки, уже персистированы в журнале.
func (o *Orchestrator) Execute(ctx context.Context, req Request, history []domain.RunRecord) ([]*domain.RunRecord, error) {
	plan, err := o.plan(req)
	if err != nil {
		return nil, err
	}

	if err := o.checkDependencies(plan, history); err != nil {
		return nil, err
	}

	run := domain.NewPipelineRun()
	runLogger := telemetry.WithRunID(o.logger, run.ID.String())
	runLogger.Info("run started", "mode", req.Mode, "stages", stageIDs(plan))

	for _, stage := range plan {
		if err := o.publisher.StageStarted(ctx, run.ID, stage); err != nil {
			runLogger.Warn("failed to publish stage.started", "stage_id", stage.ID, "error", err)
		}

		record := o.runner.Run(ctx, stage, run.ID)
		run.Records = append(run.Records, record)

		if err := o.log.Append(ctx, record); err != nil {
			// Журнал — источник истины для restart'ов; её потеря фатальна.
			return run.Records, fmt.Errorf("persist run record for stage %s: %w", stage.ID, err)
		}

		if err := o.publisher.StageCompleted(ctx, record); err != nil {
			runLogger.Warn("failed to publish stage.completed", "stage_id", stage.ID, "error", err)
		}

		if record.Outcome == domain.OutcomeFailed {
			if err := o.publisher.RunAborted(ctx, run.ID, stage.ID, record.Error); err != nil {
				runLogger.Warn("failed to publish run.aborted", "error", err)
			}
			telemetry.RunsTotal.WithLabelValues("aborted").Inc()
			runLogger.Error("run aborted", "failed_stage_id", stage.ID, "error", record.Error)
			return run.Records, &AbortError{StageID: stage.ID, Detail: record.Error}
		}
	}

	telemetry.RunsTotal.WithLabelValues("succeeded").Inc()
	runLogger.Info("run succeeded", "stages", len(run.Records))
	return run.Records, nil
}

// plan вычисляет последовательность выполнения для запроса.
func (o *Orchestrator) plan(req Request) ([]*domain.Stage, error) {
	switch req.Mode {
	case ModeSingle:
		stage, err := o.registry.Resolve(req.Stage)
		if err != nil {
			return nil, err
		}
		if stage.Diagnostic {
			return nil, fmt.Errorf("%w: %s is diagnostic, not a pipeline stage", registry.ErrUnknownStage, req.Stage)
		}
		return []*domain.Stage{stage}, nil

	case ModeFromStage:
		canonical, err := o.registry.CanonicalOrder()
		if err != nil {
			return nil, err
		}
		idx := indexOf(canonical, req.Stage)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", registry.ErrUnknownStage, req.Stage)
		}
		return canonical[idx:], nil

	case ModeRange:
		canonical, err := o.registry.CanonicalOrder()
		if err != nil {
			return nil, err
		}
		start := indexOf(canonical, req.Start)
		if start < 0 {
			return nil, fmt.Errorf("%w: %s", registry.ErrUnknownStage, req.Start)
		}
		end := indexOf(canonical, req.End)
		if end < 0 {
			return nil, fmt.Errorf("%w: %s", registry.ErrUnknownStage, req.End)
		}
		if start > end {
			return nil, fmt.Errorf("%w: %s comes after %s in canonical order", ErrInvalidRange, req.Start, req.End)
		}
		return canonical[start : end+1], nil

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrEmptySelection, req.Mode)
	}
}

// checkDependencies проверяет выполнимость плана до какого-либо запуска.
//
// Prerequisite, входящий в план, удовлетворяется порядком выполнения.
// Prerequisite вне плана обязан иметь успешную последнюю запись
// в переданной истории.
func (o *Orchestrator) checkDependencies(plan []*domain.Stage, history []domain.RunRecord) error {
	inPlan := make(map[string]bool, len(plan))
	for _, stage := range plan {
		inPlan[stage.ID] = true
	}

	// Последний исход по каждому stage из истории (порядок хронологический).
	last := make(map[string]domain.Outcome, len(history))
	for _, rec := range history {
		last[rec.StageID] = rec.Outcome
	}

	for _, stage := range plan {
		for _, dep := range stage.Requires {
			if inPlan[dep] {
				continue
			}
			if last[dep] != domain.OutcomeSucceeded {
				return fmt.Errorf("%w: stage %s requires %s, which has no successful run",
					ErrUnsatisfiedDependency, stage.ID, dep)
			}
		}
	}
	return nil
}

// RunDiagnostic выполняет диагностический stage вне графа зависимостей.
//
// Диагностика не проверяет prerequisites и журналируется как обычный
// запуск, но никогда не входит в нумерованные последовательности.
func (o *Orchestrator) RunDiagnostic(ctx context.Context, id string) (*domain.RunRecord, error) {
	stage, err := o.registry.Resolve(id)
	if err != nil {
		return nil, err
	}
	if !stage.Diagnostic {
		return nil, fmt.Errorf("%w: %s is a pipeline stage, run it with a stage selector", registry.ErrUnknownStage, id)
	}

	run := domain.NewPipelineRun()
	record := o.runner.Run(ctx, stage, run.ID)
	if err := o.log.Append(ctx, record); err != nil {
		return record, fmt.Errorf("persist run record for diagnostic %s: %w", id, err)
	}

	if record.Outcome == domain.OutcomeFailed {
		return record, &AbortError{StageID: stage.ID, Detail: record.Error}
	}
	return record, nil
}

func indexOf(stages []*domain.Stage, id string) int {
	for i, s := range stages {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func stageIDs(stages []*domain.Stage) []string {
	ids := make([]string, len(stages))
	for i, s := range stages {
		ids[i] = s.ID
	}
	return ids
}
