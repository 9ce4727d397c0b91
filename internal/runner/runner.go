package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/telemetry"
)

// Значения по умолчанию.
const (
	// defaultGracePeriod — окно, в течение которого handler после отмены
	// обязан завершиться сам.
	defaultGracePeriod = 10 * time.Second
)

// ErrCancelled — выполнение stage отменено (сигнал оператора,
// preemption планировщика или истечение wall-clock лимита).
var ErrCancelled = errors.New("cancelled")

// Runner выполняет один stage и фиксирует исход.
//
// Runner никогда не ретраит stage: stage'и ресурсоёмки и без явной
// поддержки не идемпотентны. Ошибки handler'а не пробрасываются
// дальше — они превращаются в данные (RunRecord с Outcome=FAILED),
// политика распространения принадлежит оркестратору.
type Runner struct {
	logRoot string
	dataset string
	grace   time.Duration
	logger  *slog.Logger
}

// Config — конфигурация Runner.
type Config struct {
	// LogRoot — корень директорий с логами run'ов.
	LogRoot string

	// Dataset — расположение общего датасета.
	Dataset string

	// GracePeriod — окно graceful shutdown после отмены (default: 10s).
	GracePeriod time.Duration

	// Logger — базовый логгер процесса.
	Logger *slog.Logger
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logRoot: cfg.LogRoot,
		dataset: cfg.Dataset,
		grace:   grace,
		logger:  logger,
	}
}

// Run выполняет handler stage'а и возвращает финализированный RunRecord.
//
// Wall-clock лимит из профиля stage'а применяется как таймаут контекста
// и при срабатывании неотличим от отмены. Если handler не завершился
// в течение grace-окна после отмены, исход фиксируется как FAILED
// с деталью "cancelled", не дожидаясь handler'а.
func (r *Runner) Run(ctx context.Context, stage *domain.Stage, runID uuid.UUID) *domain.RunRecord {
	record := domain.NewRunRecord(runID, stage.ID)

	sink, err := telemetry.NewStageSink(r.logRoot, runID.String(), stage.ID)
	if err != nil {
		record.Finalize(domain.OutcomeFailed, fmt.Sprintf("open log sink: %v", err))
		r.observe(record)
		return record
	}
	defer sink.Close()

	stageCtx, cancel := context.WithTimeout(ctx, stage.Profile.WallClock)
	defer cancel()

	sc := &domain.StageContext{
		RunID:   runID,
		Dataset: r.dataset,
		Logger:  sink.Logger,
	}

	r.logger.Info("stage started",
		"stage_id", stage.ID,
		"run_id", runID,
		"queue", stage.Profile.Queue,
		"wall_clock", stage.Profile.WallClock,
	)

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("stage panicked: %v", p)
			}
		}()
		done <- stage.Handler(stageCtx, sc)
	}()

	select {
	case err = <-done:
	case <-stageCtx.Done():
		// Даём handler'у grace-окно на самостоятельное завершение.
		select {
		case err = <-done:
		case <-time.After(r.grace):
			err = fmt.Errorf("%w: handler did not stop within %s", ErrCancelled, r.grace)
		}
	}

	switch {
	case err == nil:
		record.Finalize(domain.OutcomeSucceeded, "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		record.Finalize(domain.OutcomeFailed, ErrCancelled.Error())
	default:
		record.Finalize(domain.OutcomeFailed, err.Error())
	}

	r.observe(record)
	return record
}

func (r *Runner) observe(record *domain.RunRecord) {
	telemetry.ObserveStage(record.StageID, string(record.Outcome), record.Duration().Seconds())

	if record.Outcome == domain.OutcomeSucceeded {
		r.logger.Info("stage succeeded",
			"stage_id", record.StageID,
			"run_id", record.RunID,
			"duration", record.Duration(),
		)
		return
	}
	r.logger.Error("stage failed",
		"stage_id", record.StageID,
		"run_id", record.RunID,
		"duration", record.Duration(),
		"error", record.Error,
	)
}
