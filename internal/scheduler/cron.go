package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей: minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// NextDue вычисляет следующее время запуска по cron-выражению.
func NextDue(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// RunFunc — один плановый запуск конвейера.
type RunFunc func(ctx context.Context) error

// Scheduler запускает конвейер по cron-расписанию.
//
// Используется для периодической re-extraction: свежие выгрузки сырых
// данных появляются регулярно, а история запусков остаётся в журнале.
type Scheduler struct {
	cronExpr string
	run      RunFunc
	logger   *slog.Logger
}

// New создаёт Scheduler. Выражение должно быть заранее валидировано.
func New(cronExpr string, run RunFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cronExpr: cronExpr, run: run, logger: logger}
}

// Start блокирует и выполняет запуски до отмены контекста.
//
// Ошибка одного запуска логируется и не останавливает расписание:
// следующий запуск пойдёт по плану.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		next, err := NextDue(s.cronExpr, time.Now())
		if err != nil {
			return err
		}

		s.logger.Info("next scheduled run", "at", next)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		if err := s.run(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
			continue
		}
		s.logger.Info("scheduled run completed")
	}
}
