package stages

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// ErrNoSubject возвращается trajectory-диагностикой без заданного субъекта.
var ErrNoSubject = errors.New("no subject selected")

// coverageReport — диагностика покрытия маппинга.
//
// По уникальным сырым кодам из отсортированного потока считается, какой
// уровень fallback-иерархии сработал. Результат пишется в лог стадии.
func coverageReport(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		log := sc.Logger

		cm, err := buildCodeMap(ctx, cfg)
		if err != nil {
			return err
		}

		unique := make(map[string]mapLevel)
		var total int
		err = scanTable(ctx, eventsFile(cfg.Outputs.IntermediateSorted), ',', func(r row) error {
			code := r.get("code")
			if code == birthCode {
				return nil
			}
			total++
			raw := rawCode(code)
			if _, seen := unique[raw]; !seen {
				_, level := cm.resolve(raw)
				unique[raw] = level
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan sorted events: %w", err)
		}

		var counts [mapLevelUnmapped + 1]int
		for _, level := range unique {
			counts[level]++
		}

		mapped := len(unique) - counts[mapLevelUnmapped]
		log.Info("mapping coverage",
			"events", total,
			"unique_codes", len(unique),
			"primary", counts[mapLevelPrimary],
			"read_code", counts[mapLevelReadCode],
			"secondary", counts[mapLevelSecondary],
			"snomed", counts[mapLevelSnomed],
			"unmapped", counts[mapLevelUnmapped],
		)
		if len(unique) > 0 {
			log.Info("coverage ratio",
				"mapped_pct", fmt.Sprintf("%.1f", 100*float64(mapped)/float64(len(unique))))
		}
		return nil
	}
}

// trajectoryDump — диагностика: траектория одного субъекта.
//
// Субъект выбирается переменной окружения TRAJECTORY_SUBJECT, его события
// из финального потока выводятся в лог стадии в хронологическом порядке.
func trajectoryDump(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		log := sc.Logger

		subject := os.Getenv("TRAJECTORY_SUBJECT")
		if subject == "" {
			return fmt.Errorf("%w: set TRAJECTORY_SUBJECT", ErrNoSubject)
		}

		var count int
		err := scanTable(ctx, eventsFile(cfg.Outputs.EventStreamDir), ',', func(r row) error {
			if r.get("subject_id") != subject {
				return nil
			}
			count++
			log.Info("event",
				"n", count,
				"time", r.get("time"),
				"code", r.get("code"),
				"value", r.get("numeric_value"),
				"unit", r.get("numunitid"),
			)
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan event stream: %w", err)
		}

		log.Info("trajectory dumped", "subject", subject, "events", count)
		return nil
	}
}
