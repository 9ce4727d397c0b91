package stages

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// Форматы дат сырых и производных данных.
const (
	rawDateFormat = "02/01/2006" // obsdate в выгрузках
	isoDateFormat = "2006-01-02" // все производные артефакты
)

// trajectoryWindow — окно наблюдения одного субъекта.
type trajectoryWindow struct {
	start time.Time
	end   time.Time
}

// extractEvents — stage 3a: выгрузка и стандартизация событий.
//
// Два прохода по файлам наблюдений, оба параллельны по файлам:
// первый собирает дату последнего события контролей (границы их окон),
// второй фильтрует события по окнам траекторий и пишет общий поток.
//
// Окна: случай — [cancerdate-5y, cancerdate]; контроль —
// [last-6y, last-1y]. События без даты не фильтруются по окну
// и сохраняются с пустым time (их упорядочит stage 3b).
func extractEvents(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		log := sc.Logger

		subjects, err := loadSubjectInfo(ctx, cfg.Outputs.SubjectInformationFile)
		if err != nil {
			return err
		}

		files, err := globData(cfg.Paths.ObservationDataDir, "*.txt")
		if err != nil {
			return err
		}
		log.Info("scanning observation files", "files", len(files), "subjects", len(subjects))

		lastEvent, err := collectLastEventDates(ctx, files, subjects)
		if err != nil {
			return err
		}

		windows := buildTrajectoryWindows(subjects, lastEvent)
		log.Info("trajectory windows calculated", "subjects_with_window", len(windows))

		outPath := eventsFile(cfg.Outputs.IntermediateUnsorted)
		w, err := newTableWriter(outPath,
			[]string{"subject_id", "time", "code", "numeric_value", "numunitid"})
		if err != nil {
			return err
		}

		var mu sync.Mutex
		var kept, dropped int64

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, file := range files {
			file := file
			g.Go(func() error {
				return scanTable(gctx, file, '\t', func(r row) error {
					id := r.get("e_patid")
					if _, ok := subjects[id]; !ok {
						return nil
					}

					timeStr := ""
					if t, err := time.Parse(rawDateFormat, r.get("obsdate")); err == nil {
						win, ok := windows[id]
						if ok && (t.Before(win.start) || t.After(win.end)) {
							mu.Lock()
							dropped++
							mu.Unlock()
							return nil
						}
						timeStr = t.Format(isoDateFormat)
					}

					code := "medcodeid//" + r.get("medcodeid")

					mu.Lock()
					defer mu.Unlock()
					kept++
					return w.write(id, timeStr, code, r.get("value"), r.get("numunitid"))
				})
			})
		}
		if err := g.Wait(); err != nil {
			w.close()
			return fmt.Errorf("extract events: %w", err)
		}
		if err := w.close(); err != nil {
			return fmt.Errorf("close event stream: %w", err)
		}

		log.Info("events extracted", "kept", kept, "outside_window", dropped)
		return nil
	}
}

// collectLastEventDates возвращает дату последнего события каждого
// контроля. Случаям граница окна не нужна — у них есть дата диагноза.
func collectLastEventDates(ctx context.Context, files []string, subjects map[string]subjectInfo) (map[string]time.Time, error) {
	var mu sync.Mutex
	last := make(map[string]time.Time)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, file := range files {
		file := file
		g.Go(func() error {
			local := make(map[string]time.Time)
			err := scanTable(gctx, file, '\t', func(r row) error {
				id := r.get("e_patid")
				info, ok := subjects[id]
				if !ok || info.IsCase {
					return nil
				}
				t, err := time.Parse(rawDateFormat, r.get("obsdate"))
				if err != nil {
					return nil
				}
				if t.After(local[id]) {
					local[id] = t
				}
				return nil
			})
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for id, t := range local {
				if t.After(last[id]) {
					last[id] = t
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect last event dates: %w", err)
	}
	return last, nil
}

// buildTrajectoryWindows вычисляет окно наблюдения каждого субъекта.
// Субъекты без вычислимого окна (контроль без событий, случай без
// валидной даты диагноза) в map не попадают.
func buildTrajectoryWindows(subjects map[string]subjectInfo, lastEvent map[string]time.Time) map[string]trajectoryWindow {
	windows := make(map[string]trajectoryWindow)
	for id, info := range subjects {
		if info.IsCase {
			diag, err := time.Parse(isoDateFormat, strings.TrimSpace(info.CancerDate))
			if err != nil {
				continue
			}
			windows[id] = trajectoryWindow{start: diag.AddDate(-5, 0, 0), end: diag}
			continue
		}
		last, ok := lastEvent[id]
		if !ok {
			continue
		}
		windows[id] = trajectoryWindow{start: last.AddDate(-6, 0, 0), end: last.AddDate(-1, 0, 0)}
	}
	return windows
}
