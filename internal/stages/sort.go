package stages

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// birthCode — синтетическое событие рождения субъекта.
const birthCode = "MEDS_BIRTH"

// event — событие потока в производном формате.
type event struct {
	SubjectID    string
	Time         string // ISO-дата, пустая для событий без даты
	Code         string
	NumericValue string
	NumUnitID    string
}

// sortPriority определяет порядок событий внутри субъекта:
// BIRTH-событие, затем события без даты, затем хронология.
func (e event) sortPriority() int {
	switch {
	case e.Code == birthCode:
		return 0
	case e.Time == "":
		return 1
	default:
		return 2
	}
}

// sortEvents — stage 3b: добавление BIRTH-событий и сортировка потока.
//
// ISO-даты сортируются лексикографически, поэтому ключ —
// (subject_id, priority, time) над строками.
func sortEvents(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		log := sc.Logger

		events, err := readEvents(ctx, eventsFile(cfg.Outputs.IntermediateUnsorted))
		if err != nil {
			return err
		}
		log.Info("unsorted events loaded", "events", len(events))

		subjects, err := loadSubjectInfo(ctx, cfg.Outputs.SubjectInformationFile)
		if err != nil {
			return err
		}
		for id, info := range subjects {
			if info.Yob == 0 {
				continue
			}
			events = append(events, event{
				SubjectID: id,
				Time:      fmt.Sprintf("%04d-01-01", info.Yob),
				Code:      birthCode,
			})
		}

		sort.Slice(events, func(i, j int) bool {
			a, b := events[i], events[j]
			if a.SubjectID != b.SubjectID {
				return a.SubjectID < b.SubjectID
			}
			if pa, pb := a.sortPriority(), b.sortPriority(); pa != pb {
				return pa < pb
			}
			return a.Time < b.Time
		})

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		outPath := eventsFile(cfg.Outputs.IntermediateSorted)
		if err := writeEvents(outPath, events); err != nil {
			return err
		}

		log.Info("events sorted", "events", len(events), "birth_events", len(subjects))
		return nil
	}
}

// readEvents читает поток событий в память.
func readEvents(ctx context.Context, path string) ([]event, error) {
	var events []event
	err := scanTable(ctx, path, ',', func(r row) error {
		events = append(events, event{
			SubjectID:    r.get("subject_id"),
			Time:         r.get("time"),
			Code:         r.get("code"),
			NumericValue: r.get("numeric_value"),
			NumUnitID:    r.get("numunitid"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read events %s: %w", path, err)
	}
	return events, nil
}

// writeEvents пишет поток событий в CSV.
func writeEvents(path string, events []event) error {
	w, err := newTableWriter(path,
		[]string{"subject_id", "time", "code", "numeric_value", "numunitid"})
	if err != nil {
		return err
	}
	for _, e := range events {
		if err := w.write(e.SubjectID, e.Time, e.Code, e.NumericValue, e.NumUnitID); err != nil {
			w.close()
			return fmt.Errorf("write events %s: %w", path, err)
		}
	}
	if err := w.close(); err != nil {
		return fmt.Errorf("close events %s: %w", path, err)
	}
	return nil
}

// parseFloat возвращает числовое значение события, ok=false для пустых.
func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
