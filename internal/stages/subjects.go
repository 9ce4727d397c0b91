package stages

import (
	"context"
	"fmt"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// buildSubjectInfo — stage 2: файл информации о субъектах когорты.
//
// Проекция когорты в формат, который потребляют стадии 3a и 3b:
// subject_id, yob, gender, is_case, cancerdate.
func buildSubjectInfo(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		w, err := newTableWriter(cfg.Outputs.SubjectInformationFile,
			[]string{"subject_id", "yob", "gender", "is_case", "cancerdate"})
		if err != nil {
			return err
		}

		count := 0
		err = scanTable(ctx, cfg.Outputs.CohortFile, ',', func(r row) error {
			id := r.get("subject_id")
			if id == "" {
				return nil
			}
			count++
			return w.write(id, r.get("yob"), r.get("gender"), r.get("is_case"), r.get("cancerdate"))
		})
		if err != nil {
			w.close()
			return fmt.Errorf("build subject info: %w", err)
		}
		if err := w.close(); err != nil {
			return fmt.Errorf("close subject info file: %w", err)
		}

		sc.Logger.Info("subject info written", "subjects", count)
		return nil
	}
}

// subjectInfo — запись из файла информации о субъектах.
type subjectInfo struct {
	Yob        int
	IsCase     bool
	CancerDate string
}

// loadSubjectInfo читает файл информации о субъектах в map.
func loadSubjectInfo(ctx context.Context, path string) (map[string]subjectInfo, error) {
	subjects := make(map[string]subjectInfo)
	err := scanTable(ctx, path, ',', func(r row) error {
		id := r.get("subject_id")
		if id == "" {
			return nil
		}
		yob := 0
		fmt.Sscanf(r.get("yob"), "%d", &yob)
		subjects[id] = subjectInfo{
			Yob:        yob,
			IsCase:     r.get("is_case") == "1",
			CancerDate: r.get("cancerdate"),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load subject info: %w", err)
	}
	return subjects, nil
}
