package stages

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// subject — пациент из сырой выгрузки.
type subject struct {
	ID         string
	Gender     string
	Yob        int
	IsCase     bool
	CancerDate string // YYYY-MM-DD, пусто для контролей
}

// defineCohort — stage 1: определение когорты исследования.
//
// Случаи — пациенты с диагнозом нужного типа рака из реестра.
// Контроли подбираются по полу и окну года рождения, по
// controls_per_case на случай. Субъекты из master subject log
// исключаются из рассмотрения.
func defineCohort(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		log := sc.Logger

		used, err := loadMasterLog(ctx, cfg.Paths.MasterSubjectLog)
		if err != nil {
			return err
		}
		log.Info("master subject log loaded", "excluded_subjects", len(used))

		patients, err := loadPatients(ctx, cfg.Paths.RawPatientDataDir, used)
		if err != nil {
			return err
		}
		log.Info("available patients loaded", "count", len(patients))

		cancerDates, err := loadCancerRegistry(ctx, cfg.Paths.RawCancerData, cfg.StudyParams.CancerType)
		if err != nil {
			return err
		}
		log.Info("cancer registry loaded",
			"cancer_type", cfg.StudyParams.CancerType,
			"diagnosed", len(cancerDates),
		)

		// Случаи: доступные пациенты с диагнозом.
		var cases []*subject
		controlPool := make([]*subject, 0, len(patients))
		for _, p := range patients {
			if date, ok := cancerDates[p.ID]; ok {
				p.IsCase = true
				p.CancerDate = date
				cases = append(cases, p)
			} else {
				controlPool = append(controlPool, p)
			}
		}
		if len(cases) == 0 {
			return fmt.Errorf("no cases found for cancer type %q", cfg.StudyParams.CancerType)
		}

		// Детерминированный подбор: пул и случаи в стабильном порядке.
		sort.Slice(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
		sort.Slice(controlPool, func(i, j int) bool { return controlPool[i].ID < controlPool[j].ID })

		cohort := append([]*subject(nil), cases...)
		taken := make(map[string]bool)
		short := 0
		for _, c := range cases {
			matched := 0
			for _, ctrl := range controlPool {
				if matched == cfg.StudyParams.ControlsPerCase {
					break
				}
				if taken[ctrl.ID] || ctrl.Gender != c.Gender {
					continue
				}
				if abs(ctrl.Yob-c.Yob) > cfg.StudyParams.YobWindow {
					continue
				}
				taken[ctrl.ID] = true
				cohort = append(cohort, ctrl)
				matched++
			}
			if matched < cfg.StudyParams.ControlsPerCase {
				short++
			}
		}
		if short > 0 {
			log.Warn("insufficient matched controls", "cases_short", short)
		}

		w, err := newTableWriter(cfg.Outputs.CohortFile,
			[]string{"subject_id", "gender", "yob", "is_case", "cancerdate"})
		if err != nil {
			return err
		}
		for _, s := range cohort {
			isCase := "0"
			if s.IsCase {
				isCase = "1"
			}
			if err := w.write(s.ID, s.Gender, strconv.Itoa(s.Yob), isCase, s.CancerDate); err != nil {
				w.close()
				return fmt.Errorf("write cohort: %w", err)
			}
		}
		if err := w.close(); err != nil {
			return fmt.Errorf("close cohort file: %w", err)
		}

		log.Info("cohort defined",
			"cases", len(cases),
			"controls", len(cohort)-len(cases),
		)
		return nil
	}
}

// loadMasterLog читает множество уже использованных subject_id.
// Отсутствующий файл создаётся пустым.
func loadMasterLog(ctx context.Context, path string) (map[string]bool, error) {
	used := make(map[string]bool)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		w, err := newTableWriter(path, []string{"subject_id"})
		if err != nil {
			return nil, err
		}
		return used, w.close()
	}

	err := scanTable(ctx, path, ',', func(r row) error {
		if id := r.get("subject_id"); id != "" {
			used[id] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load master subject log: %w", err)
	}
	return used, nil
}

// loadPatients читает всех пациентов из сырых выгрузок, исключая used.
// Дубликаты subject_id схлопываются (первая запись выигрывает).
func loadPatients(ctx context.Context, dir string, used map[string]bool) ([]*subject, error) {
	files, err := globData(dir, "*.txt")
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*subject)
	for _, f := range files {
		err := scanTable(ctx, f, '\t', func(r row) error {
			id := r.get("e_patid")
			if id == "" || used[id] {
				return nil
			}
			if _, seen := byID[id]; seen {
				return nil
			}
			yob, err := strconv.Atoi(r.get("yob"))
			if err != nil {
				return nil // пациент без валидного года рождения не матчится
			}
			byID[id] = &subject{ID: id, Gender: r.get("gender"), Yob: yob}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load patients from %s: %w", f, err)
		}
	}

	patients := make([]*subject, 0, len(byID))
	for _, p := range byID {
		patients = append(patients, p)
	}
	return patients, nil
}

// loadCancerRegistry возвращает map subject_id → ISO-дата диагноза
// для нужного типа рака. Сырые даты в формате dd/mm/yyyy.
func loadCancerRegistry(ctx context.Context, path, cancerType string) (map[string]string, error) {
	dates := make(map[string]string)
	err := scanTable(ctx, path, '\t', func(r row) error {
		if r.get("site") != cancerType {
			return nil
		}
		id := r.get("e_patid")
		if id == "" {
			return nil
		}
		diag, err := time.Parse(rawDateFormat, r.get("diagnosisdate"))
		if err != nil {
			return nil // случай без валидной даты диагноза не берётся
		}
		// Первый диагноз выигрывает.
		if _, seen := dates[id]; !seen {
			dates[id] = diag.Format(isoDateFormat)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load cancer registry: %w", err)
	}
	return dates, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
