package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// labTerms — термины, события которых маркируются как LAB-тесты
// и проходят через курированные правила очистки на stage 5.
var labTerms = map[string]bool{
	"MVC": true, "CRP": true, "Hemoglobin": true, "TIBC": true, "HbA1c": true,
	"plasma_viscosity": true, "ESR": true, "GGT": true, "lymphocyte": true,
	"platelets": true, "AST": true, "ALP": true, "ferritin": true, "MCH": true,
	"calcium_serum": true, "neutrophils": true, "h_p_ylori": true, "glucose": true,
	"cholesterol_triglycerides": true, "bilirubin": true, "anti_ttg": true,
	"plasma_proteins": true, "BP": true, "amylase": true, "ALT": true,
	"urea_serum": true, "CA125": true, "creatinine_serum": true,
	"albumin_serum": true, "WCC": true, "creatinine_urine": true, "iron": true,
}

// codeMap — таблицы маппинга raw medcode → медицинский термин
// с многоуровневым fallback'ом.
type codeMap struct {
	// primary — из колонки medcodes кодлиста.
	primary map[string]string

	// byReadCode — термин по read code (колонка ReadcodeList).
	byReadCode map[string]string

	// secondary — из колонки medcodes2.
	secondary map[string]string

	// readCode — raw medcode → read code (медицинский словарь).
	readCode map[string]string

	// snomed — raw medcode → SNOMED concept (медицинский словарь).
	snomed map[string]string
}

// mapLevel — уровень fallback-иерархии, сработавший для кода.
type mapLevel int

const (
	mapLevelPrimary mapLevel = iota
	mapLevelReadCode
	mapLevelSecondary
	mapLevelSnomed
	mapLevelUnmapped
)

// buildCodeMap загружает кодлисты и медицинский словарь.
func buildCodeMap(ctx context.Context, cfg *config.Config) (*codeMap, error) {
	cm := &codeMap{
		primary:    make(map[string]string),
		byReadCode: make(map[string]string),
		secondary:  make(map[string]string),
		readCode:   make(map[string]string),
		snomed:     make(map[string]string),
	}

	err := scanTable(ctx, cfg.Paths.CleanedCodelists, ',', func(r row) error {
		term := r.get("MedicalTerm")
		if term == "" {
			return nil
		}
		addCodes(cm.primary, r.get("medcodes"), term)
		addCodes(cm.byReadCode, r.get("ReadcodeList"), term)
		addCodes(cm.secondary, r.get("medcodes2"), term)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load codelists: %w", err)
	}

	err = scanTable(ctx, cfg.Paths.MedicalDictionary, ',', func(r row) error {
		id := r.get("MedCodeId")
		if id == "" {
			return nil
		}
		if _, seen := cm.readCode[id]; seen {
			return nil
		}
		if rc := r.get("OriginalReadCode"); rc != "" {
			cm.readCode[id] = rc
		}
		if sn := r.get("SnomedCTConceptId"); sn != "" {
			cm.snomed[id] = sn
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load medical dictionary: %w", err)
	}

	return cm, nil
}

// addCodes раскладывает comma-separated список кодов в map.
// Первый термин для кода выигрывает.
func addCodes(dst map[string]string, list, term string) {
	for _, code := range strings.Split(list, ",") {
		code = strings.Trim(code, " '\"[]")
		if code == "" {
			continue
		}
		if _, seen := dst[code]; !seen {
			dst[code] = term
		}
	}
}

// resolve возвращает стандартизованный код и уровень fallback'а.
//
// Иерархия: primary medcodes → read code → medcodes2 → SNOMED → NULL.
func (cm *codeMap) resolve(raw string) (string, mapLevel) {
	if term, ok := cm.primary[raw]; ok {
		prefix := "MEDICAL"
		if labTerms[term] {
			prefix = "LAB"
		}
		return fmt.Sprintf("%s//%s//%s", prefix, term, raw), mapLevelPrimary
	}
	if rc, ok := cm.readCode[raw]; ok {
		if term, ok := cm.byReadCode[rc]; ok {
			return fmt.Sprintf("MEDICAL//%s//%s", term, raw), mapLevelReadCode
		}
	}
	if term, ok := cm.secondary[raw]; ok {
		return fmt.Sprintf("MEDICAL//%s//%s", term, raw), mapLevelSecondary
	}
	if sn, ok := cm.snomed[raw]; ok {
		return fmt.Sprintf("MEDICAL//%s//%s", sn, raw), mapLevelSnomed
	}
	return fmt.Sprintf("MEDICAL//NULL//%s", raw), mapLevelUnmapped
}

// rawCode извлекает сырой код из стандартизованного ("prefix//X" → "X").
func rawCode(code string) string {
	idx := strings.LastIndex(code, "//")
	if idx < 0 {
		return ""
	}
	return code[idx+2:]
}

// mapEvents — stage 3c: маппинг medcode'ов в медицинские термины.
func mapEvents(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		log := sc.Logger

		cm, err := buildCodeMap(ctx, cfg)
		if err != nil {
			return err
		}
		log.Info("mapping tables built",
			"primary", len(cm.primary),
			"read_codes", len(cm.byReadCode),
			"secondary", len(cm.secondary),
			"dictionary", len(cm.readCode),
		)

		w, err := newTableWriter(eventsFile(cfg.Outputs.EventStreamDir),
			[]string{"subject_id", "time", "code", "numeric_value", "numunitid"})
		if err != nil {
			return err
		}

		var total, unmapped int
		err = scanTable(ctx, eventsFile(cfg.Outputs.IntermediateSorted), ',', func(r row) error {
			code := r.get("code")
			if code != birthCode {
				mapped, level := cm.resolve(rawCode(code))
				if level == mapLevelUnmapped {
					unmapped++
				}
				code = mapped
			}
			total++
			return w.write(r.get("subject_id"), r.get("time"), code,
				r.get("numeric_value"), r.get("numunitid"))
		})
		if err != nil {
			w.close()
			return fmt.Errorf("map events: %w", err)
		}
		if err := w.close(); err != nil {
			return fmt.Errorf("close mapped event stream: %w", err)
		}

		log.Info("events mapped", "events", total, "unmapped", unmapped)
		return nil
	}
}
