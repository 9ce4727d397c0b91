package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// cleaningRule — курированное правило приведения числового значения.
type cleaningRule struct {
	factor   float64
	bias     float64
	validMin float64
	validMax float64
	hasRange bool
}

func (r cleaningRule) apply(v float64) (float64, bool) {
	v = v*r.factor + r.bias
	if r.hasRange && (v < r.validMin || v > r.validMax) {
		return 0, false
	}
	return v, true
}

// loadCleaningRules читает финальные правила, ключ — (Identifier, UnitID).
func loadCleaningRules(ctx context.Context, path string) (map[[2]string]cleaningRule, error) {
	rules := make(map[[2]string]cleaningRule)
	err := scanTable(ctx, path, ',', func(r row) error {
		id := r.get("Identifier")
		if id == "" {
			return nil
		}
		rule := cleaningRule{factor: 1}
		if v, ok := parseFloat(r.get("ConversionFactor")); ok {
			rule.factor = v
		}
		if v, ok := parseFloat(r.get("ConversionBias")); ok {
			rule.bias = v
		}
		vmin, okMin := parseFloat(r.get("ValidMin"))
		vmax, okMax := parseFloat(r.get("ValidMax"))
		if okMin && okMax {
			rule.validMin, rule.validMax, rule.hasRange = vmin, vmax, true
		}
		rules[[2]string{id, r.get("UnitID")}] = rule
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load cleaning rules: %w", err)
	}
	return rules, nil
}

// codeTerm извлекает медицинский термин из стандартизованного кода
// ("LAB//CRP//123" → "CRP").
func codeTerm(code string) string {
	parts := strings.SplitN(code, "//", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// cleanEvents — stage 5: применение правил очистки к потоку событий.
//
// Числовые значения умножаются на ConversionFactor и сдвигаются на
// ConversionBias; значения вне [ValidMin, ValidMax] обнуляются.
// События без правила проходят без изменений.
func cleanEvents(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		log := sc.Logger

		rules, err := loadCleaningRules(ctx, cfg.Paths.CleaningRulesFinal)
		if err != nil {
			return err
		}
		log.Info("cleaning rules loaded", "rules", len(rules))

		w, err := newTableWriter(eventsFile(cfg.Outputs.FinalCleanedDir),
			[]string{"subject_id", "time", "code", "numeric_value", "numunitid"})
		if err != nil {
			return err
		}

		var total, converted, nulled int
		err = scanTable(ctx, eventsFile(cfg.Outputs.EventStreamDir), ',', func(r row) error {
			total++
			code := r.get("code")
			value := r.get("numeric_value")

			if v, ok := parseFloat(value); ok {
				rule, found := rules[[2]string{codeTerm(code), r.get("numunitid")}]
				if !found {
					rule, found = rules[[2]string{code, r.get("numunitid")}]
				}
				if found {
					cleaned, valid := rule.apply(v)
					if valid {
						value = formatFloat(cleaned)
						converted++
					} else {
						value = ""
						nulled++
					}
				}
			}
			return w.write(r.get("subject_id"), r.get("time"), code, value, r.get("numunitid"))
		})
		if err != nil {
			w.close()
			return fmt.Errorf("clean events: %w", err)
		}
		if err := w.close(); err != nil {
			return fmt.Errorf("close cleaned event stream: %w", err)
		}

		log.Info("events cleaned", "events", total, "converted", converted, "nulled", nulled)
		return nil
	}
}
