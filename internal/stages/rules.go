package stages

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// unitStats — агрегаты по числовым значениям пары (код, единица измерения).
type unitStats struct {
	count int
	min   float64
	max   float64
	sum   float64
}

func (s *unitStats) observe(v float64) {
	if s.count == 0 {
		s.min, s.max = v, v
	} else {
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}
	s.sum += v
	s.count++
}

func (s *unitStats) mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// buildCleaningRules — stage 4: шаблон правил очистки для ручной курации.
//
// По каждой уникальной паре (код, numunitid) считаются count/min/max/mean,
// колонки ConversionFactor/ConversionBias/ValidMin/ValidMax остаются
// пустыми и заполняются вручную перед stage 5.
func buildCleaningRules(cfg *config.Config) domain.Handler {
	return func(ctx context.Context, sc *domain.StageContext) error {
		log := sc.Logger

		type key struct {
			code string
			unit string
		}
		stats := make(map[key]*unitStats)

		err := scanTable(ctx, eventsFile(cfg.Outputs.IntermediateSorted), ',', func(r row) error {
			v, ok := parseFloat(r.get("numeric_value"))
			if !ok {
				return nil
			}
			k := key{code: r.get("code"), unit: r.get("numunitid")}
			s := stats[k]
			if s == nil {
				s = &unitStats{}
				stats[k] = s
			}
			s.observe(v)
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan sorted events: %w", err)
		}

		keys := make([]key, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].code != keys[j].code {
				return keys[i].code < keys[j].code
			}
			return keys[i].unit < keys[j].unit
		})

		w, err := newTableWriter(cfg.Outputs.CleaningRulesTemplate, []string{
			"Identifier", "UnitID", "Count", "Min", "Max", "Mean",
			"ConversionFactor", "ConversionBias", "ValidMin", "ValidMax",
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			s := stats[k]
			if err := w.write(k.code, k.unit,
				strconv.Itoa(s.count),
				formatFloat(s.min), formatFloat(s.max), formatFloat(s.mean()),
				"", "", "", "",
			); err != nil {
				w.close()
				return fmt.Errorf("write cleaning rules template: %w", err)
			}
		}
		if err := w.close(); err != nil {
			return fmt.Errorf("close cleaning rules template: %w", err)
		}

		log.Info("cleaning rules template built",
			"pairs", len(keys), "path", cfg.Outputs.CleaningRulesTemplate)
		return nil
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
