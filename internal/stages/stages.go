package stages

import (
	"time"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/registry"
)

const gb = 1 << 30

// standardProfile — профиль по умолчанию для лёгких стадий.
func standardProfile(wallClock time.Duration) domain.ResourceProfile {
	return domain.ResourceProfile{
		Cores:       1,
		MemoryBytes: 16 * gb,
		WallClock:   wallClock,
		Queue:       domain.QueueStandard,
	}
}

// Register регистрирует все стадии конвейера и диагностики.
//
// Граф зависимостей: 1 → 2 → 3a → 3b → 3c → 5, при этом stage 4
// зависит только от 3b — шаблон правил строится по сырым кодам до
// маппинга и курируется вручную.
func Register(reg *registry.Registry, cfg *config.Config) error {
	pipeline := []*domain.Stage{
		{
			ID:          "1",
			Description: "define case/control cohort from cancer registry",
			Profile:     standardProfile(4 * time.Hour),
			Handler:     defineCohort(cfg),
		},
		{
			ID:          "2",
			Description: "build subject information table",
			Profile:     standardProfile(1 * time.Hour),
			Requires:    []string{"1"},
			Handler:     buildSubjectInfo(cfg),
		},
		{
			ID:          "3a",
			Description: "extract observation events within trajectory windows",
			Profile: domain.ResourceProfile{
				Cores:       8,
				MemoryBytes: 64 * gb,
				WallClock:   24 * time.Hour,
				Queue:       domain.QueueHighMem,
			},
			Requires: []string{"2"},
			Handler:  extractEvents(cfg),
		},
		{
			ID:          "3b",
			Description: "sort event stream and inject birth events",
			Profile: domain.ResourceProfile{
				Cores:       4,
				MemoryBytes: 32 * gb,
				WallClock:   8 * time.Hour,
				Queue:       domain.QueueHighMem,
			},
			Requires: []string{"3a"},
			Handler:  sortEvents(cfg),
		},
		{
			ID:          "3c",
			Description: "map raw medcodes to medical terms",
			Profile:     standardProfile(8 * time.Hour),
			Requires:    []string{"3b"},
			Handler:     mapEvents(cfg),
		},
		{
			ID:          "4",
			Description: "build cleaning rules template for manual curation",
			Profile:     standardProfile(4 * time.Hour),
			Requires:    []string{"3b"},
			Handler:     buildCleaningRules(cfg),
		},
		{
			ID:          "5",
			Description: "apply curated cleaning rules to event stream",
			Profile:     standardProfile(8 * time.Hour),
			Requires:    []string{"3c"},
			Handler:     cleanEvents(cfg),
		},
	}

	diagnostics := []*domain.Stage{
		{
			ID:          "coverage",
			Description: "report mapping coverage over unique raw codes",
			Profile:     standardProfile(2 * time.Hour),
			Handler:     coverageReport(cfg),
			Diagnostic:  true,
		},
		{
			ID:          "trajectory",
			Description: "dump a single subject event trajectory",
			Profile:     standardProfile(1 * time.Hour),
			Handler:     trajectoryDump(cfg),
			Diagnostic:  true,
		},
	}

	for _, stage := range pipeline {
		if err := reg.Register(stage); err != nil {
			return err
		}
	}
	for _, stage := range diagnostics {
		if err := reg.Register(stage); err != nil {
			return err
		}
	}
	return nil
}
