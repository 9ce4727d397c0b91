package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

func testProfile() domain.ResourceProfile {
	return domain.ResourceProfile{
		Cores:       1,
		MemoryBytes: 4 << 30,
		WallClock:   time.Hour,
		Queue:       domain.QueueStandard,
	}
}

func noopHandler(_ context.Context, _ *domain.StageContext) error { return nil }

func mustRegister(t *testing.T, r *Registry, id string, requires ...string) {
	t.Helper()
	err := r.Register(&domain.Stage{
		ID:       id,
		Profile:  testProfile(),
		Requires: requires,
		Handler:  noopHandler,
	})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	mustRegister(t, r, "1")

	err := r.Register(&domain.Stage{ID: "1", Profile: testProfile()})
	if !errors.Is(err, ErrDuplicateStage) {
		t.Fatalf("expected ErrDuplicateStage, got %v", err)
	}
}

func TestRegister_UnknownPrerequisite(t *testing.T) {
	r := New()

	err := r.Register(&domain.Stage{
		ID:       "2",
		Profile:  testProfile(),
		Requires: []string{"1"},
	})
	if !errors.Is(err, ErrInvalidDependency) {
		t.Fatalf("expected ErrInvalidDependency, got %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("failed registration must not leave stage in registry")
	}
}

func TestRegister_InvalidProfile(t *testing.T) {
	r := New()

	err := r.Register(&domain.Stage{ID: "1", Profile: domain.ResourceProfile{}})
	if !errors.Is(err, domain.ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
}

func TestResolve_Unknown(t *testing.T) {
	r := New()
	mustRegister(t, r, "1")

	if _, err := r.Resolve("9"); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestTopologicalOrder_Chain(t *testing.T) {
	r := New()
	mustRegister(t, r, "1")
	mustRegister(t, r, "2", "1")
	mustRegister(t, r, "3", "2")

	// Запрашиваем только "3" — prerequisites подтягиваются транзитивно.
	order, err := r.TopologicalOrder([]string{"3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := stageIDs(order)
	want := []string{"1", "2", "3"}
	if !equalIDs(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
}

func TestTopologicalOrder_Deterministic(t *testing.T) {
	// Ромб: b и c не упорядочены между собой, tie-break по идентификатору.
	r := New()
	mustRegister(t, r, "a")
	mustRegister(t, r, "c", "a")
	mustRegister(t, r, "b", "a")
	mustRegister(t, r, "d", "b", "c")

	want := []string{"a", "b", "c", "d"}
	for i := 0; i < 10; i++ {
		order, err := r.TopologicalOrder([]string{"d"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := stageIDs(order)
		if !equalIDs(got, want) {
			t.Fatalf("call %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestTopologicalOrder_EveryStageAfterPrerequisites(t *testing.T) {
	r := New()
	mustRegister(t, r, "1")
	mustRegister(t, r, "2", "1")
	mustRegister(t, r, "3a", "2")
	mustRegister(t, r, "3b", "3a")
	mustRegister(t, r, "3c", "3b")
	mustRegister(t, r, "4", "3b")
	mustRegister(t, r, "5", "3c")

	order, err := r.CanonicalOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 7 {
		t.Fatalf("expected 7 stages, got %d", len(order))
	}

	pos := make(map[string]int)
	for i, stage := range order {
		pos[stage.ID] = i
	}
	for _, stage := range order {
		for _, dep := range stage.Requires {
			if pos[dep] >= pos[stage.ID] {
				t.Errorf("stage %s appears before its prerequisite %s", stage.ID, dep)
			}
		}
	}
}

func TestDiagnostics_ExcludedFromOrdering(t *testing.T) {
	r := New()
	mustRegister(t, r, "1")

	err := r.Register(&domain.Stage{
		ID:         "coverage",
		Profile:    testProfile(),
		Diagnostic: true,
	})
	if err != nil {
		t.Fatalf("register diagnostic: %v", err)
	}

	order, err := r.CanonicalOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 1 || order[0].ID != "1" {
		t.Errorf("diagnostic stage must not appear in canonical order, got %v", stageIDs(order))
	}

	// Диагностика не доступна через topological order по имени.
	if _, err := r.TopologicalOrder([]string{"coverage"}); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage for diagnostic in pipeline selection, got %v", err)
	}

	diags := r.Diagnostics()
	if len(diags) != 1 || diags[0].ID != "coverage" {
		t.Errorf("expected diagnostics [coverage], got %v", stageIDs(diags))
	}
}

func TestRegister_DiagnosticWithPrerequisites(t *testing.T) {
	r := New()
	mustRegister(t, r, "1")

	err := r.Register(&domain.Stage{
		ID:         "trajectory",
		Profile:    testProfile(),
		Requires:   []string{"1"},
		Diagnostic: true,
	})
	if !errors.Is(err, ErrInvalidDependency) {
		t.Fatalf("expected ErrInvalidDependency, got %v", err)
	}
}

func stageIDs(stages []*domain.Stage) []string {
	ids := make([]string, len(stages))
	for i, s := range stages {
		ids[i] = s.ID
	}
	return ids
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
