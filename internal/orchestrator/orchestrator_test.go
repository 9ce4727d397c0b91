package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/registry"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/runlog"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/runner"
)

// env — тестовое окружение: цепочка 1 → 2 → 3 с записью вызовов handler'ов.
type env struct {
	orch  *Orchestrator
	log   *runlog.FileLog
	calls *callLog
}

type callLog struct {
	mu  sync.Mutex
	ids []string
}

func (c *callLog) record(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
}

func (c *callLog) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func testProfile() domain.ResourceProfile {
	return domain.ResourceProfile{
		Cores:       1,
		MemoryBytes: 1 << 30,
		WallClock:   time.Minute,
		Queue:       domain.QueueStandard,
	}
}

// newEnv собирает оркестратор над цепочкой 1 → 2 → 3.
// handlers переопределяет handler'ы отдельных stage'ей.
func newEnv(t *testing.T, handlers map[string]domain.Handler) *env {
	t.Helper()

	calls := &callLog{}
	reg := registry.New()
	for _, tc := range []struct {
		id       string
		requires []string
	}{
		{"1", nil},
		{"2", []string{"1"}},
		{"3", []string{"2"}},
	} {
		id := tc.id
		handler := handlers[id]
		err := reg.Register(&domain.Stage{
			ID:       id,
			Profile:  testProfile(),
			Requires: tc.requires,
			Handler: func(ctx context.Context, sc *domain.StageContext) error {
				calls.record(id)
				if handler != nil {
					return handler(ctx, sc)
				}
				return nil
			},
		})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	log, err := runlog.NewFileLog(filepath.Join(t.TempDir(), "runlog.jsonl"))
	if err != nil {
		t.Fatalf("new runlog: %v", err)
	}

	run := runner.New(runner.Config{
		LogRoot: t.TempDir(),
		Dataset: t.TempDir(),
	})

	return &env{
		orch: New(Config{
			Registry: reg,
			Runner:   run,
			RunLog:   log,
		}),
		log:   log,
		calls: calls,
	}
}

func succeededHistory(stageIDs ...string) []domain.RunRecord {
	history := make([]domain.RunRecord, 0, len(stageIDs))
	for _, id := range stageIDs {
		rec := domain.NewRunRecord(uuid.New(), id)
		rec.Finalize(domain.OutcomeSucceeded, "")
		history = append(history, *rec)
	}
	return history
}

func TestExecute_RangeRunsInOrder(t *testing.T) {
	e := newEnv(t, nil)

	records, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeRange, Start: "1", End: "3"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"1", "2", "3"} {
		if records[i].StageID != want {
			t.Errorf("record %d: expected stage %s, got %s", i, want, records[i].StageID)
		}
		if records[i].Outcome != domain.OutcomeSucceeded {
			t.Errorf("stage %s: expected SUCCEEDED, got %s", want, records[i].Outcome)
		}
	}

	got := e.calls.list()
	if len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Errorf("handlers invoked out of order: %v", got)
	}
}

func TestExecute_HaltsOnFailure(t *testing.T) {
	e := newEnv(t, map[string]domain.Handler{
		"2": func(_ context.Context, _ *domain.StageContext) error {
			return errors.New("observation file corrupt")
		},
	})

	records, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeRange, Start: "1", End: "3"}, nil)

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected AbortError, got %v", err)
	}
	if abort.StageID != "2" {
		t.Errorf("abort must reference stage 2, got %s", abort.StageID)
	}
	if !errors.Is(err, ErrPipelineAborted) {
		t.Error("AbortError must unwrap to ErrPipelineAborted")
	}

	// Stage 3 не запускался.
	got := e.calls.list()
	if len(got) != 2 {
		t.Errorf("expected handlers 1 and 2 only, got %v", got)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records, got %d", len(records))
	}

	// Журнал содержит ровно две записи: 1 SUCCEEDED, 2 FAILED.
	ctx := context.Background()
	h1, _ := e.log.History(ctx, "1")
	if len(h1) != 1 || h1[0].Outcome != domain.OutcomeSucceeded {
		t.Errorf("stage 1 history wrong: %v", h1)
	}
	h2, _ := e.log.History(ctx, "2")
	if len(h2) != 1 || h2[0].Outcome != domain.OutcomeFailed {
		t.Errorf("stage 2 history wrong: %v", h2)
	}
	h3, _ := e.log.History(ctx, "3")
	if len(h3) != 0 {
		t.Errorf("stage 3 must have no history, got %v", h3)
	}
}

func TestExecute_SingleUnmetDependency(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeSingle, Stage: "2"}, nil)
	if !errors.Is(err, ErrUnsatisfiedDependency) {
		t.Fatalf("expected ErrUnsatisfiedDependency, got %v", err)
	}

	// Никакого выполнения не произошло.
	if got := e.calls.list(); len(got) != 0 {
		t.Errorf("no handler may run on unmet dependency, got %v", got)
	}
}

func TestExecute_SingleWithHistory(t *testing.T) {
	e := newEnv(t, nil)

	records, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeSingle, Stage: "2"}, succeededHistory("1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].StageID != "2" {
		t.Fatalf("expected single record for stage 2, got %v", records)
	}

	// Stage 1 не перезапускался.
	if got := e.calls.list(); len(got) != 1 || got[0] != "2" {
		t.Errorf("expected only handler 2, got %v", got)
	}
}

func TestExecute_FromStageSkipsSucceeded(t *testing.T) {
	e := newEnv(t, nil)

	records, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeFromStage, Stage: "2"}, succeededHistory("1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected records for stages 2 and 3, got %d", len(records))
	}

	got := e.calls.list()
	for _, id := range got {
		if id == "1" {
			t.Error("stage 1 must not be re-invoked")
		}
	}
}

func TestExecute_FromStageNoHistory(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeFromStage, Stage: "2"}, nil)
	if !errors.Is(err, ErrUnsatisfiedDependency) {
		t.Fatalf("expected ErrUnsatisfiedDependency, got %v", err)
	}
}

func TestExecute_LastFailedOutcomeBlocksDependency(t *testing.T) {
	e := newEnv(t, nil)

	// Stage 1 когда-то прошёл, но последняя запись — падение.
	history := succeededHistory("1")
	failed := domain.NewRunRecord(uuid.New(), "1")
	failed.Finalize(domain.OutcomeFailed, "disk full")
	history = append(history, *failed)

	_, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeSingle, Stage: "2"}, history)
	if !errors.Is(err, ErrUnsatisfiedDependency) {
		t.Fatalf("expected ErrUnsatisfiedDependency, got %v", err)
	}
}

func TestExecute_UnknownStage(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeSingle, Stage: "9"}, nil)
	if !errors.Is(err, registry.ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestExecute_InvalidRange(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.orch.Execute(context.Background(),
		Request{Mode: ModeRange, Start: "3", End: "1"}, nil)
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestExecute_CancellationStopsSequence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	e := newEnv(t, map[string]domain.Handler{
		"2": func(ctx context.Context, _ *domain.StageContext) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		},
	})

	records, err := e.orch.Execute(ctx,
		Request{Mode: ModeRange, Start: "1", End: "3"}, nil)

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected AbortError, got %v", err)
	}
	if abort.StageID != "2" {
		t.Errorf("expected stage 2 aborted, got %s", abort.StageID)
	}

	last := records[len(records)-1]
	if last.Outcome != domain.OutcomeFailed || last.Error != "cancelled" {
		t.Errorf("expected cancelled failure record, got %s %q", last.Outcome, last.Error)
	}

	// Stage 3 не стартовал.
	for _, id := range e.calls.list() {
		if id == "3" {
			t.Error("no stage may start after cancellation")
		}
	}
}
