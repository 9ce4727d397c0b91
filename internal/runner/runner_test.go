package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

func testRunner(t *testing.T, grace time.Duration) *Runner {
	t.Helper()
	return New(Config{
		LogRoot:     t.TempDir(),
		Dataset:     t.TempDir(),
		GracePeriod: grace,
	})
}

func testStage(id string, wallClock time.Duration, handler domain.Handler) *domain.Stage {
	return &domain.Stage{
		ID: id,
		Profile: domain.ResourceProfile{
			Cores:       1,
			MemoryBytes: 1 << 30,
			WallClock:   wallClock,
			Queue:       domain.QueueStandard,
		},
		Handler: handler,
	}
}

func TestRun_Success(t *testing.T) {
	r := testRunner(t, time.Second)

	var gotDataset string
	stage := testStage("1", time.Minute, func(_ context.Context, sc *domain.StageContext) error {
		gotDataset = sc.Dataset
		sc.Logger.Info("working")
		return nil
	})

	record := r.Run(context.Background(), stage, uuid.New())
	if record.Outcome != domain.OutcomeSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s (%s)", record.Outcome, record.Error)
	}
	if record.FinishedAt == nil {
		t.Error("record must be finalized")
	}
	if gotDataset == "" {
		t.Error("handler must receive dataset location")
	}
}

func TestRun_HandlerError(t *testing.T) {
	r := testRunner(t, time.Second)

	stage := testStage("2", time.Minute, func(_ context.Context, _ *domain.StageContext) error {
		return errors.New("no raw patient files found")
	})

	record := r.Run(context.Background(), stage, uuid.New())
	if record.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected FAILED, got %s", record.Outcome)
	}
	if record.Error != "no raw patient files found" {
		t.Errorf("error detail lost: %q", record.Error)
	}
}

func TestRun_HandlerPanic(t *testing.T) {
	r := testRunner(t, time.Second)

	stage := testStage("3a", time.Minute, func(_ context.Context, _ *domain.StageContext) error {
		panic("index out of range")
	})

	record := r.Run(context.Background(), stage, uuid.New())
	if record.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected FAILED after panic, got %s", record.Outcome)
	}
}

func TestRun_Cancellation(t *testing.T) {
	r := testRunner(t, time.Second)

	stage := testStage("3a", time.Minute, func(ctx context.Context, _ *domain.StageContext) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	record := r.Run(ctx, stage, uuid.New())
	if record.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected FAILED, got %s", record.Outcome)
	}
	if record.Error != ErrCancelled.Error() {
		t.Errorf("expected cancellation detail, got %q", record.Error)
	}
}

func TestRun_WallClockTimeout(t *testing.T) {
	r := testRunner(t, time.Second)

	// Wall-clock лимит истекает раньше, чем handler закончит.
	stage := testStage("3b", 50*time.Millisecond, func(ctx context.Context, _ *domain.StageContext) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	record := r.Run(context.Background(), stage, uuid.New())
	if record.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected FAILED, got %s", record.Outcome)
	}
	if record.Error != ErrCancelled.Error() {
		t.Errorf("timeout must be indistinguishable from cancellation, got %q", record.Error)
	}
}

func TestRun_GraceWindowExpires(t *testing.T) {
	r := testRunner(t, 50*time.Millisecond)

	// Handler игнорирует отмену.
	stage := testStage("5", 50*time.Millisecond, func(_ context.Context, _ *domain.StageContext) error {
		time.Sleep(5 * time.Second)
		return nil
	})

	start := time.Now()
	record := r.Run(context.Background(), stage, uuid.New())
	if record.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected FAILED, got %s", record.Outcome)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("runner must not wait for a stuck handler, took %s", elapsed)
	}
}

func TestRun_StageLogIsolated(t *testing.T) {
	logRoot := t.TempDir()
	r := New(Config{LogRoot: logRoot, Dataset: t.TempDir()})

	runID := uuid.New()
	stage := testStage("1", time.Minute, func(_ context.Context, sc *domain.StageContext) error {
		sc.Logger.Info("cohort defined", "cases", 120)
		return nil
	})

	r.Run(context.Background(), stage, runID)

	logPath := filepath.Join(logRoot, runID.String(), "1.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("stage log not written: %v", err)
	}
	if len(data) == 0 {
		t.Error("stage log is empty")
	}
}
