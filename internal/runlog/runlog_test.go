package runlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

func newTestLog(t *testing.T) *FileLog {
	t.Helper()
	log, err := NewFileLog(filepath.Join(t.TempDir(), "runlog.jsonl"))
	if err != nil {
		t.Fatalf("new file log: %v", err)
	}
	return log
}

func finalizedRecord(stageID string, outcome domain.Outcome, errDetail string) *domain.RunRecord {
	rec := domain.NewRunRecord(uuid.New(), stageID)
	rec.Finalize(outcome, errDetail)
	return rec
}

func TestFileLog_AppendAndHistory(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	// Два последовательных запуска одного stage: упал, затем прошёл.
	if err := log.Append(ctx, finalizedRecord("3a", domain.OutcomeFailed, "out of memory")); err != nil {
		t.Fatalf("append failed record: %v", err)
	}
	if err := log.Append(ctx, finalizedRecord("3a", domain.OutcomeSucceeded, "")); err != nil {
		t.Fatalf("append succeeded record: %v", err)
	}

	history, err := log.History(ctx, "3a")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	if history[0].Outcome != domain.OutcomeFailed || history[1].Outcome != domain.OutcomeSucceeded {
		t.Errorf("history out of chronological order: %v, %v", history[0].Outcome, history[1].Outcome)
	}

	// Последний исход — свежая запись.
	outcome, err := log.LastOutcome(ctx, "3a")
	if err != nil {
		t.Fatalf("last outcome: %v", err)
	}
	if outcome != domain.OutcomeSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", outcome)
	}
}

func TestFileLog_HistoryFiltersByStage(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(t)

	if err := log.Append(ctx, finalizedRecord("1", domain.OutcomeSucceeded, "")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, finalizedRecord("2", domain.OutcomeSucceeded, "")); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := log.History(ctx, "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].StageID != "1" {
		t.Errorf("expected single record for stage 1, got %v", history)
	}

	// Пустой stageID возвращает всё.
	all, err := log.History(ctx, "")
	if err != nil {
		t.Fatalf("full history: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 records for empty stage filter, got %d", len(all))
	}
}

func TestFileLog_LastOutcomeNoHistory(t *testing.T) {
	log := newTestLog(t)

	_, err := log.LastOutcome(context.Background(), "5")
	if !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
}

func TestFileLog_RejectsPendingRecord(t *testing.T) {
	log := newTestLog(t)

	rec := domain.NewRunRecord(uuid.New(), "1")
	err := log.Append(context.Background(), rec)
	if !errors.Is(err, ErrNotFinalized) {
		t.Fatalf("expected ErrNotFinalized, got %v", err)
	}
}

func TestFileLog_EmptyFileHistory(t *testing.T) {
	log := newTestLog(t)

	history, err := log.History(context.Background(), "1")
	if err != nil {
		t.Fatalf("history on missing file: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d records", len(history))
	}
}
