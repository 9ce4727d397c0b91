package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome — исход выполнения stage.
//
// Жизненный цикл:
//
//	PENDING → SUCCEEDED
//	        ↘ FAILED
type Outcome string

const (
	// OutcomePending — stage начал выполняться, но ещё не завершён.
	OutcomePending Outcome = "PENDING"

	// OutcomeSucceeded — stage успешно завершён.
	OutcomeSucceeded Outcome = "SUCCEEDED"

	// OutcomeFailed — stage завершился с ошибкой (включая отмену и таймаут).
	OutcomeFailed Outcome = "FAILED"
)

// IsTerminal возвращает true, если исход финальный.
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomeSucceeded, OutcomeFailed:
		return true
	default:
		return false
	}
}

// RunRecord — неизменяемая запись об одном выполнении stage внутри run.
//
// Создаётся при старте stage, финализируется ровно один раз, когда
// handler возвращает управление, и после этого не мутируется.
type RunRecord struct {
	// RunID — идентификатор run, в рамках которого выполнялся stage.
	RunID uuid.UUID `json:"run_id"`

	// StageID — идентификатор stage.
	StageID string `json:"stage_id"`

	// Outcome — исход выполнения.
	Outcome Outcome `json:"outcome"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока stage выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — детали ошибки. Присутствует только при Outcome == FAILED.
	Error string `json:"error,omitempty"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если stage ещё не завершён.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finalize фиксирует исход записи. Повторный вызов — программная ошибка,
// запись после финализации считается неизменяемой.
func (r *RunRecord) Finalize(outcome Outcome, errDetail string) {
	now := time.Now().UTC()
	r.Outcome = outcome
	r.FinishedAt = &now
	r.Error = errDetail
}

// NewRunRecord создаёт запись для начавшегося выполнения stage.
func NewRunRecord(runID uuid.UUID, stageID string) *RunRecord {
	return &RunRecord{
		RunID:     runID,
		StageID:   stageID,
		Outcome:   OutcomePending,
		StartedAt: time.Now().UTC(),
	}
}

// PipelineRun — упорядоченная последовательность RunRecord'ов
// одного вызова оркестратора.
//
// Run владеет своими записями эксклюзивно: никакой другой компонент
// не мутирует их после создания.
type PipelineRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Records — записи о выполненных stage'ах в порядке выполнения.
	Records []*RunRecord `json:"records"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewPipelineRun создаёт пустой run с новым идентификатором.
func NewPipelineRun() *PipelineRun {
	return &PipelineRun{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
}
