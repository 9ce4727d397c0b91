package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrUnsatisfiedDependency — prerequisite stage'а не имеет
	// успешной записи в переданной истории. Actionable: сначала
	// запустить prerequisites.
	ErrUnsatisfiedDependency = errors.New("unsatisfied stage dependency")

	// ErrPipelineAborted — run остановлен после падения stage'а.
	ErrPipelineAborted = errors.New("pipeline aborted")

	// ErrInvalidRange — начало range-селектора идёт после конца
	// в каноническом порядке.
	ErrInvalidRange = errors.New("invalid stage range")

	// ErrEmptySelection — селектор не выбрал ни одного stage'а.
	ErrEmptySelection = errors.New("selection matches no stages")
)

// AbortError — остановка конвейера после падения stage'а.
//
// Несёт идентификатор упавшего stage'а и детали ошибки.
// Все RunRecord'ы, произведённые до остановки, остаются в журнале.
type AbortError struct {
	// StageID — идентификатор упавшего stage'а.
	StageID string

	// Detail — детали ошибки из RunRecord.
	Detail string
}

// Error реализует интерфейс error.
func (e *AbortError) Error() string {
	return "pipeline aborted: stage " + e.StageID + " failed: " + e.Detail
}

// Unwrap возвращает базовую ошибку.
func (e *AbortError) Unwrap() error {
	return ErrPipelineAborted
}
