package runlog

import "errors"

// Ошибки журнала запусков.
var (
	// ErrNoHistory — для stage нет ни одной записи.
	ErrNoHistory = errors.New("no history for stage")

	// ErrNotFinalized — попытка записать нефинализированную запись.
	// RunRecord попадает в журнал ровно один раз, уже с исходом.
	ErrNotFinalized = errors.New("run record is not finalized")
)
