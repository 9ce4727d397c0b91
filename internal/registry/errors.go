package registry

import "errors"

// Ошибки реестра stage'ей. Все они означают misconfiguration
// и фатальны на старте процесса.
var (
	// ErrDuplicateStage — stage с таким идентификатором уже зарегистрирован.
	ErrDuplicateStage = errors.New("duplicate stage ID")

	// ErrUnknownStage — идентификатор не найден в реестре.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrInvalidDependency — prerequisite не зарегистрирован
	// либо регистрация вводит цикл в граф зависимостей.
	ErrInvalidDependency = errors.New("invalid stage dependency")
)
