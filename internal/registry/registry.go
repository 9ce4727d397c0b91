package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// Registry — реестр stage'ей конвейера.
//
// Хранит статическое отображение идентификатор → stage с декларированным
// ResourceProfile и списком prerequisites. Потокобезопасен.
//
// Диагностические stage'и хранятся отдельно от нумерованных: они не
// участвуют в графе зависимостей и каноническом порядке.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]*domain.Stage
}

// New создаёт пустой реестр.
func New() *Registry {
	return &Registry{
		stages: make(map[string]*domain.Stage),
	}
}

// Register добавляет stage в реестр.
//
// Ошибки:
//   - ErrDuplicateStage — идентификатор уже занят;
//   - ErrInvalidDependency — prerequisite не зарегистрирован, указывает
//     на диагностический stage или вводит цикл;
//   - domain.ErrInvalidProfile — некорректный профиль ресурсов.
func (r *Registry) Register(stage *domain.Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stage.ID == "" {
		return fmt.Errorf("%w: empty stage ID", ErrInvalidDependency)
	}
	if _, exists := r.stages[stage.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, stage.ID)
	}
	if err := stage.Profile.Validate(); err != nil {
		return fmt.Errorf("stage %s: %w", stage.ID, err)
	}

	if stage.Diagnostic && len(stage.Requires) > 0 {
		return fmt.Errorf("%w: diagnostic stage %s declares prerequisites", ErrInvalidDependency, stage.ID)
	}

	for _, dep := range stage.Requires {
		depStage, exists := r.stages[dep]
		if !exists {
			return fmt.Errorf("%w: stage %s requires unknown stage %s", ErrInvalidDependency, stage.ID, dep)
		}
		if depStage.Diagnostic {
			return fmt.Errorf("%w: stage %s requires diagnostic stage %s", ErrInvalidDependency, stage.ID, dep)
		}
	}

	// Проверяем на цикл по всему зарегистрированному множеству.
	r.stages[stage.ID] = stage
	if _, err := r.sortLocked(r.pipelineIDsLocked()); err != nil {
		delete(r.stages, stage.ID)
		return fmt.Errorf("%w: stage %s introduces a cycle", ErrInvalidDependency, stage.ID)
	}

	return nil
}

// Resolve возвращает stage по идентификатору.
func (r *Registry) Resolve(id string) (*domain.Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stage, exists := r.stages[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}
	return stage, nil
}

// TopologicalOrder возвращает запрошенные stage'и вместе со всеми их
// транзитивными prerequisites в порядке, согласованном с рёбрами
// зависимостей.
//
// Порядок детерминирован: между stage'ами без взаимных ограничений
// tie-break идёт по значению идентификатора. Это требование
// воспроизводимости запусков.
func (r *Registry) TopologicalOrder(ids []string) ([]*domain.Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Замыкаем запрошенное множество по prerequisites.
	include := make(map[string]bool)
	var visit func(id string) error
	visit = func(id string) error {
		if include[id] {
			return nil
		}
		stage, exists := r.stages[id]
		if !exists {
			return fmt.Errorf("%w: %s", ErrUnknownStage, id)
		}
		if stage.Diagnostic {
			return fmt.Errorf("%w: %s is diagnostic, not a pipeline stage", ErrUnknownStage, id)
		}
		include[id] = true
		for _, dep := range stage.Requires {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	closed := make([]string, 0, len(include))
	for id := range include {
		closed = append(closed, id)
	}
	return r.sortLocked(closed)
}

// CanonicalOrder возвращает все нумерованные stage'и реестра
// в детерминированном топологическом порядке.
func (r *Registry) CanonicalOrder() ([]*domain.Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortLocked(r.pipelineIDsLocked())
}

// Diagnostics возвращает диагностические stage'и, отсортированные по ID.
func (r *Registry) Diagnostics() []*domain.Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Stage, 0)
	for _, stage := range r.stages {
		if stage.Diagnostic {
			out = append(out, stage)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len возвращает количество зарегистрированных stage'ей (включая диагностику).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stages)
}

// pipelineIDsLocked возвращает идентификаторы нумерованных stage'ей.
// Вызывается под мьютексом.
func (r *Registry) pipelineIDsLocked() []string {
	ids := make([]string, 0, len(r.stages))
	for id, stage := range r.stages {
		if !stage.Diagnostic {
			ids = append(ids, id)
		}
	}
	return ids
}

// sortLocked выполняет топологическую сортировку (алгоритм Кана)
// над подмножеством идентификаторов. Вызывается под мьютексом.
//
// Ready-очередь держится отсортированной по идентификатору, поэтому
// результат повторяем от вызова к вызову.
func (r *Registry) sortLocked(ids []string) ([]*domain.Stage, error) {
	subset := make(map[string]bool, len(ids))
	for _, id := range ids {
		subset[id] = true
	}

	// Входящие рёбра считаем только внутри подмножества.
	inDegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		stage := r.stages[id]
		for _, dep := range stage.Requires {
			if !subset[dep] {
				continue
			}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	ready := make([]string, 0, len(ids))
	for _, id := range ids {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]*domain.Stage, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, r.stages[id])

		released := false
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(ids) {
		return nil, fmt.Errorf("%w: cyclic dependency", ErrInvalidDependency)
	}
	return order, nil
}
