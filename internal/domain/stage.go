package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// QueueClass — класс очереди кластера, в которую отправляется stage.
type QueueClass string

const (
	// QueueStandard — стандартная очередь.
	QueueStandard QueueClass = "standard"

	// QueueHighMem — очередь узлов с большим объёмом памяти.
	QueueHighMem QueueClass = "highmem"
)

// ResourceProfile — декларативный запрос вычислительных ресурсов для stage.
//
// Профиль — рекомендательные метаданные для внешнего планировщика кластера.
// Оркестратор сам ресурсы не ограничивает, кроме WallClock, который
// применяется как таймаут выполнения stage.
//
// Профиль неизменяем после привязки к stage.
type ResourceProfile struct {
	// Cores — количество CPU-слотов.
	Cores int `json:"cores"`

	// MemoryBytes — потолок памяти в байтах.
	MemoryBytes int64 `json:"memory_bytes"`

	// WallClock — лимит времени выполнения.
	WallClock time.Duration `json:"wall_clock"`

	// Queue — класс очереди (standard или highmem).
	Queue QueueClass `json:"queue"`
}

// Validate проверяет корректность профиля.
func (p ResourceProfile) Validate() error {
	if p.Cores <= 0 {
		return ErrInvalidProfile
	}
	if p.MemoryBytes <= 0 {
		return ErrInvalidProfile
	}
	if p.WallClock <= 0 {
		return ErrInvalidProfile
	}
	switch p.Queue {
	case QueueStandard, QueueHighMem:
		return nil
	default:
		return ErrInvalidProfile
	}
}

// MemoryGB возвращает потолок памяти в гигабайтах (для submission-скриптов).
func (p ResourceProfile) MemoryGB() float64 {
	return float64(p.MemoryBytes) / (1 << 30)
}

// StageContext — окружение выполнения одного stage.
//
// Содержит расположение датасета, scoped-логгер и идентификатор run.
// Сигнал отмены передаётся отдельно через context.Context.
type StageContext struct {
	// RunID — идентификатор текущего pipeline run.
	RunID uuid.UUID

	// Dataset — расположение общего датасета (корневой путь).
	Dataset string

	// Logger — логгер, привязанный к этому вызову stage.
	// Пишет в изолированный лог-файл run'а.
	Logger *slog.Logger
}

// Handler — функция, выполняющая содержательную работу stage.
//
// Handler обязан проверять ctx.Done() для graceful shutdown:
// при отмене или истечении wall-clock лимита контекст закрывается.
type Handler func(ctx context.Context, sc *StageContext) error

// Stage — один дискретный, независимо запускаемый шаг extraction-конвейера.
type Stage struct {
	// ID — уникальный идентификатор stage в реестре ("1", "2", "3a", ...).
	ID string

	// Description — человекочитаемое описание.
	Description string

	// Profile — декларативный запрос ресурсов.
	Profile ResourceProfile

	// Requires — идентификаторы stage'ей, которые должны успешно
	// завершиться до запуска этого. Может быть пустым.
	Requires []string

	// Handler — исполняемая логика stage.
	Handler Handler

	// Diagnostic — true для диагностических утилит вне графа зависимостей.
	// Диагностические stage не участвуют в каноническом порядке
	// и не смешиваются с нумерованными stage'ами конвейера.
	Diagnostic bool
}
