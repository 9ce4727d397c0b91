package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LogLevel определяет уровень логирования из переменной окружения.
// Возможные значения: DEBUG, INFO, WARN, ERROR
// По умолчанию: INFO
func LogLevel() slog.Level {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger инициализирует глобальный логгер.
//
// Формат вывода определяется переменной LOG_FORMAT:
//   - "json" (по умолчанию) — JSON формат для production
//   - "text" — человекочитаемый формат для разработки
func SetupLogger() *slog.Logger {
	logger := slog.New(newHandler(os.Stdout))
	slog.SetDefault(logger)
	return logger
}

func newHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: LogLevel() == slog.LevelDebug,
	}

	if os.Getenv("LOG_FORMAT") == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// StageSink — изолированный лог-файл одного вызова stage.
//
// Файлы раскладываются по директориям run'ов:
//
//	<logRoot>/<runID>/<stageID>.log
//
// Логи упавших stage'ей остаются на месте для post-mortem анализа.
type StageSink struct {
	// Logger — slog-логгер, пишущий в файл stage'а.
	Logger *slog.Logger

	file *os.File
}

// NewStageSink открывает лог-файл для вызова stage внутри run.
func NewStageSink(logRoot, runID, stageID string) (*StageSink, error) {
	dir := filepath.Join(logRoot, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}

	path := filepath.Join(dir, stageID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open stage log %s: %w", path, err)
	}

	logger := slog.New(newHandler(f)).With("run_id", runID, "stage_id", stageID)
	return &StageSink{Logger: logger, file: f}, nil
}

// Close закрывает лог-файл stage'а.
func (s *StageSink) Close() error {
	return s.file.Close()
}

// Ключи контекста для передачи данных в логгер.
type ctxKey string

const (
	// CtxLogger — ключ для логгера в контексте.
	CtxLogger ctxKey = "logger"
)

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithRunID возвращает логгер с добавленным run_id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithStageID возвращает логгер с добавленным stage_id.
func WithStageID(logger *slog.Logger, stageID string) *slog.Logger {
	return logger.With("stage_id", stageID)
}
