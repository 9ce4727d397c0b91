package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// Log — журнал выполнений stage'ей.
//
// Единственная мутация — Append; записи неизменяемы после добавления,
// порядок вставки совпадает с хронологическим. Журнал — единственный
// durable источник истины для проверки зависимостей оркестратором.
type Log interface {
	// Append добавляет финализированную запись в журнал.
	Append(ctx context.Context, record *domain.RunRecord) error

	// History возвращает все записи по stage, самая свежая — последней.
	// Пустой stageID возвращает записи всех stage'ей.
	History(ctx context.Context, stageID string) ([]domain.RunRecord, error)

	// LastOutcome возвращает исход самой свежей записи stage'а
	// или ErrNoHistory, если записей нет.
	LastOutcome(ctx context.Context, stageID string) (domain.Outcome, error)
}

// FileLog — журнал в append-only JSONL файле: одна запись — одна строка.
//
// Формат человеко- и машиночитаемый, расположение настраивается.
type FileLog struct {
	mu   sync.Mutex
	path string
}

// NewFileLog создаёт журнал по указанному пути.
// Директория создаётся при необходимости, сам файл — при первой записи.
func NewFileLog(path string) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create runlog dir: %w", err)
	}
	return &FileLog{path: path}, nil
}

// Append дописывает запись одной JSON-строкой в конец файла.
func (l *FileLog) Append(_ context.Context, record *domain.RunRecord) error {
	if !record.Outcome.IsTerminal() {
		return fmt.Errorf("%w: stage %s", ErrNotFinalized, record.StageID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open runlog: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append run record: %w", err)
	}
	return f.Sync()
}

// History возвращает записи stage'а в порядке добавления.
func (l *FileLog) History(_ context.Context, stageID string) ([]domain.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open runlog: %w", err)
	}
	defer f.Close()

	var records []domain.RunRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.RunRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("corrupt runlog line: %w", err)
		}
		if stageID == "" || rec.StageID == stageID {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read runlog: %w", err)
	}
	return records, nil
}

// LastOutcome возвращает исход самой свежей записи stage'а.
func (l *FileLog) LastOutcome(ctx context.Context, stageID string) (domain.Outcome, error) {
	records, err := l.History(ctx, stageID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoHistory, stageID)
	}
	return records[len(records)-1].Outcome, nil
}
