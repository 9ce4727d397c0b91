package stages

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// eventsFile возвращает путь потока событий внутри директории артефакта.
func eventsFile(dir string) string {
	return filepath.Join(dir, "events.csv")
}

// row — одна строка делимитированного файла с доступом по имени колонки.
type row struct {
	header map[string]int
	fields []string
}

// get возвращает значение колонки или пустую строку.
func (r row) get(col string) string {
	idx, ok := r.header[col]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

// scanTable построчно читает делимитированный файл с заголовком.
//
// Проверяет ctx между строками, чтобы длинные файлы не блокировали
// graceful shutdown.
func scanTable(ctx context.Context, path string, comma rune, fn func(row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1

	headerFields, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	header := make(map[string]int, len(headerFields))
	for i, name := range headerFields {
		header[strings.TrimSpace(name)] = i
	}

	n := 0
	for {
		fields, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		if err := fn(row{header: header, fields: fields}); err != nil {
			return err
		}

		n++
		if n%10000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}
}

// tableWriter — CSV-писатель с заголовком.
type tableWriter struct {
	f *os.File
	w *csv.Writer
}

// newTableWriter создаёт CSV-файл и пишет заголовок.
// Родительская директория создаётся при необходимости.
func newTableWriter(path string, header []string) (*tableWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header of %s: %w", path, err)
	}
	return &tableWriter{f: f, w: w}, nil
}

func (t *tableWriter) write(fields ...string) error {
	return t.w.Write(fields)
}

func (t *tableWriter) close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.f.Close()
		return err
	}
	return t.f.Close()
}

// globData возвращает файлы с данными по шаблону, с ошибкой при пустом результате.
func globData(dir, pattern string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", pattern, dir)
	}
	return files, nil
}
