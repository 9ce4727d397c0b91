// Package submit рендерит batch-submission скрипты из профилей ресурсов.
//
// Оркестратор ресурсы не enforc'ит — профиль stage'а транслируется
// в директивы внешнего планировщика кластера (SGE-style qsub).
package submit

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/domain"
)

// scriptTemplate — SGE-скрипт запуска одного stage.
//
// Память в SGE задаётся per-slot (h_vmem умножается на количество слотов).
const scriptTemplate = `#!/bin/bash
#$ -cwd
#$ -j y
#$ -o {{ .LogDir }}/
#$ -pe smp {{ .Cores }}
#$ -l h_vmem={{ .MemPerSlotGB }}G
#$ -l h_rt={{ .WallClock }}
{{- if .HighMem }}
#$ -l highmem
{{- end }}

{{ .Binary }} run {{ .StageID }} --config {{ .ConfigPath }}
`

var tmpl = template.Must(template.New("sge").Parse(scriptTemplate))

// Params — параметры рендеринга submission-скрипта.
type Params struct {
	// Binary — путь к исполняемому файлу конвейера.
	Binary string

	// ConfigPath — путь к config.yaml.
	ConfigPath string

	// LogDir — директория для stdout/stderr планировщика.
	LogDir string
}

type scriptData struct {
	StageID      string
	Cores        int
	MemPerSlotGB int
	WallClock    string
	HighMem      bool
	Binary       string
	ConfigPath   string
	LogDir       string
}

// Render пишет submission-скрипт для stage в w.
func Render(w io.Writer, stage *domain.Stage, p Params) error {
	if err := stage.Profile.Validate(); err != nil {
		return fmt.Errorf("stage %s: %w", stage.ID, err)
	}

	binary := p.Binary
	if binary == "" {
		binary = "./extract-pipeline"
	}
	configPath := p.ConfigPath
	if configPath == "" {
		configPath = "config.yaml"
	}
	logDir := p.LogDir
	if logDir == "" {
		logDir = "logs"
	}

	perSlot := int(stage.Profile.MemoryGB()) / stage.Profile.Cores
	if perSlot < 1 {
		perSlot = 1
	}

	data := scriptData{
		StageID:      stage.ID,
		Cores:        stage.Profile.Cores,
		MemPerSlotGB: perSlot,
		WallClock:    formatWallClock(stage.Profile.WallClock),
		HighMem:      stage.Profile.Queue == domain.QueueHighMem,
		Binary:       binary,
		ConfigPath:   configPath,
		LogDir:       logDir,
	}
	return tmpl.Execute(w, data)
}

// formatWallClock переводит duration в h_rt формат H:M:S.
func formatWallClock(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%d:%d", h, m, s)
}

// RenderString возвращает скрипт строкой.
func RenderString(stage *domain.Stage, p Params) (string, error) {
	var b strings.Builder
	if err := Render(&b, stage, p); err != nil {
		return "", err
	}
	return b.String(), nil
}
