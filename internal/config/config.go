package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Ошибки конфигурации.
var (
	// ErrEmptyConfig — файл конфигурации пуст.
	ErrEmptyConfig = errors.New("config file is empty")

	// ErrMissingPath — обязательный путь не задан.
	ErrMissingPath = errors.New("required path is not set")

	// ErrUnknownBackend — неизвестный backend журнала запусков.
	ErrUnknownBackend = errors.New("unknown runlog backend")
)

// Backend'ы журнала запусков.
const (
	RunLogBackendFile     = "file"
	RunLogBackendPostgres = "postgres"
)

// StudyParams — параметры исследования.
type StudyParams struct {
	// CancerType — тип рака; подставляется в пути через {cancer_type}.
	CancerType string `yaml:"cancer_type"`

	// ControlsPerCase — количество контролей на один случай.
	ControlsPerCase int `yaml:"controls_per_case"`

	// YobWindow — окно года рождения при подборе контролей (лет).
	YobWindow int `yaml:"yob_window"`

	// StartDate — начало периода наблюдения (YYYY-MM-DD).
	StartDate string `yaml:"start_date"`
}

// Paths — входные данные (только чтение).
type Paths struct {
	RawPatientDataDir  string `yaml:"raw_patient_data_dir"`
	RawCancerData      string `yaml:"raw_cancer_data"`
	MasterSubjectLog   string `yaml:"master_subject_log"`
	ObservationDataDir string `yaml:"observation_data_dir"`
	MedicalDictionary  string `yaml:"medical_dictionary"`
	CleanedCodelists   string `yaml:"cleaned_codelists"`
	CleaningRulesFinal string `yaml:"cleaning_rules_final"`
}

// Outputs — производные артефакты конвейера.
type Outputs struct {
	OutputDir              string `yaml:"output_dir"`
	CohortFile             string `yaml:"cohort_file"`
	SubjectInformationFile string `yaml:"subject_information_file"`
	IntermediateUnsorted   string `yaml:"intermediate_unsorted_dir"`
	IntermediateSorted     string `yaml:"intermediate_sorted_dir"`
	EventStreamDir         string `yaml:"event_stream_dir"`
	FinalCleanedDir        string `yaml:"final_cleaned_dir"`
	CleaningRulesTemplate  string `yaml:"cleaning_rules_template"`
}

// RunLogConfig — настройки журнала запусков.
type RunLogConfig struct {
	// Backend — file (default) или postgres.
	Backend string `yaml:"backend"`

	// Path — путь JSONL-файла (backend: file).
	Path string `yaml:"path"`

	// DSN — строка подключения (backend: postgres).
	// Переопределяется переменной окружения RUNLOG_DB_URL.
	DSN string `yaml:"dsn"`
}

// EventsConfig — настройки публикации событий.
type EventsConfig struct {
	// URL — адрес RabbitMQ. Пустой — события не публикуются.
	// Переопределяется переменной окружения RABBITMQ_URL.
	URL string `yaml:"url"`
}

// Config — конфигурация конвейера.
//
// Явная замена ambient-состояния shell-обёрток (рабочая директория,
// активация окружения): всё, что нужно оркестратору, передаётся
// при конструировании.
type Config struct {
	StudyParams StudyParams  `yaml:"study_params"`
	Paths       Paths        `yaml:"paths"`
	Outputs     Outputs      `yaml:"outputs"`
	RunLog      RunLogConfig `yaml:"runlog"`
	Events      EventsConfig `yaml:"events"`

	// LogRoot — корень директорий с логами run'ов.
	LogRoot string `yaml:"log_root"`

	// MetricsAddr — адрес /metrics listener'а. Пустой — метрики не экспортируются.
	MetricsAddr string `yaml:"metrics_addr"`

	// GracePeriod — окно graceful shutdown после отмены stage'а.
	GracePeriod time.Duration `yaml:"grace_period"`
}

// Load читает и валидирует конфигурацию из YAML-файла.
//
// Плейсхолдер {cancer_type} в путях заменяется значением
// study_params.cancer_type, как в исходных config.yaml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyConfig, path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.interpolate()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RunLog.Backend == "" {
		c.RunLog.Backend = RunLogBackendFile
	}
	if c.RunLog.Backend == RunLogBackendFile && c.RunLog.Path == "" {
		c.RunLog.Path = "runlog.jsonl"
	}
	if c.LogRoot == "" {
		c.LogRoot = "logs"
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 10 * time.Second
	}
}

// interpolate подставляет {cancer_type} во все пути.
func (c *Config) interpolate() {
	sub := func(s *string) {
		*s = strings.ReplaceAll(*s, "{cancer_type}", c.StudyParams.CancerType)
	}
	for _, s := range []*string{
		&c.Paths.RawPatientDataDir, &c.Paths.RawCancerData, &c.Paths.MasterSubjectLog,
		&c.Paths.ObservationDataDir, &c.Paths.MedicalDictionary, &c.Paths.CleanedCodelists,
		&c.Paths.CleaningRulesFinal,
		&c.Outputs.OutputDir, &c.Outputs.CohortFile, &c.Outputs.SubjectInformationFile,
		&c.Outputs.IntermediateUnsorted, &c.Outputs.IntermediateSorted,
		&c.Outputs.EventStreamDir, &c.Outputs.FinalCleanedDir, &c.Outputs.CleaningRulesTemplate,
		&c.RunLog.Path, &c.LogRoot,
	} {
		sub(s)
	}
}

// Validate проверяет согласованность конфигурации.
func (c *Config) Validate() error {
	switch c.RunLog.Backend {
	case RunLogBackendFile:
		if c.RunLog.Path == "" {
			return fmt.Errorf("%w: runlog.path", ErrMissingPath)
		}
	case RunLogBackendPostgres:
		if c.RunLog.DSN == "" && os.Getenv("RUNLOG_DB_URL") == "" {
			return fmt.Errorf("%w: runlog.dsn", ErrMissingPath)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownBackend, c.RunLog.Backend)
	}

	if c.Outputs.OutputDir == "" {
		return fmt.Errorf("%w: outputs.output_dir", ErrMissingPath)
	}
	return nil
}

// EventsURL возвращает адрес брокера с учётом переменной окружения.
func (c *Config) EventsURL() string {
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		return url
	}
	return c.Events.URL
}
