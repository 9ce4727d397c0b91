package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
study_params:
  cancer_type: pancreatic
  controls_per_case: 5
  yob_window: 5
  start_date: "2005-01-01"
paths:
  raw_patient_data_dir: /data/raw/patients
  observation_data_dir: /data/raw/observations
outputs:
  output_dir: /data/derived/{cancer_type}
  cohort_file: /data/derived/{cancer_type}/cohort.csv
runlog:
  backend: file
  path: /data/derived/{cancer_type}/runlog.jsonl
`

func TestLoad_Interpolation(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Outputs.OutputDir != "/data/derived/pancreatic" {
		t.Errorf("cancer_type not interpolated: %s", cfg.Outputs.OutputDir)
	}
	if cfg.RunLog.Path != "/data/derived/pancreatic/runlog.jsonl" {
		t.Errorf("cancer_type not interpolated in runlog path: %s", cfg.RunLog.Path)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
outputs:
  output_dir: /data/derived
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.RunLog.Backend != RunLogBackendFile {
		t.Errorf("expected file backend default, got %s", cfg.RunLog.Backend)
	}
	if cfg.RunLog.Path == "" {
		t.Error("expected default runlog path")
	}
	if cfg.GracePeriod <= 0 {
		t.Error("expected default grace period")
	}
	if cfg.LogRoot == "" {
		t.Error("expected default log root")
	}
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(writeConfig(t, ""))
	if !errors.Is(err, ErrEmptyConfig) {
		t.Fatalf("expected ErrEmptyConfig, got %v", err)
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, `
outputs:
  output_dir: /data/derived
runlog:
  backend: dynamodb
`))
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("RUNLOG_DB_URL", "")
	_, err := Load(writeConfig(t, `
outputs:
  output_dir: /data/derived
runlog:
  backend: postgres
`))
	if !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
}

func TestLoad_MissingOutputDir(t *testing.T) {
	_, err := Load(writeConfig(t, `
study_params:
  cancer_type: colorectal
`))
	if !errors.Is(err, ErrMissingPath) {
		t.Fatalf("expected ErrMissingPath, got %v", err)
	}
}
