package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/config"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/events"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/orchestrator"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/registry"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/runlog"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/runner"
	"github.com/Ashvin-Gupta/cancer-extraction-pipeline/internal/stages"
)

// App — общие зависимости команд CLI.
type App struct {
	// ConfigPath — путь к config.yaml (флаг --config).
	ConfigPath string

	// Dataset — переопределение расположения датасета (флаг --dataset,
	// пустое значение берёт output_dir из конфигурации).
	Dataset string

	Logger *slog.Logger
}

// LoadConfig читает конфигурацию по пути из флага --config.
func (a *App) LoadConfig() (*config.Config, error) {
	return config.Load(a.ConfigPath)
}

// BuildRegistry создаёт реестр со всеми stage'ами конвейера.
func (a *App) BuildRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg := registry.New()
	if err := stages.Register(reg, cfg); err != nil {
		return nil, fmt.Errorf("register stages: %w", err)
	}
	return reg, nil
}

// OpenRunLog открывает настроенный backend журнала запусков.
// Возвращённый cleanup закрывает ресурсы backend'а.
func (a *App) OpenRunLog(ctx context.Context, cfg *config.Config) (runlog.Log, func(), error) {
	switch cfg.RunLog.Backend {
	case config.RunLogBackendPostgres:
		pool, err := runlog.NewPool(ctx, cfg.RunLog.DSN)
		if err != nil {
			return nil, nil, err
		}
		log := runlog.NewPGLog(pool)
		if err := log.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return log, pool.Close, nil
	default:
		log, err := runlog.NewFileLog(cfg.RunLog.Path)
		if err != nil {
			return nil, nil, err
		}
		return log, func() {}, nil
	}
}

// BuildOrchestrator собирает оркестратор со всеми зависимостями.
//
// Издатель событий опционален: недоступный RabbitMQ понижает режим
// до запуска без публикации, а не роняет команду.
func (a *App) BuildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, runlog.Log, func(), error) {
	reg, err := a.BuildRegistry(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	log, closeLog, err := a.OpenRunLog(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	dataset := a.Dataset
	if dataset == "" {
		dataset = cfg.Outputs.OutputDir
	}
	run := runner.New(runner.Config{
		LogRoot:     cfg.LogRoot,
		Dataset:     dataset,
		GracePeriod: cfg.GracePeriod,
		Logger:      a.Logger,
	})

	var publisher *events.Publisher
	var closeConn func()
	if url := cfg.EventsURL(); url != "" {
		conn, err := events.Dial(url, a.Logger)
		if err != nil {
			a.Logger.Warn("RabbitMQ not available, events disabled", "error", err)
		} else {
			publisher = events.NewPublisher(conn, a.Logger)
			closeConn = func() { conn.Close() }
		}
	}

	cleanup := func() {
		if closeConn != nil {
			closeConn()
		}
		closeLog()
	}

	orch := orchestrator.New(orchestrator.Config{
		Registry:  reg,
		Runner:    run,
		RunLog:    log,
		Publisher: publisher,
		Logger:    a.Logger,
	})
	return orch, log, cleanup, nil
}

// ServeMetrics поднимает /metrics listener, если адрес задан.
func (a *App) ServeMetrics(cfg *config.Config) {
	if cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			a.Logger.Warn("metrics listener failed", "addr", cfg.MetricsAddr, "error", err)
		}
	}()
}

// parseSelector разбирает селектор stage'ей из аргумента команды.
//
// Формы: "3a" — один stage; "from:3a" — stage и всё после него;
// "2:3b" — замкнутый интервал в каноническом порядке.
func parseSelector(s string) (orchestrator.Request, error) {
	if s == "" {
		return orchestrator.Request{}, fmt.Errorf("empty stage selector")
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) == 1 {
		return orchestrator.Request{Mode: orchestrator.ModeSingle, Stage: parts[0]}, nil
	}
	if parts[0] == "from" {
		if parts[1] == "" {
			return orchestrator.Request{}, fmt.Errorf("selector %q: missing stage after from:", s)
		}
		return orchestrator.Request{Mode: orchestrator.ModeFromStage, Stage: parts[1]}, nil
	}
	if parts[0] == "" || parts[1] == "" {
		return orchestrator.Request{}, fmt.Errorf("selector %q: both range bounds required", s)
	}
	return orchestrator.Request{Mode: orchestrator.ModeRange, Start: parts[0], End: parts[1]}, nil
}
