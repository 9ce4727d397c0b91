package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики конвейера.
//
// Экспортируются на /metrics, пока выполняется run (см. cmd).
var (
	// StagesTotal — количество выполнений stage'ей по исходам.
	StagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "extraction",
		Subsystem: "pipeline",
		Name:      "stages_total",
		Help:      "Number of stage executions by stage and outcome.",
	}, []string{"stage_id", "outcome"})

	// StageDuration — длительность выполнения stage'ей.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "extraction",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of stage executions.",
		// Stage'и идут от секунд (профилирование) до часов (extraction).
		Buckets: []float64{1, 10, 60, 300, 900, 3600, 7200, 14400, 43200},
	}, []string{"stage_id"})

	// RunsTotal — количество запусков оркестратора по результату.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "extraction",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Number of orchestrator invocations by result.",
	}, []string{"result"})
)

// ObserveStage фиксирует исход и длительность выполнения stage.
func ObserveStage(stageID, outcome string, seconds float64) {
	StagesTotal.WithLabelValues(stageID, outcome).Inc()
	StageDuration.WithLabelValues(stageID).Observe(seconds)
}
