// Package telemetry обеспечивает наблюдаемость конвейера.
//
// Включает:
//   - logging.go — structured logging через slog, изолированные
//     лог-файлы stage'ей по директориям run'ов
//   - metrics.go — Prometheus метрики (исходы и длительности stage'ей)
package telemetry
