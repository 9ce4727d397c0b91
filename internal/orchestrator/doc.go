// Package orchestrator — координатор выполнения extraction-конвейера.
//
// Orchestrator отвечает за:
//   - Разрешение селектора stage'ей (single / from / range) через реестр
//   - Проверку зависимостей по переданной истории запусков
//   - Строго последовательный запуск stage'ей через Runner
//   - Немедленную остановку после первого падения (AbortError)
//   - Персистенцию RunRecord'ов в журнал
package orchestrator
