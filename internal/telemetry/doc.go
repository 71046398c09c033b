// Package telemetry обеспечивает наблюдаемость gateway.
//
// Включает:
//   - logging.go   — structured logging через slog
//   - requestid.go — X-Request-Id в контексте запроса
//   - metrics.go   — Prometheus метрики (HTTP и downstream-вызовы)
//
// Логгер и метрики создаются один раз в main и передаются
// в компоненты через Config.
package telemetry
