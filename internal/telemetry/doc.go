// Package telemetry — логи и метрики flowgraph.
//
// logging.go настраивает slog по LOG_LEVEL и LOG_FORMAT и переносит логгер
// запроса через context. metrics.go объявляет счётчики Prometheus для шагов,
// сессий, публикации событий и HTTP; сервер отдаёт их на /metrics.
package telemetry
