// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с зависимостями (репозитории, оркестратор, каталог)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery, CORS)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - flow_handler.go       — /flows, /node-types, импорт и экспорт
//   - simulation_handler.go — сессии симуляции и история
//   - websocket.go          — Hub и поток событий /simulations/{id}/events
package api
