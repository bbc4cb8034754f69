// Package orchestrator управляет сессиями симуляции.
//
// Движок (simulator.Engine) выполняет ровно один узел за вызов и не знает
// о времени. Session добавляет к нему:
//   - цикл шагов с паузой StepInterval между узлами
//   - состояния idle → running ⇄ paused → completed | error
//   - ручной шаг (Step) и сброс (Reset)
//   - журнал сообщений для пользователя
//   - события для Publisher (websocket, RabbitMQ)
//   - сохранение итога в HistoryStore
//
// Orchestrator хранит сессии по ID и закрывает их при Shutdown.
package orchestrator
