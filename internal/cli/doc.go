// Package cli реализует инструмент командной строки flowgraph.
//
// # Обзор
//
// Команды делятся на две группы.
//
// Локальные работают с файлом документа редактора (json или yaml) и не
// требуют сервера:
//   - simulate FILE — прогон в собственной сессии с журналом в терминале
//   - validate FILE — структура графа и поля узлов по каталогу
//   - convert FILE --to json|yaml
//
// Серверные ходят в flowgraph API через Client:
//   - flow: list, create FILE, show, delete, export
//   - sim: start, show, pause, resume, step, reset, history, watch
//   - events tail — чтение событий из RabbitMQ
//
// ## Client
//
// HTTP-клиент для API. Разбирает обёртки ответов (data, total, error)
// и превращает ошибки API в error. watch использует websocket.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные выводятся в stdout, сообщения и журнал симуляции в stderr,
// поэтому работает pipe: flowgraph flow list --json | jq .
//
// Каждая группа создаётся фабричной функцией (NewFlowCmd и т.д.),
// принимающей clientFn и outputFn: Client и Output создаются после
// разбора PersistentFlags.
package cli
