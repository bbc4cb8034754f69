// Package nodes содержит поведение типов узлов графа.
//
// # Обзор
//
// Для каждого типа узла есть Handler:
//
//	type Handler interface {
//	    Type() domain.NodeType
//	    Execute(ctx context.Context, req *Request) (any, error)
//	}
//
// Request содержит узел, типизированные настройки (Config), вход и время шага.
// Обработчики не хранят состояния и не обращаются к сети: api и output лишь
// симулируют действие.
//
// # Registry
//
// Registry — таблица обработчиков, которую движок получает при создании:
//
//	reg := nodes.DefaultRegistry(nodes.Options{MaxDelay: time.Second})
//	h := reg.Resolve(node.Type) // неизвестный тип → Passthrough
//
// # Catalog
//
// Catalog описывает типы для редактора: поля, значения по умолчанию, точки
// подключения. Validator проверяет data узлов по каталогу на границе ввода
// (API, CLI). Движок каталог не использует и работает с любыми data:
// DecodeConfig подставляет значения по умолчанию.
//
// # Типы узлов
//
//	trigger      {timestamp, interval, payload[, schedule, nextRun]}
//	api          {url, method, response: {status: 200, data: "Simulated API response"}}
//	transform    результат script; без script — вход
//	decision     {condition, branch}
//	output       {target, format, data}
//	delay        вход после min(duration, MaxDelay)
//	loop         {iteration: 1, maxIterations, data}
//	merge        {mergeType, inputs}
//	errorHandler вход
//	custom       вход
package nodes
