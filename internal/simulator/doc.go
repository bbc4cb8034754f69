// Package simulator содержит пошаговый движок симуляции графа.
//
// Использование:
//
//	eng := simulator.New(graph, simulator.Options{Registry: reg})
//	if err := eng.Initialize(); err != nil {
//	    // engine.ErrNoRootNodes или engine.ErrCyclicGraph — показать пользователю
//	}
//	for !eng.IsComplete() {
//	    step, err := eng.ExecuteNext(ctx)
//	    ...
//	}
//
// Очередь — узлы, достижимые из корней, в топологическом порядке.
// Темп, паузы и отмену определяет вызывающий код (см. пакет orchestrator).
package simulator
