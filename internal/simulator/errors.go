package simulator

import (
	"errors"
	"fmt"
)

// Ошибки движка. Сбои отдельных узлов сюда не попадают: они пишутся в ExecutionStep.Error.
var (
	// ErrNotInitialized — ExecuteNext вызван до успешного Initialize.
	ErrNotInitialized = errors.New("engine is not initialized")

	// ErrExhausted — очередь пройдена, шагов больше нет.
	ErrExhausted = errors.New("execution queue exhausted")

	// ErrStepInFlight — предыдущий ExecuteNext ещё не завершился.
	ErrStepInFlight = errors.New("another step is in flight")

	// ErrStaleStep — пока шаг выполнялся, движок был сброшен; результат отброшен.
	ErrStaleStep = errors.New("step superseded by reset")
)

// PanicError — обработчик узла запаниковал. Записывается в шаг как обычный сбой узла.
type PanicError struct {
	NodeID string
	Value  any
}

// Error реализует интерфейс error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}
