package engine

import (
	"errors"
	"fmt"
)

// Ошибки структуры графа. Тексты ErrNoRootNodes и ErrCyclicGraph показываются пользователю как есть.
var (
	// ErrNoRootNodes — в графе нет узла без входящих связей.
	ErrNoRootNodes = errors.New("no root nodes found")

	// ErrCyclicGraph — обнаружен цикл.
	ErrCyclicGraph = errors.New("cycle detected in flow graph")

	// ErrEmptyGraph — граф не содержит узлов.
	ErrEmptyGraph = errors.New("flow graph has no nodes")

	// ErrEmptyNodeID — узел без ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNodeType — тип узла отсутствует в каталоге.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrUnknownEndpoint — связь ссылается на несуществующий узел.
	ErrUnknownEndpoint = errors.New("edge references unknown node")

	// ErrSelfLoop — связь из узла в него же.
	ErrSelfLoop = errors.New("edge connects node to itself")
)

// ErrEvaluation — базовая ошибка вычисления выражения.
var ErrEvaluation = errors.New("evaluation failed")

// ValidationError — ошибка валидации графа с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, если ошибка относится к узлу
	EdgeID  string // ID связи, если ошибка относится к связи
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	switch {
	case e.NodeID != "":
		return "node " + e.NodeID + ": " + e.Message
	case e.EdgeID != "":
		return "edge " + e.EdgeID + ": " + e.Message
	default:
		return e.Message
	}
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт ошибку валидации узла.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// EvaluationError — единая ошибка вычисления выражения.
// Cause хранит исходное сообщение парсера или функции.
type EvaluationError struct {
	Expr  string
	Cause string
}

// Error реализует интерфейс error.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrEvaluation, e.Cause)
}

// Unwrap возвращает ErrEvaluation.
func (e *EvaluationError) Unwrap() error {
	return ErrEvaluation
}
