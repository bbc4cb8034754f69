package nodes

import (
	"context"
	"errors"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Ошибки обработчиков.
var (
	// ErrHandlerNotFound — для типа узла нет обработчика в реестре.
	ErrHandlerNotFound = errors.New("node handler not found")

	// ErrNodeCancelled — выполнение узла прервано отменой контекста.
	ErrNodeCancelled = errors.New("node execution cancelled")

	// ErrConfigMismatch — обработчику передана конфигурация чужого типа.
	ErrConfigMismatch = errors.New("node config does not match handler")
)

// Handler — поведение одного типа узла.
//
// Обработчики не имеют состояния между вызовами: всё нужное приходит в Request.
// Ошибка означает сбой узла, который движок запишет в шаг и пойдёт дальше.
type Handler interface {
	// Type возвращает тип узла.
	Type() domain.NodeType

	// Execute вычисляет выход узла.
	// Обработчики, которые ждут, обязаны следить за ctx.Done().
	Execute(ctx context.Context, req *Request) (any, error)
}

// Request — входные данные для выполнения узла.
type Request struct {
	// Node — выполняемый узел.
	Node domain.Node

	// Config — типизированные настройки узла (результат DecodeConfig).
	Config Config

	// Input — выход первого выполненного источника или nil.
	Input any

	// Inputs — выходы всех выполненных источников в порядке связей.
	// Используется merge.
	Inputs []any

	// Now — время начала шага.
	Now time.Time
}

// NewRequest создаёт Request и декодирует настройки узла.
func NewRequest(node domain.Node, input any, inputs []any, now time.Time) *Request {
	if inputs == nil {
		inputs = []any{}
	}
	return &Request{
		Node:   node,
		Config: DecodeConfig(node),
		Input:  input,
		Inputs: inputs,
		Now:    now,
	}
}

// Passthrough возвращает вход без изменений.
// Используется для errorHandler, custom и неизвестных типов.
type Passthrough struct {
	nodeType domain.NodeType
}

// NewPassthrough создаёт обработчик-заглушку для типа t.
func NewPassthrough(t domain.NodeType) *Passthrough {
	return &Passthrough{nodeType: t}
}

// Type возвращает тип узла.
func (h *Passthrough) Type() domain.NodeType {
	return h.nodeType
}

// Execute возвращает req.Input.
func (h *Passthrough) Execute(_ context.Context, req *Request) (any, error) {
	return req.Input, nil
}
