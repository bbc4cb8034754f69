package nodes

import (
	"context"
	"fmt"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
)

// TransformHandler вычисляет data.script над входом.
//
// Без script вход передаётся дальше без изменений.
//
// Конфигурация:
//
//	{"script": "{ total = input.price * input.qty, sku = upper(input.sku) }"}
type TransformHandler struct {
	eval *engine.Evaluator
}

// NewTransformHandler создаёт TransformHandler.
func NewTransformHandler(eval *engine.Evaluator) *TransformHandler {
	return &TransformHandler{eval: eval}
}

// Type возвращает тип узла.
func (h *TransformHandler) Type() domain.NodeType {
	return domain.NodeTypeTransform
}

// Execute вычисляет script.
func (h *TransformHandler) Execute(_ context.Context, req *Request) (any, error) {
	cfg, ok := req.Config.(TransformConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMismatch, h.Type())
	}

	if cfg.Script == "" {
		return req.Input, nil
	}

	out, err := h.eval.Evaluate(cfg.Script, engine.Bindings{Input: req.Input, Data: req.Node.Data})
	if err != nil {
		return nil, fmt.Errorf("transform error: %w", err)
	}
	return out, nil
}
