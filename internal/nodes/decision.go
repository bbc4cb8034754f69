package nodes

import (
	"context"
	"fmt"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
)

// DecisionHandler вычисляет data.condition и выбирает ветку.
//
// Выход: {"condition": true, "branch": "true"}.
// Без condition результат — ложная ветка.
type DecisionHandler struct {
	eval *engine.Evaluator
}

// NewDecisionHandler создаёт DecisionHandler.
func NewDecisionHandler(eval *engine.Evaluator) *DecisionHandler {
	return &DecisionHandler{eval: eval}
}

// Type возвращает тип узла.
func (h *DecisionHandler) Type() domain.NodeType {
	return domain.NodeTypeDecision
}

// Execute вычисляет условие.
func (h *DecisionHandler) Execute(_ context.Context, req *Request) (any, error) {
	cfg, ok := req.Config.(DecisionConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMismatch, h.Type())
	}

	result := false
	if cfg.Condition != "" {
		v, err := h.eval.Evaluate(cfg.Condition, engine.Bindings{Input: req.Input, Data: req.Node.Data})
		if err != nil {
			return nil, fmt.Errorf("decision error: %w", err)
		}
		result = engine.Truthy(v)
	}

	branch := "false"
	if result {
		branch = "true"
	}
	return map[string]any{
		"condition": result,
		"branch":    branch,
	}, nil
}
