package nodes

import (
	"context"
	"fmt"

	"github.com/shaiso/flowgraph/internal/domain"
)

// OutputHandler — конечный симулированный приёмник.
//
// Выход: {"target": "log", "format": "json", "data": <вход>}.
type OutputHandler struct{}

// NewOutputHandler создаёт OutputHandler.
func NewOutputHandler() *OutputHandler {
	return &OutputHandler{}
}

// Type возвращает тип узла.
func (h *OutputHandler) Type() domain.NodeType {
	return domain.NodeTypeOutput
}

// Execute упаковывает вход.
func (h *OutputHandler) Execute(_ context.Context, req *Request) (any, error) {
	cfg, ok := req.Config.(OutputConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMismatch, h.Type())
	}

	return map[string]any{
		"target": cfg.Target,
		"format": cfg.Format,
		"data":   req.Input,
	}, nil
}

// LoopHandler — однопроходная заглушка цикла. Обратные связи не моделируются.
//
// Выход: {"iteration": 1, "maxIterations": 10, "data": <вход>}.
type LoopHandler struct{}

// NewLoopHandler создаёт LoopHandler.
func NewLoopHandler() *LoopHandler {
	return &LoopHandler{}
}

// Type возвращает тип узла.
func (h *LoopHandler) Type() domain.NodeType {
	return domain.NodeTypeLoop
}

// Execute возвращает первую итерацию.
func (h *LoopHandler) Execute(_ context.Context, req *Request) (any, error) {
	cfg, ok := req.Config.(LoopConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMismatch, h.Type())
	}

	return map[string]any{
		"iteration":     1,
		"maxIterations": cfg.MaxIterations,
		"data":          req.Input,
	}, nil
}

// MergeHandler собирает выходы всех входящих источников.
//
// Выход: {"mergeType": "union", "inputs": [A, B]} в порядке связей.
type MergeHandler struct{}

// NewMergeHandler создаёт MergeHandler.
func NewMergeHandler() *MergeHandler {
	return &MergeHandler{}
}

// Type возвращает тип узла.
func (h *MergeHandler) Type() domain.NodeType {
	return domain.NodeTypeMerge
}

// Execute объединяет входы.
func (h *MergeHandler) Execute(_ context.Context, req *Request) (any, error) {
	cfg, ok := req.Config.(MergeConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMismatch, h.Type())
	}

	inputs := make([]any, len(req.Inputs))
	copy(inputs, req.Inputs)

	return map[string]any{
		"mergeType": cfg.MergeType,
		"inputs":    inputs,
	}, nil
}
