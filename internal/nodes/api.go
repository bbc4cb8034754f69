package nodes

import (
	"context"
	"fmt"

	"github.com/shaiso/flowgraph/internal/domain"
)

// SimulatedResponseBody — тело ответа, которое возвращает симулированный вызов.
const SimulatedResponseBody = "Simulated API response"

// APIHandler — симулированный HTTP-вызов. В сеть не обращается.
//
// Выход:
//
//	{
//	    "url": "https://api.example.com",
//	    "method": "GET",
//	    "response": {"status": 200, "data": "Simulated API response"}
//	}
type APIHandler struct{}

// NewAPIHandler создаёт APIHandler.
func NewAPIHandler() *APIHandler {
	return &APIHandler{}
}

// Type возвращает тип узла.
func (h *APIHandler) Type() domain.NodeType {
	return domain.NodeTypeAPI
}

// Execute возвращает симулированный ответ.
func (h *APIHandler) Execute(_ context.Context, req *Request) (any, error) {
	cfg, ok := req.Config.(APIConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMismatch, h.Type())
	}

	return map[string]any{
		"url":    cfg.URL,
		"method": cfg.Method,
		"response": map[string]any{
			"status": 200,
			"data":   SimulatedResponseBody,
		},
	}, nil
}
