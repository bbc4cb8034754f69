package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// DefaultMaxDelay — верхняя граница ожидания delay в симуляции.
const DefaultMaxDelay = time.Second

// DelayHandler ждёт min(duration, maxDelay) и передаёт вход дальше.
//
// Единственный обработчик, который приостанавливает выполнение.
// Ожидание прерывается отменой контекста.
//
// Конфигурация:
//
//	{"duration": 5}            // секунды
//	{"duration_seconds": 0.2}  // то же, имеет приоритет
type DelayHandler struct {
	maxDelay time.Duration
}

// NewDelayHandler создаёт DelayHandler. maxDelay <= 0 означает DefaultMaxDelay.
func NewDelayHandler(maxDelay time.Duration) *DelayHandler {
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return &DelayHandler{maxDelay: maxDelay}
}

// Type возвращает тип узла.
func (h *DelayHandler) Type() domain.NodeType {
	return domain.NodeTypeDelay
}

// Wait возвращает фактическую длительность ожидания для конфигурации.
func (h *DelayHandler) Wait(cfg DelayConfig) time.Duration {
	return min(cfg.Duration, h.maxDelay)
}

// Execute выполняет задержку.
func (h *DelayHandler) Execute(ctx context.Context, req *Request) (any, error) {
	cfg, ok := req.Config.(DelayConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMismatch, h.Type())
	}

	timer := time.NewTimer(h.Wait(cfg))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNodeCancelled, ctx.Err())
	case <-timer.C:
		return req.Input, nil
	}
}
