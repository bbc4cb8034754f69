package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/scheduler"
)

// TriggerHandler — стартовый узел по таймеру.
//
// Выход:
//
//	{
//	    "timestamp": 1767225600000,   // миллисекунды Unix на момент шага
//	    "interval": 1000,
//	    "payload": {},
//	    "schedule": "*/5 * * * *",    // только если задан schedule
//	    "nextRun": "2026-01-01T00:05:00Z"
//	}
type TriggerHandler struct{}

// NewTriggerHandler создаёт TriggerHandler.
func NewTriggerHandler() *TriggerHandler {
	return &TriggerHandler{}
}

// Type возвращает тип узла.
func (h *TriggerHandler) Type() domain.NodeType {
	return domain.NodeTypeTrigger
}

// Execute формирует событие срабатывания.
func (h *TriggerHandler) Execute(_ context.Context, req *Request) (any, error) {
	cfg, ok := req.Config.(TriggerConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigMismatch, h.Type())
	}

	out := map[string]any{
		"timestamp": req.Now.UnixMilli(),
		"interval":  cfg.Interval,
		"payload":   cfg.Payload,
	}

	if cfg.Schedule != "" {
		next, err := scheduler.NextRun(cfg.Schedule, cfg.Timezone, req.Now)
		if err != nil {
			return nil, fmt.Errorf("trigger error: %w", err)
		}
		out["schedule"] = cfg.Schedule
		out["nextRun"] = next.Format(time.RFC3339)
	}

	return out, nil
}
