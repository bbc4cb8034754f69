package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события симуляции.
type EventType string

const (
	EventStep  EventType = "simulation.step"
	EventState EventType = "simulation.state"
	EventLog   EventType = "simulation.log"

	// EventClosed — сессия удалена, событий по ней больше не будет.
	EventClosed EventType = "simulation.closed"
)

// Event — событие сессии для подписчиков (websocket, очередь).
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Type         EventType       `json:"type"`
	SimulationID uuid.UUID       `json:"simulation_id"`
	State        SimulationState `json:"state,omitempty"`
	Step         *ExecutionStep  `json:"step,omitempty"`
	Log          *LogEntry       `json:"log,omitempty"`
	Progress     *Progress       `json:"progress,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewEvent создаёт событие с новым ID и текущим временем.
func NewEvent(t EventType, simulationID uuid.UUID) Event {
	return Event{
		ID:           uuid.New(),
		Type:         t,
		SimulationID: simulationID,
		Timestamp:    time.Now().UTC(),
	}
}
