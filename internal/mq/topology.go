package mq

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/flowgraph/internal/domain"
)

// Exchange — имя обменника.
type Exchange string

// ExchangeEvents — topic-обменник событий симуляций.
const ExchangeEvents Exchange = "flowgraph.events"

// RoutingKey возвращает ключ события: "<тип>.<simulation_id>",
// например "simulation.step.6f1c...".
func RoutingKey(ev domain.Event) string {
	return string(ev.Type) + "." + ev.SimulationID.String()
}

// BindingKey возвращает шаблон подписки.
//
// Пустой simulationID означает все сессии, пустые types — все типы событий.
func BindingKey(simulationID uuid.UUID, eventType domain.EventType) string {
	typePart := "simulation.*"
	if eventType != "" {
		typePart = string(eventType)
	}

	idPart := "*"
	if simulationID != uuid.Nil {
		idPart = simulationID.String()
	}
	return typePart + "." + idPart
}

// SetupTopology объявляет обменник событий.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return declareEventsExchange(ch)
	})
}

func declareEventsExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeEvents), // name
		"topic",                // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	var b strings.Builder
	b.WriteString("flowgraph RabbitMQ topology:\n")
	b.WriteString("  " + string(ExchangeEvents) + " (topic)\n")
	for _, t := range []domain.EventType{domain.EventStep, domain.EventState, domain.EventLog, domain.EventClosed} {
		b.WriteString("    " + string(t) + ".<simulation_id>\n")
	}
	return b.String()
}
