package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/flowgraph/internal/domain"
)

// Handler обрабатывает событие. Ошибка только логируется: события живые
// и повторно не доставляются.
type Handler func(ctx context.Context, ev domain.Event) error

// Subscriber читает события из ExchangeEvents через временную очередь.
//
// Очередь эксклюзивная и удаляется при отключении; после переподключения
// объявляется заново.
type Subscriber struct {
	conn       *Connection
	logger     *slog.Logger
	bindingKey string
	handler    Handler
}

// NewSubscriber создаёт Subscriber для шаблона bindingKey (см. BindingKey).
func NewSubscriber(conn *Connection, logger *slog.Logger, bindingKey string, handler Handler) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		conn:       conn,
		logger:     logger,
		bindingKey: bindingKey,
		handler:    handler,
	}
}

// Run читает события до отмены ctx.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		deliveries, err := s.subscribe()
		if err != nil {
			s.logger.Error("failed to subscribe", "binding_key", s.bindingKey, "error", err)
			if err := s.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		s.logger.Debug("subscribed", "binding_key", s.bindingKey)

		if err := s.process(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("deliveries channel closed, resubscribing", "binding_key", s.bindingKey)
			if err := s.waitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

func (s *Subscriber) waitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.conn.ReconnectNotify():
		return nil
	}
}

// subscribe объявляет обменник и временную очередь и начинает потребление.
func (s *Subscriber) subscribe() (<-chan amqp.Delivery, error) {
	ch := s.conn.Channel()
	if ch == nil {
		return nil, ErrNotConnected
	}

	if err := declareEventsExchange(ch); err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		"",    // имя генерирует брокер
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, s.bindingKey, string(ExchangeEvents), false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", q.Name, err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"",    // consumer tag
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

func (s *Subscriber) process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			ev, err := DecodeEvent(raw.Body)
			if err != nil {
				s.logger.Warn("skipping malformed event", "error", err)
				continue
			}
			if err := s.handler(ctx, ev); err != nil {
				s.logger.Error("event handler failed",
					"event_id", ev.ID,
					"type", ev.Type,
					"error", err,
				)
			}
		}
	}
}

// DecodeEvent разбирает тело сообщения.
func DecodeEvent(body []byte) (domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return domain.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.Type == "" {
		return domain.Event{}, fmt.Errorf("unmarshal event: missing type")
	}
	return ev, nil
}
