package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shaiso/flowgraph/internal/domain"
)

const (
	subscriberBuffer = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

// Hub раздаёт события сессий подписчикам websocket.
//
// Hub реализует orchestrator.Publisher. Publish не блокируется: медленный
// подписчик теряет события, когда его буфер заполнен. EventClosed завершает
// все подписки сессии.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[uuid.UUID]map[*subscription]struct{}
}

type subscription struct {
	events    chan domain.Event
	dropped   atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

// finish помечает подписку завершённой: сессии больше нет.
func (sub *subscription) finish() {
	sub.closeOnce.Do(func() { close(sub.done) })
}

// drain передаёт fn уже накопленные события, не дожидаясь новых.
func (sub *subscription) drain(fn func(domain.Event) error) error {
	for {
		select {
		case ev := <-sub.events:
			if err := fn(ev); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// NewHub создаёт Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[uuid.UUID]map[*subscription]struct{}),
	}
}

// Publish отправляет событие подписчикам его сессии.
func (h *Hub) Publish(_ context.Context, ev domain.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.SimulationID] {
		select {
		case sub.events <- ev:
		default:
			sub.dropped.Add(1)
		}
		if ev.Type == domain.EventClosed {
			sub.finish()
		}
	}
	return nil
}

// subscribe регистрирует подписчика. Возвращённая функция снимает подписку.
func (h *Hub) subscribe(simulationID uuid.UUID) (*subscription, func()) {
	sub := &subscription{
		events: make(chan domain.Event, subscriberBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[simulationID] == nil {
		h.subs[simulationID] = make(map[*subscription]struct{})
	}
	h.subs[simulationID][sub] = struct{}{}
	h.mu.Unlock()

	return sub, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[simulationID], sub)
		if len(h.subs[simulationID]) == 0 {
			delete(h.subs, simulationID)
		}
		if n := sub.dropped.Load(); n > 0 {
			h.logger.Warn("websocket subscriber dropped events",
				"simulation_id", simulationID,
				"dropped", n,
			)
		}
	}
}

// Subscribers возвращает число подписчиков сессии.
func (h *Hub) Subscribers(simulationID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[simulationID])
}

// SimulationEvents открывает websocket с событиями сессии.
// GET /api/v1/simulations/{id}/events
//
// Первым сообщением отправляется текущее состояние сессии. После удаления
// сессии поток получает simulation.closed и закрывается с CloseNormalClosure.
func (h *Handler) SimulationEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		Unavailable(w, "event streaming is disabled")
		return
	}

	session, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := h.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log(r).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub, unsubscribe := h.hub.subscribe(session.ID())
	defer unsubscribe()

	snap := session.Snapshot()
	initial := domain.NewEvent(domain.EventState, session.ID())
	initial.State = snap.State
	initial.Progress = &snap.Progress

	// Чтение нужно только для pong и обнаружения закрытия
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, initial); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev := <-sub.events:
			if err := writeEvent(conn, ev); err != nil {
				h.log(r).Debug("websocket write failed", "error", err)
				return
			}
			if ev.Type == domain.EventClosed {
				closeStream(conn, "simulation closed")
				return
			}
		case <-sub.done:
			// Закрытие могло обогнать события в буфере; дописываем их
			write := func(ev domain.Event) error { return writeEvent(conn, ev) }
			if err := sub.drain(write); err != nil {
				return
			}
			closeStream(conn, "simulation closed")
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeStream отправляет клиенту кадр закрытия.
func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func writeEvent(conn *websocket.Conn, ev domain.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
