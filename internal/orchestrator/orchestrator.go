package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/nodes"
	"github.com/shaiso/flowgraph/internal/simulator"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

// Default configuration values.
const (
	DefaultStepInterval = 500 * time.Millisecond
	publishTimeout      = 2 * time.Second
	historyTimeout      = 5 * time.Second
)

// Publisher доставляет события сессий подписчикам.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// HistoryStore сохраняет итоги прогонов.
type HistoryStore interface {
	Create(ctx context.Context, rec *domain.SimulationRecord) error
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Registry обработчиков; по умолчанию nodes.DefaultRegistry
	Registry *nodes.Registry

	// Evaluator и MaxDelay используются, если Registry не задан
	Evaluator *engine.Evaluator
	MaxDelay  time.Duration

	// StepInterval — пауза между шагами цикла (default: 500ms)
	StepInterval time.Duration

	// Publishers — именованные получатели событий (имя идёт в метрики)
	Publishers map[string]Publisher

	// History — хранилище итогов; nil отключает сохранение
	History HistoryStore

	Logger *slog.Logger
	Clock  func() time.Time
}

// dependencies — общие для всех сессий зависимости.
type dependencies struct {
	registry   *nodes.Registry
	publishers map[string]Publisher
	history    HistoryStore
	logger     *slog.Logger
	clock      func() time.Time
}

func (d *dependencies) publish(ctx context.Context, ev domain.Event) {
	if len(d.publishers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for name, p := range d.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			telemetry.EventsPublished.WithLabelValues(name, "error").Inc()
			d.logger.Warn("failed to publish event",
				"publisher", name,
				"event_type", ev.Type,
				"simulation_id", ev.SimulationID,
				"error", err,
			)
			continue
		}
		telemetry.EventsPublished.WithLabelValues(name, "ok").Inc()
	}
}

// Orchestrator хранит сессии симуляции.
//
// Каждая сессия получает свой движок; сессии независимы и
// выполняются параллельно.
type Orchestrator struct {
	deps     *dependencies
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
	stopped  bool
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	interval := cfg.StepInterval
	if interval <= 0 {
		interval = DefaultStepInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	registry := cfg.Registry
	if registry == nil {
		registry = nodes.DefaultRegistry(nodes.Options{
			Evaluator: cfg.Evaluator,
			MaxDelay:  cfg.MaxDelay,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		deps: &dependencies{
			registry:   registry,
			publishers: cfg.Publishers,
			history:    cfg.History,
			logger:     logger,
			clock:      clock,
		},
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create создаёт сессию для графа в состоянии idle.
func (o *Orchestrator) Create(flowID uuid.UUID, g domain.Graph) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return nil, ErrOrchestratorStopped
	}

	id := uuid.New()
	logger := telemetry.WithSimulationID(o.deps.logger, id.String())
	if flowID != uuid.Nil {
		logger = telemetry.WithFlowID(logger, flowID.String())
	}

	s := &Session{
		id:     id,
		flowID: flowID,
		engine: simulator.New(g, simulator.Options{
			Registry: o.deps.registry,
			Clock:    o.deps.clock,
		}),
		interval:  o.interval,
		deps:      o.deps,
		logger:    logger,
		baseCtx:   o.ctx,
		createdAt: o.deps.clock(),
		state:     domain.SimulationIdle,
	}

	o.sessions[id] = s
	telemetry.ActiveSessions.Inc()
	logger.Info("simulation session created", "nodes", len(g.Nodes), "edges", len(g.Edges))

	return s, nil
}

// Get возвращает сессию по ID.
func (o *Orchestrator) Get(id uuid.UUID) (*Session, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s, ok := o.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove закрывает и удаляет сессию.
func (o *Orchestrator) Remove(id uuid.UUID) error {
	o.mu.Lock()
	s, ok := o.sessions[id]
	if ok {
		delete(o.sessions, id)
	}
	o.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	telemetry.ActiveSessions.Dec()
	s.logger.Info("simulation session removed")
	return nil
}

// List возвращает снимки всех сессий, новые первыми.
func (o *Orchestrator) List() []Snapshot {
	o.mu.RLock()
	sessions := make([]*Session, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	o.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps
}

// Count возвращает количество сессий.
func (o *Orchestrator) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sessions)
}

// Shutdown останавливает все циклы и закрывает сессии.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	sessions := o.sessions
	o.sessions = make(map[uuid.UUID]*Session)
	o.mu.Unlock()

	o.deps.logger.Info("stopping orchestrator...", "sessions", len(sessions))

	o.cancel()
	for _, s := range sessions {
		s.Close()
		telemetry.ActiveSessions.Dec()
	}

	o.deps.logger.Info("orchestrator stopped")
}
