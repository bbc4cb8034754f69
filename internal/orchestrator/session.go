package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/simulator"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

// maxLogEntries — сколько строк журнала хранит сессия.
const maxLogEntries = 1000

// Session — одна симуляция графа с собственным циклом шагов.
//
// Session владеет темпом: запускает ExecuteNext движка раз в interval,
// останавливает цикл на паузе и сбросе. Все методы потокобезопасны.
//
// События и записи истории копятся в outbox под s.mu и доставляются
// после его освобождения, в порядке постановки.
type Session struct {
	id        uuid.UUID
	flowID    uuid.UUID
	engine    *simulator.Engine
	interval  time.Duration
	deps      *dependencies
	logger    *slog.Logger
	baseCtx   context.Context
	createdAt time.Time

	mu           sync.Mutex
	state        domain.SimulationState
	initialized  bool
	closed       bool
	activeNodeID string
	lastError    string
	logs         []domain.LogEntry
	startedAt    time.Time
	finishedAt   time.Time
	cancelLoop   context.CancelFunc
	loopDone     chan struct{}

	// finished закрывается, когда прогон завершён, сброшен или сессия закрыта.
	finished         chan struct{}
	finishedSignaled bool

	outbox   []outboxItem
	flushing bool
}

// outboxItem — одно отложенное действие: событие, запись истории или
// закрытие канала finished.
type outboxItem struct {
	event  *domain.Event
	record *domain.SimulationRecord
	done   chan struct{}
}

// Snapshot — состояние сессии на момент вызова.
type Snapshot struct {
	ID           uuid.UUID              `json:"id"`
	FlowID       uuid.UUID              `json:"flow_id"`
	State        domain.SimulationState `json:"state"`
	ActiveNodeID string                 `json:"active_node_id,omitempty"`
	Progress     domain.Progress        `json:"progress"`
	Steps        []domain.ExecutionStep `json:"steps"`
	Logs         []domain.LogEntry      `json:"logs"`
	Error        string                 `json:"error,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	FinishedAt   *time.Time             `json:"finished_at,omitempty"`
}

// ID возвращает ID сессии.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// FlowID возвращает ID flow (uuid.Nil для несохранённого графа).
func (s *Session) FlowID() uuid.UUID {
	return s.flowID
}

// State возвращает текущее состояние.
func (s *Session) State() domain.SimulationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start инициализирует движок заново и запускает цикл шагов.
//
// Ошибка инициализации переводит сессию в error и возвращается как есть
// (engine.ErrNoRootNodes, engine.ErrCyclicGraph или engine.ErrDuplicateNodeID).
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == domain.SimulationRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: already running", ErrInvalidState)
	}
	s.mu.Unlock()

	// Пауза могла оставить цикл; дожидаемся его остановки
	s.stopLoop()

	s.mu.Lock()
	s.beginRunLocked()
	if err := s.initializeLocked(); err != nil {
		s.unlockAndFlush()
		return err
	}

	s.state = domain.SimulationRunning
	s.appendLogLocked(domain.LogInfo, "Simulation started", "")
	telemetry.SimulationsStarted.Inc()
	s.publishStateLocked()

	s.startLoopLocked()
	s.unlockAndFlush()
	return nil
}

// beginRunLocked открывает новый прогон: свежий канал finished и отметка старта.
func (s *Session) beginRunLocked() {
	s.armFinishedLocked()
	s.startedAt = s.deps.clock()
	s.finishedAt = time.Time{}
}

// initializeLocked вызывает Initialize движка и обрабатывает отказ.
func (s *Session) initializeLocked() error {
	s.activeNodeID = ""
	s.lastError = ""

	if err := s.engine.Initialize(); err != nil {
		s.initialized = false
		s.state = domain.SimulationError
		s.lastError = err.Error()
		s.finishedAt = s.deps.clock()
		s.appendLogLocked(domain.LogError, err.Error(), "")
		telemetry.InitFailures.WithLabelValues(initFailureReason(err)).Inc()
		telemetry.SimulationsFinished.WithLabelValues(string(domain.SimulationError)).Inc()
		s.logger.Warn("simulation initialization failed", "error", err)
		s.saveHistoryLocked()
		s.publishStateLocked()
		s.signalFinishedLocked()
		return err
	}

	s.initialized = true
	return nil
}

// initFailureReason — метка reason для InitFailures.
func initFailureReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrNoRootNodes):
		return "no_root_nodes"
	case errors.Is(err, engine.ErrCyclicGraph):
		return "cyclic_graph"
	case errors.Is(err, engine.ErrDuplicateNodeID):
		return "duplicate_node_id"
	}
	return "other"
}

// Pause останавливает цикл. Ожидающий delay прерывается и выполнится снова после Resume.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != domain.SimulationRunning {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot pause %s simulation", ErrInvalidState, state)
	}
	s.state = domain.SimulationPaused
	s.mu.Unlock()

	s.stopLoop()

	s.mu.Lock()
	s.appendLogLocked(domain.LogInfo, "Simulation paused", "")
	s.publishStateLocked()
	s.unlockAndFlush()
	return nil
}

// Resume продолжает цикл после паузы.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != domain.SimulationPaused || !s.initialized {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot resume %s simulation", ErrInvalidState, state)
	}

	s.state = domain.SimulationRunning
	s.appendLogLocked(domain.LogInfo, "Simulation resumed", "")
	s.publishStateLocked()
	s.startLoopLocked()
	s.unlockAndFlush()
	return nil
}

// Step выполняет один узел вручную.
//
// Если движок ещё не инициализирован, инициализирует его. Первый шаг после
// создания или Reset открывает новый прогон. После шага сессия остаётся на
// паузе или переходит в completed. Во время цикла вызов запрещён.
func (s *Session) Step(ctx context.Context) (*domain.ExecutionStep, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.state == domain.SimulationRunning {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: pause the simulation before stepping", ErrInvalidState)
	}
	if !s.initialized || s.startedAt.IsZero() {
		s.beginRunLocked()
		if !s.initialized {
			if err := s.initializeLocked(); err != nil {
				s.unlockAndFlush()
				return nil, err
			}
		}
		telemetry.SimulationsStarted.Inc()
	}
	if s.engine.IsComplete() {
		s.completeLocked()
		s.unlockAndFlush()
		return nil, simulator.ErrExhausted
	}
	if s.state != domain.SimulationPaused {
		s.state = domain.SimulationPaused
		s.publishStateLocked()
	}
	s.unlockAndFlush()

	step, err := s.engine.ExecuteNext(ctx)
	if err != nil {
		if errors.Is(err, simulator.ErrExhausted) {
			s.mu.Lock()
			s.completeLocked()
			s.unlockAndFlush()
		}
		return nil, err
	}

	s.mu.Lock()
	s.recordStepLocked(step)
	if s.engine.IsComplete() {
		s.completeLocked()
	}
	s.unlockAndFlush()
	return step, nil
}

// Reset останавливает цикл и сбрасывает движок. Очередь сохраняется.
//
// Ожидающие Wait текущего прогона просыпаются; следующий Wait ждёт
// прогон, начатый после сброса.
func (s *Session) Reset() {
	s.stopLoop()

	s.mu.Lock()
	s.engine.Reset()
	s.state = domain.SimulationIdle
	s.activeNodeID = ""
	s.lastError = ""
	s.startedAt = time.Time{}
	s.finishedAt = time.Time{}
	s.signalFinishedLocked()
	s.armFinishedLocked()
	s.appendLogLocked(domain.LogInfo, "Simulation reset", "")
	s.publishStateLocked()
	s.unlockAndFlush()
}

// Wait ждёт завершения текущего прогона (completed или error), его сброса
// или закрытия сессии.
func (s *Session) Wait(ctx context.Context) (domain.SimulationState, error) {
	s.mu.Lock()
	finished := s.finished
	s.mu.Unlock()

	if finished == nil {
		return s.State(), fmt.Errorf("%w: simulation was not started", ErrInvalidState)
	}

	select {
	case <-finished:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// Close останавливает цикл и публикует EventClosed. Закрытую сессию нельзя запустить.
func (s *Session) Close() {
	s.stopLoop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	ev := domain.NewEvent(domain.EventClosed, s.id)
	progress := s.engine.Progress()
	ev.State = s.state
	ev.Progress = &progress
	s.enqueueEventLocked(ev)
	s.signalFinishedLocked()
	s.unlockAndFlush()
}

// Snapshot возвращает копию состояния.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		FlowID:       s.flowID,
		State:        s.state,
		ActiveNodeID: s.activeNodeID,
		Progress:     s.engine.Progress(),
		Steps:        s.engine.Steps(),
		Logs:         append([]domain.LogEntry(nil), s.logs...),
		Error:        s.lastError,
		CreatedAt:    s.createdAt,
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		snap.FinishedAt = &t
	}
	return snap
}

// --- Цикл шагов ---

func (s *Session) startLoopLocked() {
	ctx, cancel := context.WithCancel(s.baseCtx)
	done := make(chan struct{})
	s.cancelLoop = cancel
	s.loopDone = done

	go s.loop(ctx, done)
}

// stopLoop отменяет цикл и ждёт его выхода. Вызывается без s.mu.
func (s *Session) stopLoop() {
	s.mu.Lock()
	cancel, done := s.cancelLoop, s.loopDone
	s.cancelLoop, s.loopDone = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Session) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		step, err := s.engine.ExecuteNext(ctx)
		switch {
		case errors.Is(err, simulator.ErrStepInFlight):
			// Ручной шаг ещё выполняется; пробуем на следующем тике
		case errors.Is(err, simulator.ErrExhausted):
			s.finishIfCurrent(ctx)
			return
		case err != nil:
			// Отмена или сброс: состояние меняет вызвавший
			return
		default:
			s.mu.Lock()
			s.recordStepLocked(step)
			if s.engine.IsComplete() && s.loopOwnsLocked(ctx) {
				s.completeLocked()
				s.unlockAndFlush()
				return
			}
			s.unlockAndFlush()
		}

		timer.Reset(s.interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

func (s *Session) finishIfCurrent(ctx context.Context) {
	s.mu.Lock()
	if s.loopOwnsLocked(ctx) {
		s.completeLocked()
	}
	s.unlockAndFlush()
}

// loopOwnsLocked — цикл ещё управляет сессией (не было паузы, сброса или закрытия).
func (s *Session) loopOwnsLocked(ctx context.Context) bool {
	return ctx.Err() == nil && s.state == domain.SimulationRunning
}

// recordStepLocked пишет шаг в журнал, метрики и события.
func (s *Session) recordStepLocked(step *domain.ExecutionStep) {
	s.activeNodeID = step.NodeID

	telemetry.StepsTotal.WithLabelValues(string(step.NodeType), telemetry.ResultLabel(step.Failed())).Inc()
	telemetry.StepDuration.WithLabelValues(string(step.NodeType)).Observe(step.Duration.Seconds())

	if step.Failed() {
		s.appendLogLocked(domain.LogError, fmt.Sprintf("Node %s: %s", step.NodeID, step.Error), step.NodeID)
		s.logger.Warn("node failed", "node_id", step.NodeID, "node_type", step.NodeType, "error", step.Error)
	} else {
		s.appendLogLocked(domain.LogSuccess, fmt.Sprintf("Node %s executed successfully", step.NodeID), step.NodeID)
		s.logger.Debug("node executed", "node_id", step.NodeID, "node_type", step.NodeType, "duration", step.Duration)
	}

	ev := domain.NewEvent(domain.EventStep, s.id)
	stepCopy := *step
	progress := s.engine.Progress()
	ev.Step = &stepCopy
	ev.Progress = &progress
	ev.State = s.state
	s.enqueueEventLocked(ev)
}

// completeLocked переводит сессию в completed.
func (s *Session) completeLocked() {
	if s.state == domain.SimulationCompleted {
		return
	}
	s.state = domain.SimulationCompleted
	s.activeNodeID = ""
	s.finishedAt = s.deps.clock()
	s.appendLogLocked(domain.LogSuccess, "Simulation completed", "")
	telemetry.SimulationsFinished.WithLabelValues(string(domain.SimulationCompleted)).Inc()
	s.logger.Info("simulation completed", "steps", len(s.engine.Steps()))
	s.saveHistoryLocked()
	s.publishStateLocked()
	s.signalFinishedLocked()
}

// armFinishedLocked создаёт новый канал finished, если прежний уже отдан на закрытие.
func (s *Session) armFinishedLocked() {
	if s.finished == nil || s.finishedSignaled {
		s.finished = make(chan struct{})
		s.finishedSignaled = false
	}
}

// signalFinishedLocked ставит закрытие finished в outbox, после уже накопленных
// событий и записи истории.
func (s *Session) signalFinishedLocked() {
	if s.finished == nil || s.finishedSignaled {
		return
	}
	s.finishedSignaled = true
	s.outbox = append(s.outbox, outboxItem{done: s.finished})
}

func (s *Session) appendLogLocked(level domain.LogLevel, msg, nodeID string) {
	entry := domain.LogEntry{
		Timestamp: s.deps.clock(),
		Level:     level,
		Message:   msg,
		NodeID:    nodeID,
	}
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = s.logs[len(s.logs)-maxLogEntries:]
	}

	ev := domain.NewEvent(domain.EventLog, s.id)
	ev.Log = &entry
	ev.State = s.state
	s.enqueueEventLocked(ev)
}

func (s *Session) publishStateLocked() {
	ev := domain.NewEvent(domain.EventState, s.id)
	progress := s.engine.Progress()
	ev.State = s.state
	ev.Progress = &progress
	s.enqueueEventLocked(ev)
}

func (s *Session) enqueueEventLocked(ev domain.Event) {
	if len(s.deps.publishers) == 0 {
		return
	}
	s.outbox = append(s.outbox, outboxItem{event: &ev})
}

// saveHistoryLocked ставит итог прогона в outbox, если настроено хранилище.
// Каждый прогон получает свою запись.
func (s *Session) saveHistoryLocked() {
	if s.deps.history == nil {
		return
	}

	rec := &domain.SimulationRecord{
		ID:         uuid.New(),
		SessionID:  s.id,
		FlowID:     s.flowID,
		State:      s.state,
		Steps:      s.engine.Steps(),
		Error:      s.lastError,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}
	rec.CountFailed()
	s.outbox = append(s.outbox, outboxItem{record: rec})
}

// --- Доставка ---

// unlockAndFlush освобождает s.mu и доставляет outbox.
//
// Вызывается под s.mu. Доставляет одна горутина за раз: если доставка уже
// идёт, новые элементы подхватит она, и порядок сохранится.
func (s *Session) unlockAndFlush() {
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()

		s.deliver(batch)

		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}

func (s *Session) deliver(batch []outboxItem) {
	for _, item := range batch {
		switch {
		case item.event != nil:
			s.deps.publish(s.baseCtx, *item.event)
		case item.record != nil:
			s.saveHistory(item.record)
		case item.done != nil:
			close(item.done)
		}
	}
}

func (s *Session) saveHistory(rec *domain.SimulationRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.baseCtx), historyTimeout)
	defer cancel()
	if err := s.deps.history.Create(ctx, rec); err != nil {
		s.logger.Error("failed to save simulation history", "run_id", rec.ID, "error", err)
	}
}
