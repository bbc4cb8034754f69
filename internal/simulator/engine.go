package simulator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/nodes"
)

// Phase — состояние движка.
//
//	idle —Initialize→ ready —ExecuteNext→ running → completed
//	любое —Reset→ idle (очередь сохраняется)
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseReady     Phase = "ready"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
)

// Options — параметры движка.
type Options struct {
	// Registry — обработчики узлов. По умолчанию nodes.DefaultRegistry(nodes.Options{}).
	Registry *nodes.Registry

	// Clock — источник времени для шагов. По умолчанию time.Now.
	Clock func() time.Time
}

// Engine — пошаговый исполнитель одного графа.
//
// Движок не управляет темпом: каждый шаг запускает вызывающий код.
// Одновременно может выполняться только один ExecuteNext.
// Reset во время ожидающего шага увеличивает поколение, и результат
// такого шага отбрасывается с ErrStaleStep.
type Engine struct {
	nodes    []domain.Node
	edges    []domain.Edge
	registry *nodes.Registry
	clock    func() time.Time

	mu          sync.Mutex
	initialized bool
	phase       Phase
	queue       []domain.Node
	cursor      int
	outputs     map[string]any
	steps       []domain.ExecutionStep
	generation  uint64
	inFlight    bool
}

// New создаёт движок для графа. Узлы и связи копируются.
func New(g domain.Graph, opts Options) *Engine {
	reg := opts.Registry
	if reg == nil {
		reg = nodes.DefaultRegistry(nodes.Options{})
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		nodes:    append([]domain.Node(nil), g.Nodes...),
		edges:    append([]domain.Edge(nil), g.Edges...),
		registry: reg,
		clock:    clock,
		phase:    PhaseIdle,
		outputs:  make(map[string]any),
	}
}

// Initialize строит очередь выполнения.
//
// Возвращает engine.ErrNoRootNodes, если нет корневых узлов,
// engine.ErrCyclicGraph при цикле и engine.ErrDuplicateNodeID при повторе ID.
// При ошибке очередь остаётся пустой.
// Успешный вызов сбрасывает позицию, выходы и шаги.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	e.initialized = false
	e.queue = nil
	e.resetRunLocked()
	e.phase = PhaseIdle

	roots := engine.FindRootNodes(e.nodes, e.edges)
	if len(roots) == 0 {
		return engine.ErrNoRootNodes
	}

	sorted, err := engine.TopologicalSort(e.nodes, e.edges)
	if err != nil {
		return err
	}

	reachable := engine.Reachable(roots, e.edges)
	queue := make([]domain.Node, 0, len(sorted))
	for _, n := range sorted {
		if reachable[n.ID] {
			queue = append(queue, n)
		}
	}

	e.queue = queue
	e.initialized = true
	e.phase = PhaseReady
	if len(queue) == 0 {
		e.phase = PhaseCompleted
	}
	return nil
}

// ExecuteNext выполняет следующий узел очереди и возвращает его шаг.
//
// Сбой узла не является ошибкой ExecuteNext: он записывается в step.Error,
// выход узла не сохраняется, позиция всё равно сдвигается.
// Ошибки возвращаются только если:
//   - движок не инициализирован (ErrNotInitialized)
//   - очередь пройдена (ErrExhausted)
//   - уже выполняется другой шаг (ErrStepInFlight)
//   - во время шага был Reset или Initialize (ErrStaleStep)
//   - ctx отменён до или во время шага; позиция не сдвигается, узел выполнится снова
func (e *Engine) ExecuteNext(ctx context.Context) (*domain.ExecutionStep, error) {
	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrStepInFlight
	}
	if e.cursor >= len(e.queue) {
		e.phase = PhaseCompleted
		e.mu.Unlock()
		return nil, ErrExhausted
	}
	if err := ctx.Err(); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	node := e.queue[e.cursor]
	generation := e.generation
	input, inputs := e.resolveInputsLocked(node)
	e.inFlight = true
	e.phase = PhaseRunning
	e.mu.Unlock()

	started := e.clock()
	req := nodes.NewRequest(node, input, inputs, started)
	if node.Type == domain.NodeTypeMerge {
		req.Input = req.Inputs
	}
	output, execErr := e.dispatch(ctx, req)
	duration := e.clock().Sub(started)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false

	if generation != e.generation {
		return nil, ErrStaleStep
	}
	if execErr != nil && (ctx.Err() != nil || errors.Is(execErr, nodes.ErrNodeCancelled)) {
		// Шаг брошен вызывающим кодом: позиция не двигается, узел выполнится снова
		e.phase = e.phaseLocked()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, execErr
	}

	step := domain.ExecutionStep{
		Index:     len(e.steps),
		NodeID:    node.ID,
		NodeType:  node.Type,
		Timestamp: started,
		Duration:  duration,
		Input:     req.Input,
	}
	if execErr != nil {
		step.Error = execErr.Error()
	} else {
		e.outputs[node.ID] = output
		step.Output = output
	}

	e.steps = append(e.steps, step)
	e.cursor++
	e.phase = e.phaseLocked()

	return &step, nil
}

// dispatch вызывает обработчик и превращает панику в ошибку узла.
func (e *Engine) dispatch(ctx context.Context, req *nodes.Request) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &PanicError{NodeID: req.Node.ID, Value: r}
		}
	}()
	return e.registry.Resolve(req.Node.Type).Execute(ctx, req)
}

// resolveInputsLocked находит вход узла.
//
// input — выход первого по порядку связей источника, у которого выход уже есть.
// inputs — выходы всех таких источников по порядку связей (для merge).
func (e *Engine) resolveInputsLocked(node domain.Node) (any, []any) {
	var (
		input  any
		found  bool
		inputs = make([]any, 0)
	)
	for _, source := range engine.IncomingSources(node.ID, e.edges) {
		out, ok := e.outputs[source]
		if !ok {
			continue
		}
		if !found {
			input = out
			found = true
		}
		inputs = append(inputs, out)
	}
	return input, inputs
}

// Reset сбрасывает позицию, выходы и шаги, сохраняя очередь.
// Шаг, выполняющийся в этот момент, будет отброшен.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++
	e.resetRunLocked()
	e.phase = PhaseIdle
}

func (e *Engine) resetRunLocked() {
	e.cursor = 0
	e.outputs = make(map[string]any)
	e.steps = nil
}

func (e *Engine) phaseLocked() Phase {
	switch {
	case !e.initialized:
		return PhaseIdle
	case e.cursor >= len(e.queue):
		return PhaseCompleted
	case e.cursor == 0:
		return PhaseReady
	default:
		return PhaseRunning
	}
}

// IsComplete возвращает true, если очередь пройдена.
func (e *Engine) IsComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized && e.cursor >= len(e.queue)
}

// Progress возвращает текущий прогресс.
func (e *Engine) Progress() domain.Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := domain.Progress{Current: e.cursor, Total: len(e.queue)}
	if p.Total > 0 {
		p.Percentage = float64(p.Current) / float64(p.Total) * 100
	}
	return p
}

// Phase возвращает состояние движка.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Steps возвращает копию записанных шагов.
func (e *Engine) Steps() []domain.ExecutionStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.ExecutionStep(nil), e.steps...)
}

// Queue возвращает копию очереди выполнения.
func (e *Engine) Queue() []domain.Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Node(nil), e.queue...)
}

// Output возвращает сохранённый выход узла.
func (e *Engine) Output(nodeID string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out, ok := e.outputs[nodeID]
	return out, ok
}

// Next возвращает узел, который выполнится следующим.
func (e *Engine) Next() (domain.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cursor >= len(e.queue) {
		return domain.Node{}, false
	}
	return e.queue[e.cursor], true
}
