package nodes

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
)

// Registry — таблица обработчиков по типу узла.
//
// Каждый движок получает свою таблицу при создании, глобального реестра нет.
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.NodeType]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[domain.NodeType]Handler),
	}
}

// Options — параметры стандартных обработчиков.
type Options struct {
	// Evaluator — песочница для transform и decision. По умолчанию engine.NewEvaluator().
	Evaluator *engine.Evaluator

	// MaxDelay — верхняя граница ожидания delay. По умолчанию DefaultMaxDelay.
	MaxDelay time.Duration
}

// DefaultRegistry создаёт реестр со всеми стандартными обработчиками.
func DefaultRegistry(opts Options) *Registry {
	ev := opts.Evaluator
	if ev == nil {
		ev = engine.NewEvaluator()
	}

	r := NewRegistry()
	r.Register(NewTriggerHandler())
	r.Register(NewAPIHandler())
	r.Register(NewTransformHandler(ev))
	r.Register(NewDecisionHandler(ev))
	r.Register(NewOutputHandler())
	r.Register(NewDelayHandler(opts.MaxDelay))
	r.Register(NewLoopHandler())
	r.Register(NewMergeHandler())
	r.Register(NewPassthrough(domain.NodeTypeErrorHandler))
	r.Register(NewPassthrough(domain.NodeTypeCustom))

	return r
}

// Register регистрирует обработчик.
// Если обработчик с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get возвращает обработчик по типу.
// Возвращает ErrHandlerNotFound, если обработчика нет.
func (r *Registry) Get(t domain.NodeType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[t]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, t)
	}
	return h, nil
}

// Resolve возвращает обработчик или Passthrough для неизвестного типа.
func (r *Registry) Resolve(t domain.NodeType) Handler {
	if h, err := r.Get(t); err == nil {
		return h
	}
	return NewPassthrough(t)
}

// Has проверяет, зарегистрирован ли обработчик.
func (r *Registry) Has(t domain.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[t]
	return exists
}

// Types возвращает список зарегистрированных типов (отсортированный).
func (r *Registry) Types() []domain.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.NodeType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count возвращает количество зарегистрированных обработчиков.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
