package api

import (
	"log/slog"
	"net/http"

	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/nodes"
	"github.com/shaiso/flowgraph/internal/orchestrator"
	"github.com/shaiso/flowgraph/internal/repo"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flows        repo.FlowRepository
	simulations  repo.SimulationRepository
	orchestrator *orchestrator.Orchestrator
	catalog      *nodes.Catalog
	validator    *nodes.Validator
	hub          *Hub
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Flows        repo.FlowRepository
	Simulations  repo.SimulationRepository
	Orchestrator *orchestrator.Orchestrator

	// Catalog типов узлов; по умолчанию nodes.DefaultCatalog()
	Catalog *nodes.Catalog

	// Evaluator для проверки выражений при валидации (может быть nil)
	Evaluator *engine.Evaluator

	// Hub раздаёт события по websocket; nil отключает /events
	Hub *Hub

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = nodes.DefaultCatalog()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		flows:        cfg.Flows,
		simulations:  cfg.Simulations,
		orchestrator: cfg.Orchestrator,
		catalog:      catalog,
		validator:    nodes.NewValidator(catalog, cfg.Evaluator),
		hub:          cfg.Hub,
		logger:       logger,
	}
}

// log возвращает логгер запроса. Без Logging middleware — логгер Handler.
func (h *Handler) log(r *http.Request) *slog.Logger {
	if l := telemetry.FromContext(r.Context()); l != slog.Default() {
		return l
	}
	return h.logger
}
