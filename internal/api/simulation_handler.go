package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/flowgraph/internal/orchestrator"
	"github.com/shaiso/flowgraph/internal/repo"
)

// CreateSimulation создаёт сессию для flow.
// POST /api/v1/flows/{id}/simulations
//
// Тело необязательно: {"auto_start": true} сразу запускает цикл.
// Ошибка инициализации при auto_start не отменяет создание: сессия
// возвращается в состоянии error.
func (h *Handler) CreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req CreateSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	session, err := h.orchestrator.Create(flow.ID, flow.Graph)
	if HandleSessionError(w, h.log(r), err) {
		return
	}

	if req.AutoStart {
		if err := session.Start(); err != nil {
			h.log(r).Info("simulation failed to start",
				"simulation_id", session.ID(),
				"error", err,
			)
		}
	}

	Created(w, session.Snapshot())
}

// ListFlowSimulations возвращает историю завершённых симуляций flow.
// GET /api/v1/flows/{id}/simulations?limit=N
func (h *Handler) ListFlowSimulations(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	limit := repo.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
	}

	if _, err := h.flows.GetByID(r.Context(), id); HandleRepoError(w, h.log(r), err, "flow not found") {
		return
	}

	records, err := h.simulations.ListByFlow(r.Context(), id, limit)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]SimulationRecordResponse, len(records))
	for i, rec := range records {
		result[i] = SimulationRecordFromDomain(rec, false)
	}

	List(w, result, len(result))
}

// ListSimulations возвращает активные сессии.
// GET /api/v1/simulations
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	snaps := h.orchestrator.List()
	List(w, snaps, len(snaps))
}

// GetSimulation возвращает состояние сессии.
// Если сессии уже нет в памяти, возвращает её последний прогон из истории;
// {id} может быть и ID самого прогона.
// GET /api/v1/simulations/{id}
func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid simulation id")
		return
	}

	session, err := h.orchestrator.Get(id)
	if err == nil {
		Success(w, session.Snapshot())
		return
	}
	if !errors.Is(err, orchestrator.ErrSessionNotFound) {
		HandleSessionError(w, h.log(r), err)
		return
	}

	rec, err := h.simulations.GetLatestBySession(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		rec, err = h.simulations.GetByID(r.Context(), id)
	}
	if HandleRepoError(w, h.log(r), err, "simulation not found") {
		return
	}
	Success(w, SimulationRecordFromDomain(*rec, true))
}

// DeleteSimulation останавливает и удаляет сессию.
// DELETE /api/v1/simulations/{id}
func (h *Handler) DeleteSimulation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid simulation id")
		return
	}

	if HandleSessionError(w, h.log(r), h.orchestrator.Remove(id)) {
		return
	}
	NoContent(w)
}

// StartSimulation запускает (или перезапускает) сессию.
// POST /api/v1/simulations/{id}/start
func (h *Handler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, (*orchestrator.Session).Start)
}

// PauseSimulation ставит сессию на паузу.
// POST /api/v1/simulations/{id}/pause
func (h *Handler) PauseSimulation(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, (*orchestrator.Session).Pause)
}

// ResumeSimulation продолжает сессию после паузы.
// POST /api/v1/simulations/{id}/resume
func (h *Handler) ResumeSimulation(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, (*orchestrator.Session).Resume)
}

// ResetSimulation сбрасывает сессию в idle.
// POST /api/v1/simulations/{id}/reset
func (h *Handler) ResetSimulation(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, func(s *orchestrator.Session) error {
		s.Reset()
		return nil
	})
}

// StepSimulation выполняет один узел.
// POST /api/v1/simulations/{id}/step
func (h *Handler) StepSimulation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	step, err := session.Step(r.Context())
	if HandleSessionError(w, h.log(r), err) {
		return
	}

	Success(w, StepResponse{Step: step, Simulation: session.Snapshot()})
}

// withSession выполняет операцию над сессией и возвращает её состояние.
func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, op func(*orchestrator.Session) error) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	if HandleSessionError(w, h.log(r), op(session)) {
		return
	}
	Success(w, session.Snapshot())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*orchestrator.Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid simulation id")
		return nil, false
	}

	session, err := h.orchestrator.Get(id)
	if HandleSessionError(w, h.log(r), err) {
		return nil, false
	}
	return session, true
}
