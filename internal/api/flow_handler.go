package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/flowfile"
)

// maxDocumentSize — предел тела импорта.
const maxDocumentSize = 4 << 20

// ListNodeTypes возвращает каталог типов узлов.
// GET /api/v1/node-types
func (h *Handler) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	specs := h.catalog.All()
	List(w, specs, len(specs))
}

// ListFlows возвращает список всех flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.flows.List(r.Context())
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]FlowResponse, len(flows))
	for i, f := range flows {
		result[i] = FlowFromDomain(f)
	}

	List(w, result, len(result))
}

// CreateFlow создаёт новый flow.
// POST /api/v1/flows
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	if !h.checkGraph(w, req.Graph) {
		return
	}

	now := time.Now().UTC()
	flow := &domain.Flow{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Graph:       req.Graph,
		Viewport:    req.Viewport,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.flows.Create(r.Context(), flow); HandleRepoError(w, h.log(r), err, "") {
		return
	}

	Created(w, FlowFromDomain(*flow))
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// UpdateFlow обновляет flow.
// PUT /api/v1/flows/{id}
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	var req UpdateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			BadRequest(w, "name must not be empty")
			return
		}
		flow.Name = *req.Name
	}
	if req.Description != nil {
		flow.Description = *req.Description
	}
	if req.Graph != nil {
		if !h.checkGraph(w, *req.Graph) {
			return
		}
		flow.Graph = *req.Graph
	}
	if req.Viewport != nil {
		flow.Viewport = req.Viewport
	}
	flow.UpdatedAt = time.Now().UTC()

	if err := h.flows.Update(r.Context(), flow); HandleRepoError(w, h.log(r), err, "flow not found") {
		return
	}

	Success(w, FlowFromDomain(*flow))
}

// DeleteFlow удаляет flow.
// DELETE /api/v1/flows/{id}
func (h *Handler) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	if err := h.flows.Delete(r.Context(), id); HandleRepoError(w, h.log(r), err, "flow not found") {
		return
	}

	NoContent(w)
}

// ValidateFlow проверяет граф без сохранения.
// POST /api/v1/flows/validate
func (h *Handler) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Validate(req.Graph); err != nil {
		Success(w, ValidateResponse{Valid: false, Issues: IssuesFromError(err)})
		return
	}
	Success(w, ValidateResponse{Valid: true})
}

// ImportFlow создаёт flow из документа редактора.
// POST /api/v1/flows/import?name=...&format=json|yaml
func (h *Handler) ImportFlow(w http.ResponseWriter, r *http.Request) {
	format, err := requestFormat(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	doc, err := flowfile.Import(data, format)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if !h.checkGraph(w, doc.Graph()) {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "Imported flow"
	}

	now := time.Now().UTC()
	flow := &domain.Flow{
		ID:        uuid.New(),
		Name:      name,
		Graph:     doc.Graph(),
		Viewport:  doc.Viewport,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.flows.Create(r.Context(), flow); HandleRepoError(w, h.log(r), err, "") {
		return
	}

	Created(w, FlowFromDomain(*flow))
}

// ExportFlow отдаёт flow как документ редактора.
// GET /api/v1/flows/{id}/export?format=json|yaml
func (h *Handler) ExportFlow(w http.ResponseWriter, r *http.Request) {
	format, err := flowfile.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	flow, ok := h.loadFlow(w, r)
	if !ok {
		return
	}

	data, err := flowfile.Export(flowfile.New(flow.Graph, flow.Viewport), format)
	if err != nil {
		InternalError(w, h.log(r), err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="flow-%s.%s"`, flow.ID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// loadFlow читает flow по {id} из пути. При ошибке ответ уже отправлен.
func (h *Handler) loadFlow(w http.ResponseWriter, r *http.Request) (*domain.Flow, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return nil, false
	}

	flow, err := h.flows.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "flow not found") {
		return nil, false
	}
	return flow, true
}

// checkGraph валидирует непустой граф. Пустой граф допустим: редактор создаёт flow до узлов.
func (h *Handler) checkGraph(w http.ResponseWriter, g domain.Graph) bool {
	if len(g.Nodes) == 0 && len(g.Edges) == 0 {
		return true
	}
	if err := h.validator.Validate(g); err != nil {
		ValidationFailed(w, IssuesFromError(err))
		return false
	}
	return true
}

// requestFormat определяет формат документа по ?format= или Content-Type.
func requestFormat(r *http.Request) (flowfile.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return flowfile.ParseFormat(f)
	}
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		return flowfile.FormatYAML, nil
	}
	return flowfile.FormatJSON, nil
}
