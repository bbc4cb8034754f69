package api

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/nodes"
	"github.com/shaiso/flowgraph/internal/orchestrator"
)

// Flow DTOs

// CreateFlowRequest — запрос на создание flow.
type CreateFlowRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Graph       domain.Graph     `json:"graph"`
	Viewport    *domain.Viewport `json:"viewport,omitempty"`
}

// UpdateFlowRequest — запрос на обновление flow. Отсутствующие поля не меняются.
type UpdateFlowRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Graph       *domain.Graph    `json:"graph,omitempty"`
	Viewport    *domain.Viewport `json:"viewport,omitempty"`
}

// FlowResponse — ответ с flow.
type FlowResponse struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Graph       domain.Graph     `json:"graph"`
	Viewport    *domain.Viewport `json:"viewport,omitempty"`
	NodeCount   int              `json:"node_count"`
	EdgeCount   int              `json:"edge_count"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// FlowFromDomain конвертирует domain.Flow в FlowResponse.
func FlowFromDomain(f domain.Flow) FlowResponse {
	g := f.Graph
	if g.Nodes == nil {
		g.Nodes = []domain.Node{}
	}
	if g.Edges == nil {
		g.Edges = []domain.Edge{}
	}
	return FlowResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Graph:       g,
		Viewport:    f.Viewport,
		NodeCount:   len(g.Nodes),
		EdgeCount:   len(g.Edges),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ValidateRequest — запрос на проверку графа.
type ValidateRequest struct {
	Graph domain.Graph `json:"graph"`
}

// ValidateResponse — результат проверки графа.
type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// ValidationIssue — одна проблема графа.
type ValidationIssue struct {
	NodeID  string `json:"node_id,omitempty"`
	EdgeID  string `json:"edge_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// IssuesFromError разворачивает ошибку валидации в список проблем.
func IssuesFromError(err error) []ValidationIssue {
	if err == nil {
		return nil
	}

	var fieldErrs nodes.ValidationErrors
	if errors.As(err, &fieldErrs) {
		issues := make([]ValidationIssue, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			issues = append(issues, issueFrom(fe))
		}
		return issues
	}

	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return []ValidationIssue{issueFrom(ve)}
	}

	return []ValidationIssue{{Message: err.Error()}}
}

func issueFrom(ve *engine.ValidationError) ValidationIssue {
	return ValidationIssue{
		NodeID:  ve.NodeID,
		EdgeID:  ve.EdgeID,
		Field:   ve.Field,
		Message: ve.Message,
	}
}

// Simulation DTOs

// CreateSimulationRequest — запрос на создание сессии.
type CreateSimulationRequest struct {
	AutoStart bool `json:"auto_start,omitempty"`
}

// SimulationResponse — состояние сессии.
type SimulationResponse = orchestrator.Snapshot

// StepResponse — результат ручного шага.
type StepResponse struct {
	Step       *domain.ExecutionStep `json:"step"`
	Simulation SimulationResponse    `json:"simulation"`
}

// SimulationRecordResponse — запись истории.
type SimulationRecordResponse struct {
	ID          uuid.UUID              `json:"id"`
	SessionID   uuid.UUID              `json:"session_id"`
	FlowID      uuid.UUID              `json:"flow_id"`
	State       domain.SimulationState `json:"state"`
	StepCount   int                    `json:"step_count"`
	FailedSteps int                    `json:"failed_steps"`
	Error       string                 `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	Duration    string                 `json:"duration"`
	Steps       []domain.ExecutionStep `json:"steps,omitempty"`
}

// SimulationRecordFromDomain конвертирует запись истории. Шаги включаются по withSteps.
func SimulationRecordFromDomain(rec domain.SimulationRecord, withSteps bool) SimulationRecordResponse {
	resp := SimulationRecordResponse{
		ID:          rec.ID,
		SessionID:   rec.SessionID,
		FlowID:      rec.FlowID,
		State:       rec.State,
		StepCount:   len(rec.Steps),
		FailedSteps: rec.FailedSteps,
		Error:       rec.Error,
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
		Duration:    rec.FinishedAt.Sub(rec.StartedAt).String(),
	}
	if withSteps {
		resp.Steps = rec.Steps
	}
	return resp
}
