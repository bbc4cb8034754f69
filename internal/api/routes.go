package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		CORS,
	)

	// Node types
	mux.Handle("GET /api/v1/node-types", chain(http.HandlerFunc(h.ListNodeTypes)))

	// Flows
	mux.Handle("GET /api/v1/flows", chain(http.HandlerFunc(h.ListFlows)))
	mux.Handle("POST /api/v1/flows", chain(http.HandlerFunc(h.CreateFlow)))
	mux.Handle("POST /api/v1/flows/import", chain(http.HandlerFunc(h.ImportFlow)))
	mux.Handle("POST /api/v1/flows/validate", chain(http.HandlerFunc(h.ValidateFlow)))
	mux.Handle("GET /api/v1/flows/{id}", chain(http.HandlerFunc(h.GetFlow)))
	mux.Handle("PUT /api/v1/flows/{id}", chain(http.HandlerFunc(h.UpdateFlow)))
	mux.Handle("DELETE /api/v1/flows/{id}", chain(http.HandlerFunc(h.DeleteFlow)))
	mux.Handle("GET /api/v1/flows/{id}/export", chain(http.HandlerFunc(h.ExportFlow)))

	// Simulations
	mux.Handle("POST /api/v1/flows/{id}/simulations", chain(http.HandlerFunc(h.CreateSimulation)))
	mux.Handle("GET /api/v1/flows/{id}/simulations", chain(http.HandlerFunc(h.ListFlowSimulations)))
	mux.Handle("GET /api/v1/simulations", chain(http.HandlerFunc(h.ListSimulations)))
	mux.Handle("GET /api/v1/simulations/{id}", chain(http.HandlerFunc(h.GetSimulation)))
	mux.Handle("DELETE /api/v1/simulations/{id}", chain(http.HandlerFunc(h.DeleteSimulation)))
	mux.Handle("POST /api/v1/simulations/{id}/start", chain(http.HandlerFunc(h.StartSimulation)))
	mux.Handle("POST /api/v1/simulations/{id}/pause", chain(http.HandlerFunc(h.PauseSimulation)))
	mux.Handle("POST /api/v1/simulations/{id}/resume", chain(http.HandlerFunc(h.ResumeSimulation)))
	mux.Handle("POST /api/v1/simulations/{id}/step", chain(http.HandlerFunc(h.StepSimulation)))
	mux.Handle("POST /api/v1/simulations/{id}/reset", chain(http.HandlerFunc(h.ResetSimulation)))
	mux.Handle("GET /api/v1/simulations/{id}/events", chain(http.HandlerFunc(h.SimulationEvents)))
}
