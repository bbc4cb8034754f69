package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/nodes"
	"github.com/shaiso/flowgraph/internal/orchestrator"
	"github.com/shaiso/flowgraph/internal/repo"
)

// --- in-memory репозитории ---

type memFlows struct {
	mu    sync.Mutex
	flows map[uuid.UUID]domain.Flow
}

func (m *memFlows) Create(_ context.Context, f *domain.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[f.ID]; ok {
		return repo.ErrAlreadyExists
	}
	m.flows[f.ID] = *f
	return nil
}

func (m *memFlows) GetByID(_ context.Context, id uuid.UUID) (*domain.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &f, nil
}

func (m *memFlows) List(_ context.Context) ([]domain.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Flow, 0, len(m.flows))
	for _, f := range m.flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memFlows) Update(_ context.Context, f *domain.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[f.ID]; !ok {
		return repo.ErrNotFound
	}
	m.flows[f.ID] = *f
	return nil
}

func (m *memFlows) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.flows[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.flows, id)
	return nil
}

type memSimulations struct {
	mu      sync.Mutex
	records []domain.SimulationRecord
}

func (m *memSimulations) Create(_ context.Context, rec *domain.SimulationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

func (m *memSimulations) GetByID(_ context.Context, id uuid.UUID) (*domain.SimulationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memSimulations) GetLatestBySession(_ context.Context, sessionID uuid.UUID) (*domain.SimulationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].SessionID == sessionID {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memSimulations) ListByFlow(_ context.Context, flowID uuid.UUID, limit int) ([]domain.SimulationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SimulationRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < repo.NormalizeLimit(limit); i-- {
		if m.records[i].FlowID == flowID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

// --- тестовый сервер ---

type testServer struct {
	*httptest.Server
	sims *memSimulations
	hub  *Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	sims := &memSimulations{}
	hub := NewHub(nil)
	orch := orchestrator.New(orchestrator.Config{
		Registry:     nodes.DefaultRegistry(nodes.Options{MaxDelay: 10 * time.Millisecond}),
		StepInterval: time.Millisecond,
		Publishers:   map[string]orchestrator.Publisher{"websocket": hub},
		History:      sims,
	})
	t.Cleanup(orch.Shutdown)

	h := NewHandler(Config{
		Flows:        &memFlows{flows: make(map[uuid.UUID]domain.Flow)},
		Simulations:  sims,
		Orchestrator: orch,
		Hub:          hub,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, sims: sims, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return envelope.Data
}

func decodeError(t *testing.T, body []byte) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode error %s: %v", body, err)
	}
	return resp.Error
}

func chainGraph() domain.Graph {
	return domain.Graph{
		Nodes: []domain.Node{
			{ID: "1", Type: domain.NodeTypeTrigger, Data: map[string]any{"interval": 1000}},
			{ID: "2", Type: domain.NodeTypeAPI, Data: map[string]any{"url": "https://example.com", "method": "GET"}},
			{ID: "3", Type: domain.NodeTypeOutput, Data: map[string]any{"target": "log"}},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "1", Target: "2"},
			{ID: "e2", Source: "2", Target: "3"},
		},
	}
}

func (s *testServer) createFlow(t *testing.T, g domain.Graph) FlowResponse {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/v1/flows", CreateFlowRequest{Name: "demo", Graph: g})
	if status != http.StatusCreated {
		t.Fatalf("create flow: expected 201, got %d: %s", status, body)
	}
	return decodeData[FlowResponse](t, body)
}

// --- тесты ---

func TestNodeTypes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/v1/node-types", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	specs := decodeData[[]nodes.TypeSpec](t, body)
	if len(specs) != len(domain.NodeTypes()) {
		t.Errorf("expected %d node types, got %d", len(domain.NodeTypes()), len(specs))
	}
}

func TestFlowLifecycle(t *testing.T) {
	s := newTestServer(t)

	flow := s.createFlow(t, chainGraph())
	if flow.NodeCount != 3 || flow.EdgeCount != 2 {
		t.Errorf("unexpected counts: %+v", flow)
	}

	status, body := s.do(t, http.MethodGet, "/api/v1/flows/"+flow.ID.String(), nil)
	if status != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", status)
	}
	if got := decodeData[FlowResponse](t, body); got.Name != "demo" {
		t.Errorf("unexpected flow: %+v", got)
	}

	newName := "renamed"
	status, body = s.do(t, http.MethodPut, "/api/v1/flows/"+flow.ID.String(), UpdateFlowRequest{Name: &newName})
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", status, body)
	}
	if got := decodeData[FlowResponse](t, body); got.Name != "renamed" || got.NodeCount != 3 {
		t.Errorf("unexpected update result: %+v", got)
	}

	status, body = s.do(t, http.MethodGet, "/api/v1/flows", nil)
	if status != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", status)
	}
	if list := decodeData[[]FlowResponse](t, body); len(list) != 1 {
		t.Errorf("expected 1 flow, got %d", len(list))
	}

	status, _ = s.do(t, http.MethodDelete, "/api/v1/flows/"+flow.ID.String(), nil)
	if status != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", status)
	}
	status, body = s.do(t, http.MethodGet, "/api/v1/flows/"+flow.ID.String(), nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
	if e := decodeError(t, body); e.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", e.Code)
	}

	if status, _ := s.do(t, http.MethodGet, "/api/v1/flows/not-a-uuid", nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", status)
	}
}

func TestCreateFlow_Invalid(t *testing.T) {
	s := newTestServer(t)

	if status, _ := s.do(t, http.MethodPost, "/api/v1/flows", CreateFlowRequest{}); status != http.StatusBadRequest {
		t.Errorf("expected 400 without name, got %d", status)
	}

	g := chainGraph()
	g.Nodes[1].Data = map[string]any{"url": "not a url", "method": "GET"}
	status, body := s.do(t, http.MethodPost, "/api/v1/flows", CreateFlowRequest{Name: "bad", Graph: g})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", status, body)
	}
	e := decodeError(t, body)
	if e.Code != ErrCodeValidationFailed || len(e.Issues) == 0 {
		t.Fatalf("expected validation issues, got %+v", e)
	}
	if e.Issues[0].NodeID != "2" || e.Issues[0].Field != "url" {
		t.Errorf("unexpected issue: %+v", e.Issues[0])
	}
}

func TestValidateFlow(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/v1/flows/validate", ValidateRequest{Graph: chainGraph()})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if res := decodeData[ValidateResponse](t, body); !res.Valid {
		t.Errorf("expected valid graph, got %+v", res)
	}

	g := chainGraph()
	g.Edges = append(g.Edges, domain.Edge{ID: "back", Source: "3", Target: "2"})
	_, body = s.do(t, http.MethodPost, "/api/v1/flows/validate", ValidateRequest{Graph: g})
	res := decodeData[ValidateResponse](t, body)
	if res.Valid || len(res.Issues) != 1 {
		t.Fatalf("expected one issue, got %+v", res)
	}
	if res.Issues[0].Message != "cycle detected in flow graph" {
		t.Errorf("unexpected message %q", res.Issues[0].Message)
	}
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t)
	flow := s.createFlow(t, chainGraph())

	resp, err := http.Get(s.URL + "/api/v1/flows/" + flow.ID.String() + "/export?format=yaml")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	doc, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(string(doc), "version: 1.0.0") {
		t.Errorf("expected version in document:\n%s", doc)
	}

	status, body := s.do(t, http.MethodPost, "/api/v1/flows/import?format=yaml&name=copy", string(doc))
	if status != http.StatusCreated {
		t.Fatalf("import: expected 201, got %d: %s", status, body)
	}
	imported := decodeData[FlowResponse](t, body)
	if imported.Name != "copy" || imported.NodeCount != 3 || imported.ID == flow.ID {
		t.Errorf("unexpected imported flow: %+v", imported)
	}

	status, _ = s.do(t, http.MethodPost, "/api/v1/flows/import", `{"version":"0.9","nodes":[],"edges":[]}`)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported version, got %d", status)
	}
}

func TestSimulation_AutoStartCompletes(t *testing.T) {
	s := newTestServer(t)
	flow := s.createFlow(t, chainGraph())

	status, body := s.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/simulations", CreateSimulationRequest{AutoStart: true})
	if status != http.StatusCreated {
		t.Fatalf("create simulation: expected 201, got %d: %s", status, body)
	}
	sim := decodeData[SimulationResponse](t, body)

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, body = s.do(t, http.MethodGet, "/api/v1/simulations/"+sim.ID.String(), nil)
		sim = decodeData[SimulationResponse](t, body)
		if sim.State == domain.SimulationCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("simulation did not complete, state %s", sim.State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if len(sim.Steps) != 3 || sim.Progress.Percentage != 100 {
		t.Errorf("unexpected final state: %+v", sim)
	}

	status, body = s.do(t, http.MethodGet, "/api/v1/flows/"+flow.ID.String()+"/simulations", nil)
	if status != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", status)
	}
	history := decodeData[[]SimulationRecordResponse](t, body)
	if len(history) != 1 || history[0].StepCount != 3 || history[0].State != domain.SimulationCompleted {
		t.Errorf("unexpected history: %+v", history)
	}

	// После удаления сессии запись доступна из истории
	if status, _ := s.do(t, http.MethodDelete, "/api/v1/simulations/"+sim.ID.String(), nil); status != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", status)
	}
	status, body = s.do(t, http.MethodGet, "/api/v1/simulations/"+sim.ID.String(), nil)
	if status != http.StatusOK {
		t.Fatalf("expected history record, got %d", status)
	}
	rec := decodeData[SimulationRecordResponse](t, body)
	if len(rec.Steps) != 3 || rec.SessionID != sim.ID {
		t.Errorf("expected steps of session %s in record, got %+v", sim.ID, rec)
	}
	if rec.ID == sim.ID {
		t.Errorf("expected run ID distinct from session ID")
	}

	// Запись находится и по ID прогона
	status, _ = s.do(t, http.MethodGet, "/api/v1/simulations/"+rec.ID.String(), nil)
	if status != http.StatusOK {
		t.Errorf("expected record by run id, got %d", status)
	}
}

func TestSimulation_StartWithoutRoots(t *testing.T) {
	s := newTestServer(t)
	flow := s.createFlow(t, domain.Graph{})

	_, body := s.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/simulations", nil)
	sim := decodeData[SimulationResponse](t, body)

	status, body := s.do(t, http.MethodPost, "/api/v1/simulations/"+sim.ID.String()+"/start", nil)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", status, body)
	}
	if e := decodeError(t, body); e.Message != "no root nodes found" {
		t.Errorf("unexpected message %q", e.Message)
	}

	_, body = s.do(t, http.MethodGet, "/api/v1/simulations/"+sim.ID.String(), nil)
	if got := decodeData[SimulationResponse](t, body); got.State != domain.SimulationError {
		t.Errorf("expected error state, got %s", got.State)
	}
}

func TestSimulation_ManualSteps(t *testing.T) {
	s := newTestServer(t)
	flow := s.createFlow(t, chainGraph())

	_, body := s.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/simulations", nil)
	sim := decodeData[SimulationResponse](t, body)
	if sim.State != domain.SimulationIdle {
		t.Fatalf("expected idle, got %s", sim.State)
	}
	path := "/api/v1/simulations/" + sim.ID.String()

	if status, _ := s.do(t, http.MethodPost, path+"/pause", nil); status != http.StatusConflict {
		t.Errorf("pause idle: expected 409, got %d", status)
	}

	for i, want := range []string{"1", "2", "3"} {
		status, body := s.do(t, http.MethodPost, path+"/step", nil)
		if status != http.StatusOK {
			t.Fatalf("step %d: expected 200, got %d: %s", i, status, body)
		}
		res := decodeData[StepResponse](t, body)
		if res.Step == nil || res.Step.NodeID != want {
			t.Fatalf("step %d: expected node %s, got %+v", i, want, res.Step)
		}
	}

	status, body := s.do(t, http.MethodPost, path+"/step", nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 after completion, got %d", status)
	}
	if e := decodeError(t, body); e.Message != "simulation completed" {
		t.Errorf("unexpected message %q", e.Message)
	}

	status, body = s.do(t, http.MethodPost, path+"/reset", nil)
	if status != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", status)
	}
	if got := decodeData[SimulationResponse](t, body); got.State != domain.SimulationIdle || len(got.Steps) != 0 {
		t.Errorf("unexpected state after reset: %+v", got)
	}

	if status, _ := s.do(t, http.MethodPost, "/api/v1/simulations/"+uuid.NewString()+"/start", nil); status != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", status)
	}
}

func TestSimulationEvents(t *testing.T) {
	s := newTestServer(t)
	flow := s.createFlow(t, chainGraph())

	_, body := s.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/simulations", nil)
	sim := decodeData[SimulationResponse](t, body)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/v1/simulations/" + sim.ID.String() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial domain.Event
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if initial.Type != domain.EventState || initial.State != domain.SimulationIdle {
		t.Errorf("unexpected initial event: %+v", initial)
	}

	// Подписка регистрируется до первого сообщения
	if s.hub.Subscribers(sim.ID) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", s.hub.Subscribers(sim.ID))
	}

	if status, _ := s.do(t, http.MethodPost, "/api/v1/simulations/"+sim.ID.String()+"/step", nil); status != http.StatusOK {
		t.Fatalf("step: expected 200, got %d", status)
	}

	for {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Type == domain.EventStep {
			if ev.Step == nil || ev.Step.NodeID != "1" {
				t.Errorf("unexpected step event: %+v", ev)
			}
			break
		}
	}
}

func TestSimulationEvents_ClosedOnDelete(t *testing.T) {
	s := newTestServer(t)
	flow := s.createFlow(t, chainGraph())

	_, body := s.do(t, http.MethodPost, "/api/v1/flows/"+flow.ID.String()+"/simulations", nil)
	sim := decodeData[SimulationResponse](t, body)

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/v1/simulations/" + sim.ID.String() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial domain.Event
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial: %v", err)
	}

	if status, _ := s.do(t, http.MethodDelete, "/api/v1/simulations/"+sim.ID.String(), nil); status != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", status)
	}

	var last domain.Event
	for {
		var ev domain.Event
		err := conn.ReadJSON(&ev)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			break
		}
		if err != nil {
			t.Fatalf("expected normal closure after delete, got %v", err)
		}
		last = ev
	}
	if last.Type != domain.EventClosed || last.SimulationID != sim.ID {
		t.Errorf("expected closed event before close frame, got %+v", last)
	}
	if last.State != domain.SimulationIdle {
		t.Errorf("expected closed event with idle state, got %s", last.State)
	}
}

func TestHub_ClosedEventEndsFullSubscription(t *testing.T) {
	hub := NewHub(nil)
	id := uuid.New()
	sub, unsubscribe := hub.subscribe(id)
	defer unsubscribe()

	// Буфер полон: closed теряется, но подписка всё равно завершается
	for i := 0; i < subscriberBuffer; i++ {
		hub.Publish(context.Background(), domain.NewEvent(domain.EventLog, id))
	}
	hub.Publish(context.Background(), domain.NewEvent(domain.EventClosed, id))

	select {
	case <-sub.done:
	default:
		t.Fatal("expected subscription to finish on closed event")
	}
	if sub.dropped.Load() != 1 {
		t.Errorf("expected 1 dropped event, got %d", sub.dropped.Load())
	}

	n := 0
	sub.drain(func(domain.Event) error { n++; return nil })
	if n != subscriberBuffer {
		t.Errorf("expected %d buffered events, got %d", subscriberBuffer, n)
	}

	// Подписки других сессий не затронуты
	other, unsubscribeOther := hub.subscribe(uuid.New())
	defer unsubscribeOther()
	select {
	case <-other.done:
		t.Error("unrelated subscription finished")
	default:
	}
}
