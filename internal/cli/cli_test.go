package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/flowgraph/internal/api"
	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/nodes"
	"github.com/shaiso/flowgraph/internal/orchestrator"
	"github.com/shaiso/flowgraph/internal/storage"
)

const validDocument = `{
  "version": "1.0.0",
  "nodes": [
    {"id": "start", "type": "trigger", "data": {"interval": 1000}},
    {"id": "calc", "type": "transform", "data": {"script": "1 + 1"}},
    {"id": "sink", "type": "output", "data": {"target": "log"}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "calc"},
    {"id": "e2", "source": "calc", "target": "sink"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return NewOutputTo(jsonMode, &stdout, &stderr), &stdout, &stderr
}

func TestSimulate(t *testing.T) {
	doc, err := readDocument(writeFile(t, "flow.json", validDocument))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	out, _, stderr := testOutput(false)
	snap, err := Simulate(context.Background(), doc.Graph(), SimulateOptions{Interval: time.Millisecond}, out)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	if snap.State != domain.SimulationCompleted {
		t.Errorf("expected completed, got %s", snap.State)
	}
	if len(snap.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(snap.Steps))
	}
	if snap.Steps[1].Output != float64(2) {
		t.Errorf("unexpected transform output %v (%T)", snap.Steps[1].Output, snap.Steps[1].Output)
	}

	log := stderr.String()
	for _, want := range []string{"Simulation started", "Node calc executed successfully", "Simulation completed"} {
		if !strings.Contains(log, want) {
			t.Errorf("expected %q in terminal log:\n%s", want, log)
		}
	}
}

func TestSimulate_NoRootNodes(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{{ID: "a", Type: domain.NodeTypeTransform}, {ID: "b", Type: domain.NodeTypeTransform}},
		Edges: []domain.Edge{{ID: "e1", Source: "a", Target: "b"}, {ID: "e2", Source: "b", Target: "a"}},
	}

	out, _, _ := testOutput(false)
	snap, err := Simulate(context.Background(), g, SimulateOptions{Interval: time.Millisecond}, out)
	if !errors.Is(err, engine.ErrNoRootNodes) {
		t.Fatalf("expected ErrNoRootNodes, got %v", err)
	}
	if snap.State != domain.SimulationError {
		t.Errorf("expected error state, got %s", snap.State)
	}
}

func TestValidateCmd(t *testing.T) {
	out, _, stderr := testOutput(false)
	cmd := NewValidateCmd(func() *Output { return out })
	cmd.SetArgs([]string{writeFile(t, "flow.json", validDocument)})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
	if !strings.Contains(stderr.String(), "3 nodes, 2 edges, valid") {
		t.Errorf("unexpected message: %s", stderr.String())
	}

	invalid := strings.Replace(validDocument, `"target": "log"`, `"target": "fax"`, 1)
	out, stdout, _ := testOutput(false)
	cmd = NewValidateCmd(func() *Output { return out })
	cmd.SetArgs([]string{writeFile(t, "bad.json", invalid)})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if err := cmd.Execute(); !errors.Is(err, ErrInvalidFlow) {
		t.Fatalf("expected ErrInvalidFlow, got %v", err)
	}
	if !strings.Contains(stdout.String(), "sink") || !strings.Contains(stdout.String(), "target") {
		t.Errorf("expected issue for sink.target, got:\n%s", stdout.String())
	}
}

func TestConvertCmd(t *testing.T) {
	out, stdout, _ := testOutput(false)
	cmd := NewConvertCmd(func() *Output { return out })
	cmd.SetArgs([]string{writeFile(t, "flow.json", validDocument), "--to", "yaml"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("convert: %v", err)
	}

	yamlDoc := stdout.String()
	if !strings.Contains(yamlDoc, "version: 1.0.0") {
		t.Errorf("expected yaml document, got:\n%s", yamlDoc)
	}

	// Обратно в JSON через файл
	yamlPath := writeFile(t, "flow.yaml", yamlDoc)
	target := filepath.Join(t.TempDir(), "back.json")
	out, _, _ = testOutput(false)
	cmd = NewConvertCmd(func() *Output { return out })
	cmd.SetArgs([]string{yamlPath, "--to", "json", "-o", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("convert back: %v", err)
	}

	doc, err := readDocument(target)
	if err != nil {
		t.Fatalf("read converted: %v", err)
	}
	if len(doc.Nodes) != 3 || len(doc.Edges) != 2 {
		t.Errorf("expected 3 nodes and 2 edges, got %d and %d", len(doc.Nodes), len(doc.Edges))
	}
}

// --- Client против настоящего API на sqlite ---

func newTestAPI(t *testing.T) *Client {
	t.Helper()

	store, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "cli.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(store.Close)

	hub := api.NewHub(nil)
	orch := orchestrator.New(orchestrator.Config{
		Registry:     nodes.DefaultRegistry(nodes.Options{MaxDelay: 10 * time.Millisecond}),
		StepInterval: time.Millisecond,
		Publishers:   map[string]orchestrator.Publisher{"websocket": hub},
		History:      store.Simulations,
	})
	t.Cleanup(orch.Shutdown)

	h := api.NewHandler(api.Config{
		Flows:        store.Flows,
		Simulations:  store.Simulations,
		Orchestrator: orch,
		Hub:          hub,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL)
}

func TestClient_Flows(t *testing.T) {
	client := newTestAPI(t)

	flow, err := client.ImportFlow("orders", []byte(validDocument), "json")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if flow.Name != "orders" || flow.NodeCount != 3 || flow.EdgeCount != 2 {
		t.Errorf("unexpected flow: %+v", flow)
	}

	flows, err := client.ListFlows()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(flows) != 1 || flows[0].ID != flow.ID {
		t.Errorf("unexpected list: %+v", flows)
	}

	data, err := client.ExportFlow(flow.ID, "yaml")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(data), "version: 1.0.0") {
		t.Errorf("unexpected export:\n%s", data)
	}

	if err := client.DeleteFlow(flow.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.GetFlow(flow.ID); err == nil || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestClient_Simulations(t *testing.T) {
	client := newTestAPI(t)

	flow, err := client.ImportFlow("", []byte(validDocument), "json")
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	// Ручной режим
	sim, err := client.CreateSimulation(flow.ID, CreateSimulationRequest{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sim.State != domain.SimulationIdle {
		t.Errorf("expected idle, got %s", sim.State)
	}

	res, err := client.StepSimulation(sim.ID)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if res.Step == nil || res.Step.NodeID != "start" {
		t.Errorf("expected first step on start, got %+v", res.Step)
	}
	if res.Simulation.Progress.Current != 1 {
		t.Errorf("expected progress 1, got %d", res.Simulation.Progress.Current)
	}

	reset, err := client.SimulationAction(sim.ID, "reset")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.State != domain.SimulationIdle || reset.Progress.Current != 0 {
		t.Errorf("unexpected state after reset: %+v", reset)
	}

	// Автоматический режим до завершения
	auto, err := client.CreateSimulation(flow.ID, CreateSimulationRequest{AutoStart: true})
	if err != nil {
		t.Fatalf("create auto: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var states []domain.SimulationState
	err = client.WatchSimulation(ctx, auto.ID, func(ev domain.Event) bool {
		if ev.Type != domain.EventState {
			return true
		}
		states = append(states, ev.State)
		return !ev.State.IsTerminal()
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(states) == 0 || states[len(states)-1] != domain.SimulationCompleted {
		t.Fatalf("expected to observe completed, got %v", states)
	}

	records, err := client.ListHistory(flow.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].SessionID != auto.ID || records[0].StepCount != 3 {
		t.Errorf("unexpected history: %+v", records)
	}
}

func TestClient_ErrorWithIssues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"VALIDATION_FAILED","message":"flow is invalid","issues":[{"node_id":"n1","message":"url: Invalid URL"}]}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetFlow("x")
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "VALIDATION_FAILED: flow is invalid") || !strings.Contains(msg, "node n1: url: Invalid URL") {
		t.Errorf("unexpected error: %s", msg)
	}
}
