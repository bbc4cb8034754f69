package nodes

import (
	"errors"
	"testing"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	all := c.All()
	if len(all) != len(domain.NodeTypes()) {
		t.Fatalf("expected %d types, got %d", len(domain.NodeTypes()), len(all))
	}
	for i, nt := range domain.NodeTypes() {
		if all[i].Type != nt {
			t.Errorf("position %d: expected %s, got %s", i, nt, all[i].Type)
		}
	}

	if got := len(c.ByCategory(CategoryTrigger)); got != 1 {
		t.Errorf("expected one trigger type, got %d", got)
	}

	defaults := c.Defaults(domain.NodeTypeAPI)
	if defaults["method"] != "GET" {
		t.Errorf("expected default method GET, got %v", defaults["method"])
	}
}

func TestCatalogsAreIndependent(t *testing.T) {
	a := DefaultCatalog()
	b := DefaultCatalog()

	a.Add(TypeSpec{Type: "webhook", Label: "Webhook"})
	if b.Has("webhook") {
		t.Error("catalog b must not see types added to a")
	}
}

func TestValidator_ValidateNode(t *testing.T) {
	v := NewValidator(DefaultCatalog(), engine.NewEvaluator())

	tests := []struct {
		name   string
		node   domain.Node
		fields []string
	}{
		{
			name: "valid api",
			node: domain.Node{ID: "a", Type: domain.NodeTypeAPI, Data: map[string]any{"url": "https://x.io", "method": "POST"}},
		},
		{
			name:   "missing url",
			node:   domain.Node{ID: "a", Type: domain.NodeTypeAPI, Data: map[string]any{"method": "GET"}},
			fields: []string{"url"},
		},
		{
			name:   "bad url and method",
			node:   domain.Node{ID: "a", Type: domain.NodeTypeAPI, Data: map[string]any{"url": "not a url", "method": "PATCH"}},
			fields: []string{"url", "method"},
		},
		{
			name:   "bad expression",
			node:   domain.Node{ID: "t", Type: domain.NodeTypeTransform, Data: map[string]any{"script": "window.alert"}},
			fields: []string{"script"},
		},
		{
			name:   "interval not a number",
			node:   domain.Node{ID: "t", Type: domain.NodeTypeTrigger, Data: map[string]any{"interval": "soon"}},
			fields: []string{"interval"},
		},
		{
			name:   "bad cron",
			node:   domain.Node{ID: "t", Type: domain.NodeTypeTrigger, Data: map[string]any{"interval": 1000, "schedule": "often"}},
			fields: []string{"schedule"},
		},
		{
			name: "optional fields absent",
			node: domain.Node{ID: "e", Type: domain.NodeTypeErrorHandler},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateNode(tt.node)
			if len(errs) != len(tt.fields) {
				t.Fatalf("expected %d errors, got %d: %v", len(tt.fields), len(errs), errs)
			}
			for i, f := range tt.fields {
				if errs[i].Field != f {
					t.Errorf("error %d: expected field %s, got %s", i, f, errs[i].Field)
				}
				if errs[i].NodeID != tt.node.ID {
					t.Errorf("error %d: expected node %s, got %s", i, tt.node.ID, errs[i].NodeID)
				}
			}
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(DefaultCatalog(), engine.NewEvaluator())

	valid := domain.Graph{
		Nodes: []domain.Node{
			{ID: "t", Type: domain.NodeTypeTrigger, Data: map[string]any{"interval": 1000}},
			{ID: "o", Type: domain.NodeTypeOutput, Data: map[string]any{"target": "log"}},
		},
		Edges: []domain.Edge{{ID: "e1", Source: "t", Target: "o"}},
	}
	if err := v.Validate(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fieldErrs := domain.Graph{Nodes: []domain.Node{{ID: "o", Type: domain.NodeTypeOutput}}}
	err := v.Validate(fieldErrs)
	var list ValidationErrors
	if !errors.As(err, &list) || len(list) != 1 {
		t.Fatalf("expected one field error, got %v", err)
	}
	if !errors.Is(list[0], ErrRequiredField) {
		t.Errorf("expected ErrRequiredField, got %v", list[0])
	}

	cyclic := domain.Graph{
		Nodes: []domain.Node{
			{ID: "t", Type: domain.NodeTypeTrigger, Data: map[string]any{"interval": 1}},
			{ID: "a", Type: domain.NodeTypeCustom},
			{ID: "b", Type: domain.NodeTypeCustom},
		},
		Edges: []domain.Edge{{ID: "1", Source: "t", Target: "a"}, {ID: "2", Source: "a", Target: "b"}, {ID: "3", Source: "b", Target: "a"}},
	}
	if err := v.Validate(cyclic); !errors.Is(err, engine.ErrCyclicGraph) {
		t.Errorf("expected ErrCyclicGraph, got %v", err)
	}
}
