package flowfile

import (
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/flowgraph/internal/domain"
)

func sampleDocument() *Document {
	return New(domain.Graph{
		Nodes: []domain.Node{
			{ID: "1", Type: domain.NodeTypeTrigger, Data: map[string]any{"interval": 1000}, Position: &domain.Position{X: 10, Y: 20}},
			{ID: "2", Type: domain.NodeTypeOutput, Data: map[string]any{"target": "log"}},
		},
		Edges: []domain.Edge{{ID: "e1", Source: "1", Target: "2", SourceHandle: "out"}},
	}, &domain.Viewport{X: 5, Y: 6, Zoom: 1.5})
}

func TestExportImport(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := Export(sampleDocument(), format)
			if err != nil {
				t.Fatalf("export: %v", err)
			}

			doc, err := Import(data, format)
			if err != nil {
				t.Fatalf("import: %v", err)
			}

			if doc.Version != Version {
				t.Errorf("expected version %s, got %s", Version, doc.Version)
			}
			if len(doc.Nodes) != 2 || len(doc.Edges) != 1 {
				t.Fatalf("unexpected graph: %+v", doc)
			}
			if doc.Nodes[0].Position == nil || doc.Nodes[0].Position.Y != 20 {
				t.Errorf("position lost: %+v", doc.Nodes[0].Position)
			}
			if doc.Edges[0].SourceHandle != "out" {
				t.Errorf("source handle lost: %+v", doc.Edges[0])
			}
			if doc.Viewport == nil || doc.Viewport.Zoom != 1.5 {
				t.Errorf("viewport lost: %+v", doc.Viewport)
			}
			if doc.Nodes[1].Data["target"] != "log" {
				t.Errorf("data lost: %+v", doc.Nodes[1].Data)
			}
		})
	}
}

func TestExport_EmptyGraph(t *testing.T) {
	data, err := Export(&Document{}, FormatJSON)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"version": "1.0.0"`) {
		t.Errorf("expected default version, got %s", s)
	}
	if !strings.Contains(s, `"nodes": []`) || !strings.Contains(s, `"edges": []`) {
		t.Errorf("expected empty lists, got %s", s)
	}
	if strings.Contains(s, "viewport") {
		t.Errorf("expected viewport omitted, got %s", s)
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
		want   error
	}{
		{"missing version", `{"nodes": [], "edges": []}`, FormatJSON, ErrMissingField},
		{"missing nodes", `{"version": "1.0.0", "edges": []}`, FormatJSON, ErrMissingField},
		{"missing edges", "version: 1.0.0\nnodes: []\n", FormatYAML, ErrMissingField},
		{"wrong version", `{"version": "2.0.0", "nodes": [], "edges": []}`, FormatJSON, ErrUnsupportedVersion},
		{"unknown format", `{}`, Format("toml"), ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import([]byte(tt.data), tt.format)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestImport_ViewportOptional(t *testing.T) {
	doc, err := Import([]byte(`{"version":"1.0.0","nodes":[{"id":"1","type":"trigger"}],"edges":[]}`), FormatJSON)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if doc.Viewport != nil {
		t.Errorf("expected nil viewport, got %+v", doc.Viewport)
	}
	if g := doc.Graph(); len(g.Nodes) != 1 || g.Nodes[0].Type != domain.NodeTypeTrigger {
		t.Errorf("unexpected graph: %+v", g)
	}
}

func TestImport_Malformed(t *testing.T) {
	if _, err := Import([]byte(`{"version":`), FormatJSON); err == nil {
		t.Error("expected json error")
	}
	if _, err := Import([]byte("nodes: [\n"), FormatYAML); err == nil {
		t.Error("expected yaml error")
	}
}

func TestFormats(t *testing.T) {
	paths := map[string]Format{
		"flow.json":  FormatJSON,
		"flow.yaml":  FormatYAML,
		"flow.YML":   FormatYAML,
		"flow":       FormatJSON,
		"dir/x.json": FormatJSON,
	}
	for path, want := range paths {
		if got := FormatFromPath(path); got != want {
			t.Errorf("%s: expected %s, got %s", path, want, got)
		}
	}

	if f, err := ParseFormat("YAML"); err != nil || f != FormatYAML {
		t.Errorf("expected yaml, got %s (%v)", f, err)
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
	if FormatYAML.ContentType() != "application/yaml" || FormatJSON.ContentType() != "application/json" {
		t.Error("unexpected content types")
	}
}
