// Package flowfile читает и пишет документ flow в формате редактора.
//
// Документ:
//
//	{
//	  "version": "1.0.0",
//	  "nodes": [...],
//	  "edges": [...],
//	  "viewport": {"x": 0, "y": 0, "zoom": 1}
//	}
//
// Поддерживаются JSON и YAML.
package flowfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shaiso/flowgraph/internal/domain"
	"gopkg.in/yaml.v3"
)

// Version — единственная поддерживаемая версия документа.
const Version = "1.0.0"

// Format — формат сериализации.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Ошибки flowfile.
var (
	ErrUnsupportedVersion = errors.New("unsupported flow document version")
	ErrUnsupportedFormat  = errors.New("unsupported flow document format")
	ErrMissingField       = errors.New("flow document field is required")
)

// Document — flow в формате редактора.
type Document struct {
	Version  string           `json:"version" yaml:"version"`
	Nodes    []domain.Node    `json:"nodes" yaml:"nodes"`
	Edges    []domain.Edge    `json:"edges" yaml:"edges"`
	Viewport *domain.Viewport `json:"viewport,omitempty" yaml:"viewport,omitempty"`
}

// New собирает документ из графа.
func New(g domain.Graph, viewport *domain.Viewport) *Document {
	nodes := g.Nodes
	if nodes == nil {
		nodes = []domain.Node{}
	}
	edges := g.Edges
	if edges == nil {
		edges = []domain.Edge{}
	}
	return &Document{
		Version:  Version,
		Nodes:    nodes,
		Edges:    edges,
		Viewport: viewport,
	}
}

// Graph возвращает граф документа.
func (d *Document) Graph() domain.Graph {
	return domain.Graph{Nodes: d.Nodes, Edges: d.Edges}
}

// ParseFormat разбирает имя формата ("json", "yaml", "yml").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatFromPath определяет формат по расширению файла. По умолчанию JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ContentType возвращает MIME-тип формата.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Export сериализует документ. Пустая версия заменяется на Version.
func Export(doc *Document, format Format) ([]byte, error) {
	out := *doc
	if out.Version == "" {
		out.Version = Version
	}
	if out.Nodes == nil {
		out.Nodes = []domain.Node{}
	}
	if out.Edges == nil {
		out.Edges = []domain.Edge{}
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(data, '\n'), nil

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// rawDocument различает отсутствующие поля и пустые списки.
type rawDocument struct {
	Version  *string          `json:"version" yaml:"version"`
	Nodes    *[]domain.Node   `json:"nodes" yaml:"nodes"`
	Edges    *[]domain.Edge   `json:"edges" yaml:"edges"`
	Viewport *domain.Viewport `json:"viewport" yaml:"viewport"`
}

// Import разбирает документ.
//
// version, nodes и edges обязательны; viewport — нет.
// Версия, отличная от Version, отклоняется с ErrUnsupportedVersion.
func Import(data []byte, format Format) (*Document, error) {
	var raw rawDocument

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	switch {
	case raw.Version == nil:
		return nil, fmt.Errorf("%w: version", ErrMissingField)
	case raw.Nodes == nil:
		return nil, fmt.Errorf("%w: nodes", ErrMissingField)
	case raw.Edges == nil:
		return nil, fmt.Errorf("%w: edges", ErrMissingField)
	}

	if *raw.Version != Version {
		return nil, fmt.Errorf("%w: %q (expected %s)", ErrUnsupportedVersion, *raw.Version, Version)
	}

	return &Document{
		Version:  *raw.Version,
		Nodes:    *raw.Nodes,
		Edges:    *raw.Edges,
		Viewport: raw.Viewport,
	}, nil
}
