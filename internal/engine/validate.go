package engine

import (
	"fmt"

	"github.com/shaiso/flowgraph/internal/domain"
)

// TypeSet сообщает, известен ли тип узла.
// Реализуется каталогом типов узлов.
type TypeSet interface {
	Has(t domain.NodeType) bool
}

// Validate проверяет структуру графа на стороне редактора.
//
// Проверяет:
//   - наличие узлов
//   - непустые и уникальные ID узлов
//   - известность типов (если types не nil)
//   - что связи ссылаются на существующие узлы и не замкнуты на себя
//   - отсутствие циклов
//
// Возвращает первую найденную ошибку.
func Validate(g domain.Graph, types TypeSet) error {
	if len(g.Nodes) == 0 {
		return ErrEmptyGraph
	}

	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return NewValidationError("", "id", "node has empty ID", ErrEmptyNodeID)
		}
		if ids[n.ID] {
			return NewValidationError(n.ID, "id", "duplicate node ID", ErrDuplicateNodeID)
		}
		ids[n.ID] = true

		if types != nil && !types.Has(n.Type) {
			return NewValidationError(n.ID, "type",
				fmt.Sprintf("unknown node type: %s", n.Type), ErrUnknownNodeType)
		}
	}

	for _, e := range g.Edges {
		if !ids[e.Source] {
			return &ValidationError{EdgeID: e.ID, Field: "source",
				Message: fmt.Sprintf("unknown source node: %s", e.Source), Err: ErrUnknownEndpoint}
		}
		if !ids[e.Target] {
			return &ValidationError{EdgeID: e.ID, Field: "target",
				Message: fmt.Sprintf("unknown target node: %s", e.Target), Err: ErrUnknownEndpoint}
		}
		if e.Source == e.Target {
			return &ValidationError{EdgeID: e.ID, Field: "target",
				Message: "edge connects node to itself", Err: ErrSelfLoop}
		}
	}

	if len(FindRootNodes(g.Nodes, g.Edges)) == 0 {
		return ErrNoRootNodes
	}

	if _, err := TopologicalSort(g.Nodes, g.Edges); err != nil {
		return err
	}

	return nil
}
