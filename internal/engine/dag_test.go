package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/flowgraph/internal/domain"
)

func nodesOf(ids ...string) []domain.Node {
	nodes := make([]domain.Node, len(ids))
	for i, id := range ids {
		nodes[i] = domain.Node{ID: id, Type: domain.NodeTypeCustom}
	}
	return nodes
}

func edge(source, target string) domain.Edge {
	return domain.Edge{ID: source + "-" + target, Source: source, Target: target}
}

func idsOf(nodes []domain.Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func indexOf(order []domain.Node) map[string]int {
	idx := make(map[string]int, len(order))
	for i, n := range order {
		idx[n.ID] = i
	}
	return idx
}

func TestTopologicalSort_RespectsEdges(t *testing.T) {
	tests := []struct {
		name  string
		nodes []domain.Node
		edges []domain.Edge
	}{
		{"chain", nodesOf("A", "B", "C"), []domain.Edge{edge("A", "B"), edge("B", "C")}},
		{"reversed insertion", nodesOf("C", "B", "A"), []domain.Edge{edge("A", "B"), edge("B", "C")}},
		{"diamond", nodesOf("A", "B", "C", "D"), []domain.Edge{
			edge("A", "B"), edge("A", "C"), edge("B", "D"), edge("C", "D"),
		}},
		{"multi-edge", nodesOf("A", "B"), []domain.Edge{edge("A", "B"), edge("A", "B")}},
		{"disconnected", nodesOf("A", "B", "X", "Y"), []domain.Edge{edge("A", "B"), edge("X", "Y")}},
		{"no edges", nodesOf("A", "B", "C"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := TopologicalSort(tt.nodes, tt.edges)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(order) != len(tt.nodes) {
				t.Fatalf("expected %d nodes, got %d", len(tt.nodes), len(order))
			}

			idx := indexOf(order)
			for _, n := range tt.nodes {
				if _, ok := idx[n.ID]; !ok {
					t.Errorf("node %s missing from order", n.ID)
				}
			}
			for _, e := range tt.edges {
				if idx[e.Source] >= idx[e.Target] {
					t.Errorf("edge %s→%s violated: %v", e.Source, e.Target, idsOf(order))
				}
			}
		})
	}
}

func TestTopologicalSort_StableTies(t *testing.T) {
	// A → C, A → B: B и C освобождаются одновременно и идут в порядке nodes
	nodes := nodesOf("A", "B", "C", "D")
	edges := []domain.Edge{edge("A", "C"), edge("A", "B")}

	order, err := TopologicalSort(nodes, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := idsOf(order)
	want := []string{"A", "D", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	again, _ := TopologicalSort(nodes, edges)
	for i := range order {
		if again[i].ID != order[i].ID {
			t.Fatalf("order is not deterministic: %v vs %v", idsOf(order), idsOf(again))
		}
	}
}

func TestTopologicalSort_IgnoresUnknownEndpoints(t *testing.T) {
	nodes := nodesOf("A", "B")
	edges := []domain.Edge{edge("A", "B"), edge("ghost", "A"), edge("B", "ghost")}

	order, err := TopologicalSort(nodes, edges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := idsOf(order); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("expected [A B], got %v", got)
	}
}

func TestTopologicalSort_DuplicateIDs(t *testing.T) {
	// Без проверки повтор "B" схлопнулся бы и граф казался бы ацикличным
	nodes := nodesOf("A", "B", "B", "C")
	edges := []domain.Edge{edge("A", "B"), edge("B", "C")}

	order, err := TopologicalSort(nodes, edges)
	if !errors.Is(err, ErrDuplicateNodeID) {
		t.Fatalf("expected ErrDuplicateNodeID, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.NodeID != "B" {
		t.Errorf("expected validation error for node B, got %v", err)
	}
	if order != nil {
		t.Errorf("expected no order, got %v", idsOf(order))
	}
}

func TestTopologicalSort_Cycle(t *testing.T) {
	tests := []struct {
		name  string
		nodes []domain.Node
		edges []domain.Edge
	}{
		{"two nodes", nodesOf("A", "B"), []domain.Edge{edge("A", "B"), edge("B", "A")}},
		{"tail cycle", nodesOf("A", "B", "C"), []domain.Edge{edge("A", "B"), edge("B", "C"), edge("C", "B")}},
		{"self loop", nodesOf("A", "B"), []domain.Edge{edge("A", "B"), edge("B", "B")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := TopologicalSort(tt.nodes, tt.edges)
			if !errors.Is(err, ErrCyclicGraph) {
				t.Fatalf("expected ErrCyclicGraph, got %v", err)
			}
			if order != nil {
				t.Errorf("expected no partial order, got %v", idsOf(order))
			}
		})
	}
}

func TestFindRootNodes(t *testing.T) {
	roots := FindRootNodes(nodesOf("A", "B", "C"), []domain.Edge{edge("A", "B"), edge("B", "C")})
	if len(roots) != 1 || roots[0].ID != "A" {
		t.Errorf("expected [A], got %v", idsOf(roots))
	}

	roots = FindRootNodes(nodesOf("A", "B", "X"), []domain.Edge{edge("A", "B")})
	if got := idsOf(roots); len(got) != 2 || got[0] != "A" || got[1] != "X" {
		t.Errorf("expected [A X], got %v", got)
	}

	roots = FindRootNodes(nodesOf("A", "B"), []domain.Edge{edge("A", "B"), edge("B", "A")})
	if len(roots) != 0 {
		t.Errorf("expected no roots, got %v", idsOf(roots))
	}
}

func TestReachable(t *testing.T) {
	edges := []domain.Edge{edge("A", "B"), edge("B", "C"), edge("X", "Y")}
	reach := Reachable(nodesOf("A"), edges)

	for _, id := range []string{"A", "B", "C"} {
		if !reach[id] {
			t.Errorf("expected %s to be reachable", id)
		}
	}
	for _, id := range []string{"X", "Y"} {
		if reach[id] {
			t.Errorf("expected %s to be unreachable", id)
		}
	}
}

func TestIncomingSources(t *testing.T) {
	edges := []domain.Edge{edge("B", "M"), edge("A", "M"), edge("A", "X")}
	got := IncomingSources("M", edges)
	if len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Errorf("expected [B A], got %v", got)
	}
}
