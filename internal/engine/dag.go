package engine

import (
	"sort"

	"github.com/shaiso/flowgraph/internal/domain"
)

// adjacency — индекс графа для обхода.
//
// Учитываются только связи между известными узлами.
// Повторные связи между одной парой сохраняются: каждая добавляет единицу к inDegree.
type adjacency struct {
	order      []string            // ID узлов в порядке добавления (без дубликатов)
	position   map[string]int      // ID → позиция в order
	successors map[string][]string // source → targets в порядке связей
	inDegree   map[string]int
	duplicate  string // первый повторившийся ID, "" если повторов нет
}

func buildAdjacency(nodes []domain.Node, edges []domain.Edge) *adjacency {
	a := &adjacency{
		order:      make([]string, 0, len(nodes)),
		position:   make(map[string]int, len(nodes)),
		successors: make(map[string][]string, len(nodes)),
		inDegree:   make(map[string]int, len(nodes)),
	}

	for _, n := range nodes {
		if _, seen := a.position[n.ID]; seen {
			if a.duplicate == "" {
				a.duplicate = n.ID
			}
			continue
		}
		a.position[n.ID] = len(a.order)
		a.order = append(a.order, n.ID)
		a.inDegree[n.ID] = 0
	}

	for _, e := range edges {
		_, okSource := a.position[e.Source]
		_, okTarget := a.position[e.Target]
		if !okSource || !okTarget {
			continue
		}
		a.successors[e.Source] = append(a.successors[e.Source], e.Target)
		a.inDegree[e.Target]++
	}

	return a
}

// TopologicalSort упорядочивает узлы алгоритмом Кана.
//
// Связи с неизвестными ID игнорируются. Узлы, одновременно получившие
// нулевую входящую степень, идут в порядке следования в nodes.
// При наличии цикла возвращает ErrCyclicGraph и никакого частичного порядка.
// Повторяющийся ID узла — ошибка ErrDuplicateNodeID (через *ValidationError).
func TopologicalSort(nodes []domain.Node, edges []domain.Edge) ([]domain.Node, error) {
	a := buildAdjacency(nodes, edges)
	if a.duplicate != "" {
		return nil, NewValidationError(a.duplicate, "id", "duplicate node ID", ErrDuplicateNodeID)
	}

	// Копируем inDegree, чтобы индекс оставался неизменным
	inDegree := make(map[string]int, len(a.inDegree))
	for id, d := range a.inDegree {
		inDegree[id] = d
	}

	queue := make([]string, 0, len(a.order))
	for _, id := range a.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(a.order))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		var ready []string
		for _, next := range a.successors[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.Slice(ready, func(i, j int) bool {
			return a.position[ready[i]] < a.position[ready[j]]
		})
		queue = append(queue, ready...)
	}

	if len(sorted) != len(a.order) {
		return nil, ErrCyclicGraph
	}

	byID := make(map[string]domain.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	result := make([]domain.Node, len(sorted))
	for i, id := range sorted {
		result[i] = byID[id]
	}
	return result, nil
}

// FindRootNodes возвращает узлы, в которые не ведёт ни одна связь.
func FindRootNodes(nodes []domain.Node, edges []domain.Edge) []domain.Node {
	targets := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		targets[e.Target] = struct{}{}
	}

	roots := make([]domain.Node, 0)
	for _, n := range nodes {
		if _, ok := targets[n.ID]; !ok {
			roots = append(roots, n)
		}
	}
	return roots
}

// Reachable возвращает множество ID, достижимых из roots по исходящим связям.
// Сами roots входят в множество.
func Reachable(roots []domain.Node, edges []domain.Edge) map[string]bool {
	successors := make(map[string][]string)
	for _, e := range edges {
		successors[e.Source] = append(successors[e.Source], e.Target)
	}

	visited := make(map[string]bool)
	stack := make([]string, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i].ID)
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		next := successors[id]
		for i := len(next) - 1; i >= 0; i-- {
			if !visited[next[i]] {
				stack = append(stack, next[i])
			}
		}
	}

	return visited
}

// IncomingSources возвращает источники входящих связей узла в порядке связей.
// Повторные связи дают повторные источники.
func IncomingSources(nodeID string, edges []domain.Edge) []string {
	var sources []string
	for _, e := range edges {
		if e.Target == nodeID {
			sources = append(sources, e.Source)
		}
	}
	return sources
}
