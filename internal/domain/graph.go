package domain

// NodeType — тип узла графа.
type NodeType string

const (
	NodeTypeTrigger      NodeType = "trigger"
	NodeTypeAPI          NodeType = "api"
	NodeTypeTransform    NodeType = "transform"
	NodeTypeDecision     NodeType = "decision"
	NodeTypeOutput       NodeType = "output"
	NodeTypeDelay        NodeType = "delay"
	NodeTypeLoop         NodeType = "loop"
	NodeTypeMerge        NodeType = "merge"
	NodeTypeErrorHandler NodeType = "errorHandler"
	NodeTypeCustom       NodeType = "custom"
)

// NodeTypes возвращает все известные типы узлов в порядке каталога.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeTrigger,
		NodeTypeAPI,
		NodeTypeTransform,
		NodeTypeDecision,
		NodeTypeOutput,
		NodeTypeDelay,
		NodeTypeLoop,
		NodeTypeMerge,
		NodeTypeErrorHandler,
		NodeTypeCustom,
	}
}

// Node — узел графа.
//
// Формат совпадает с документом редактора, поэтому ключи JSON в camelCase.
// Data содержит настройки, зависящие от типа (script, condition, duration и т.д.).
// На время симуляции узлы неизменяемы.
type Node struct {
	// ID — уникальный в пределах графа идентификатор.
	ID string `json:"id" yaml:"id"`

	// Type — тип узла.
	Type NodeType `json:"type" yaml:"type"`

	// Data — настройки узла.
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`

	// Position — координаты на холсте. Ядром не используются.
	Position *Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// Position — координаты узла на холсте.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// EdgeType — визуальный тип связи.
type EdgeType string

const (
	EdgeTypeDefault     EdgeType = "default"
	EdgeTypeConditional EdgeType = "conditional"
	EdgeTypeData        EdgeType = "data"
)

// Edge — направленная связь source → target.
//
// Несколько связей могут вести в один узел (merge) или выходить из одного (fan-out).
type Edge struct {
	ID           string   `json:"id" yaml:"id"`
	Source       string   `json:"source" yaml:"source"`
	Target       string   `json:"target" yaml:"target"`
	SourceHandle string   `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string   `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Type         EdgeType `json:"type,omitempty" yaml:"type,omitempty"`
	Label        string   `json:"label,omitempty" yaml:"label,omitempty"`
}

// Graph — набор узлов и связей.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// NodeByID возвращает узел по ID.
func (g Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
