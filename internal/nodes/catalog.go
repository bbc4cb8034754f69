package nodes

import (
	"github.com/shaiso/flowgraph/internal/domain"
)

// Category — группа типов в палитре редактора.
type Category string

const (
	CategoryTrigger Category = "trigger"
	CategoryAction  Category = "action"
	CategoryLogic   Category = "logic"
)

// FieldKind — вид поля настроек.
type FieldKind string

const (
	FieldNumber  FieldKind = "number"
	FieldText    FieldKind = "text"
	FieldURL     FieldKind = "url"
	FieldSelect  FieldKind = "select"
	FieldJSON    FieldKind = "json"
	FieldCode    FieldKind = "code" // выражение для песочницы
	FieldBoolean FieldKind = "boolean"
	FieldCron    FieldKind = "cron"
)

// Option — допустимое значение select-поля.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field — описание одного ключа data.
type Field struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Required    bool      `json:"required,omitempty"`
	Default     any       `json:"default,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []Option  `json:"options,omitempty"`
}

// Handle — точка подключения связи.
type Handle struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// TypeSpec — описание типа узла.
type TypeSpec struct {
	Type        domain.NodeType `json:"type"`
	Label       string          `json:"label"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Inputs      []Handle        `json:"inputs"`
	Outputs     []Handle        `json:"outputs"`
	Fields      []Field         `json:"fields"`
}

// Catalog — таблица типов узлов.
//
// Передаётся явно туда, где нужна (валидация, API). Изменения одного каталога
// не видны другим.
type Catalog struct {
	order []domain.NodeType
	specs map[domain.NodeType]TypeSpec
}

// NewCatalog создаёт каталог из описаний. Повторный тип заменяет предыдущий.
func NewCatalog(specs ...TypeSpec) *Catalog {
	c := &Catalog{specs: make(map[domain.NodeType]TypeSpec, len(specs))}
	for _, s := range specs {
		c.Add(s)
	}
	return c
}

// Add добавляет или заменяет тип.
func (c *Catalog) Add(s TypeSpec) {
	if _, exists := c.specs[s.Type]; !exists {
		c.order = append(c.order, s.Type)
	}
	c.specs[s.Type] = s
}

// Get возвращает описание типа.
func (c *Catalog) Get(t domain.NodeType) (TypeSpec, bool) {
	s, ok := c.specs[t]
	return s, ok
}

// Has реализует engine.TypeSet.
func (c *Catalog) Has(t domain.NodeType) bool {
	_, ok := c.specs[t]
	return ok
}

// All возвращает описания в порядке добавления.
func (c *Catalog) All() []TypeSpec {
	out := make([]TypeSpec, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.specs[t])
	}
	return out
}

// ByCategory возвращает описания одной категории.
func (c *Catalog) ByCategory(cat Category) []TypeSpec {
	var out []TypeSpec
	for _, s := range c.All() {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	return out
}

// Defaults возвращает значения по умолчанию для нового узла типа t.
func (c *Catalog) Defaults(t domain.NodeType) map[string]any {
	s, ok := c.specs[t]
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any)
	for _, f := range s.Fields {
		if f.Default != nil {
			out[f.Key] = f.Default
		}
	}
	return out
}

var (
	handleIn  = []Handle{{ID: "in", Label: "Input"}}
	handleOut = []Handle{{ID: "out", Label: "Output"}}
)

// DefaultCatalog возвращает новый каталог со стандартными типами.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		TypeSpec{
			Type: domain.NodeTypeTrigger, Label: "Timer Trigger", Category: CategoryTrigger,
			Description: "Starts flow on a timer interval",
			Inputs:      []Handle{}, Outputs: handleOut,
			Fields: []Field{
				{Key: "interval", Label: "Interval (ms)", Kind: FieldNumber, Required: true, Default: DefaultTriggerInterval},
				{Key: "payload", Label: "Payload Schema", Kind: FieldJSON, Default: map[string]any{}},
				{Key: "schedule", Label: "Schedule (cron)", Kind: FieldCron, Placeholder: "*/5 * * * *"},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeAPI, Label: "API Call", Category: CategoryAction,
			Description: "Fetches data from an external API",
			Inputs:      handleIn, Outputs: handleOut,
			Fields: []Field{
				{Key: "url", Label: "URL", Kind: FieldURL, Required: true, Placeholder: "https://api.example.com"},
				{Key: "method", Label: "Method", Kind: FieldSelect, Required: true, Default: DefaultAPIMethod, Options: []Option{
					{"GET", "GET"}, {"POST", "POST"}, {"PUT", "PUT"}, {"DELETE", "DELETE"},
				}},
				{Key: "headers", Label: "Headers", Kind: FieldJSON, Default: map[string]any{}},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeTransform, Label: "Transform", Category: CategoryLogic,
			Description: "Manipulates data using expressions",
			Inputs:      handleIn, Outputs: handleOut,
			Fields: []Field{
				{Key: "script", Label: "Script", Kind: FieldCode, Required: true, Placeholder: "input"},
				{Key: "inputSchema", Label: "Input Schema", Kind: FieldJSON, Default: map[string]any{}},
				{Key: "outputSchema", Label: "Output Schema", Kind: FieldJSON, Default: map[string]any{}},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeDecision, Label: "Decision", Category: CategoryLogic,
			Description: "Branches flow based on conditions",
			Inputs:      handleIn,
			Outputs:     []Handle{{ID: "true", Label: "True"}, {ID: "false", Label: "False"}},
			Fields: []Field{
				{Key: "condition", Label: "Condition", Kind: FieldCode, Required: true, Placeholder: "input.value > 10"},
				{Key: "branches", Label: "Branches", Kind: FieldJSON, Default: []any{"true", "false"}},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeOutput, Label: "Output", Category: CategoryAction,
			Description: "Sends results to a target",
			Inputs:      handleIn, Outputs: []Handle{},
			Fields: []Field{
				{Key: "target", Label: "Target", Kind: FieldSelect, Required: true, Options: []Option{
					{"email", "Email"}, {"database", "Database"}, {"log", "Log"},
				}},
				{Key: "format", Label: "Format", Kind: FieldSelect, Default: DefaultOutputFormat, Options: []Option{
					{"json", "JSON"}, {"csv", "CSV"},
				}},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeDelay, Label: "Delay", Category: CategoryLogic,
			Description: "Pauses execution for a specified duration",
			Inputs:      handleIn, Outputs: handleOut,
			Fields: []Field{
				{Key: "duration", Label: "Duration (seconds)", Kind: FieldNumber, Required: true, Default: 1},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeLoop, Label: "Loop", Category: CategoryLogic,
			Description: "Repeats a sub-flow",
			Inputs:      handleIn,
			Outputs:     []Handle{{ID: "out", Label: "Output"}, {ID: "done", Label: "Done"}},
			Fields: []Field{
				{Key: "maxIterations", Label: "Max Iterations", Kind: FieldNumber, Required: true, Default: DefaultMaxIterations},
				{Key: "condition", Label: "Condition", Kind: FieldText, Placeholder: "i < maxIterations"},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeMerge, Label: "Merge", Category: CategoryLogic,
			Description: "Combines multiple inputs",
			Inputs:      []Handle{{ID: "in1", Label: "Input 1"}, {ID: "in2", Label: "Input 2"}},
			Outputs:     handleOut,
			Fields: []Field{
				{Key: "mergeType", Label: "Merge Type", Kind: FieldSelect, Required: true, Default: DefaultMergeType, Options: []Option{
					{"union", "Union"}, {"intersect", "Intersect"},
				}},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeErrorHandler, Label: "Error Handler", Category: CategoryLogic,
			Description: "Catches and logs errors",
			Inputs:      handleIn,
			Outputs:     []Handle{{ID: "out", Label: "Output"}, {ID: "error", Label: "Error"}},
			Fields: []Field{
				{Key: "retryCount", Label: "Retry Count", Kind: FieldNumber, Default: DefaultRetryCount},
				{Key: "notification", Label: "Notification", Kind: FieldText, Placeholder: "Error occurred"},
			},
		},
		TypeSpec{
			Type: domain.NodeTypeCustom, Label: "Custom", Category: CategoryAction,
			Description: "User-defined placeholder node",
			Inputs:      handleIn, Outputs: handleOut,
			Fields: []Field{
				{Key: "customFields", Label: "Custom Fields", Kind: FieldJSON, Default: map[string]any{}},
			},
		},
	)
}
