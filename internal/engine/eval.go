package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Имена переменных, доступных выражению.
const (
	VarInput = "input"
	VarData  = "data"
)

// DefaultMaxExpressionLength — ограничение длины выражения по умолчанию.
const DefaultMaxExpressionLength = 4096

// Bindings — значения переменных для одного вычисления.
type Bindings struct {
	// Input — вход узла (выход предыдущего узла или nil).
	Input any

	// Data — настройки узла.
	Data map[string]any
}

// Evaluator вычисляет пользовательские выражения в песочнице.
//
// Синтаксис — нативные выражения HCL: арифметика, сравнения, логические операторы,
// условный оператор, for-выражения, обращение к полям (input.x, data.limit).
// Видны только переменные input и data и функции из таблицы, переданной при создании.
// Между вызовами состояние не сохраняется, поэтому Evaluator безопасен
// для одновременного использования несколькими движками.
type Evaluator struct {
	functions map[string]function.Function
	maxLength int
}

// EvaluatorOption настраивает Evaluator.
type EvaluatorOption func(*Evaluator)

// WithFunctions заменяет таблицу разрешённых функций.
func WithFunctions(funcs map[string]function.Function) EvaluatorOption {
	return func(e *Evaluator) {
		e.functions = make(map[string]function.Function, len(funcs))
		for name, fn := range funcs {
			e.functions[name] = fn
		}
	}
}

// WithMaxExpressionLength задаёт максимальную длину выражения в байтах.
func WithMaxExpressionLength(n int) EvaluatorOption {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxLength = n
		}
	}
}

// NewEvaluator создаёт Evaluator с таблицей DefaultFunctions.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		functions: DefaultFunctions(),
		maxLength: DefaultMaxExpressionLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultFunctions возвращает новую таблицу разрешённых функций.
//
// Только чистые функции над числами, строками, коллекциями, JSON и датами.
// Функций с доступом к файлам, окружению или сети здесь нет.
// range не включён: он позволяет выделить неограниченную память одним вызовом.
func DefaultFunctions() map[string]function.Function {
	return map[string]function.Function{
		// числа
		"abs":      stdlib.AbsoluteFunc,
		"ceil":     stdlib.CeilFunc,
		"floor":    stdlib.FloorFunc,
		"max":      stdlib.MaxFunc,
		"min":      stdlib.MinFunc,
		"pow":      stdlib.PowFunc,
		"log":      stdlib.LogFunc,
		"signum":   stdlib.SignumFunc,
		"parseint": stdlib.ParseIntFunc,
		"int":      stdlib.IntFunc,

		// строки
		"upper":        stdlib.UpperFunc,
		"lower":        stdlib.LowerFunc,
		"title":        stdlib.TitleFunc,
		"trim":         stdlib.TrimFunc,
		"trimspace":    stdlib.TrimSpaceFunc,
		"trimprefix":   stdlib.TrimPrefixFunc,
		"trimsuffix":   stdlib.TrimSuffixFunc,
		"chomp":        stdlib.ChompFunc,
		"indent":       stdlib.IndentFunc,
		"substr":       stdlib.SubstrFunc,
		"strlen":       stdlib.StrlenFunc,
		"strrev":       stdlib.ReverseFunc,
		"replace":      stdlib.ReplaceFunc,
		"split":        stdlib.SplitFunc,
		"join":         stdlib.JoinFunc,
		"format":       stdlib.FormatFunc,
		"regex":        stdlib.RegexFunc,
		"regexall":     stdlib.RegexAllFunc,
		"regexreplace": stdlib.RegexReplaceFunc,

		// коллекции
		"concat":    stdlib.ConcatFunc,
		"length":    stdlib.LengthFunc,
		"keys":      stdlib.KeysFunc,
		"values":    stdlib.ValuesFunc,
		"merge":     stdlib.MergeFunc,
		"contains":  stdlib.ContainsFunc,
		"distinct":  stdlib.DistinctFunc,
		"flatten":   stdlib.FlattenFunc,
		"reverse":   stdlib.ReverseListFunc,
		"sort":      stdlib.SortFunc,
		"lookup":    stdlib.LookupFunc,
		"element":   stdlib.ElementFunc,
		"slice":     stdlib.SliceFunc,
		"zipmap":    stdlib.ZipmapFunc,
		"coalesce":  stdlib.CoalesceFunc,
		"compact":   stdlib.CompactFunc,
		"chunklist": stdlib.ChunklistFunc,
		"index":     stdlib.IndexFunc,
		"hasindex":  stdlib.HasIndexFunc,

		// JSON и даты
		"jsonencode": stdlib.JSONEncodeFunc,
		"jsondecode": stdlib.JSONDecodeFunc,
		"csvdecode":  stdlib.CSVDecodeFunc,
		"formatdate": stdlib.FormatDateFunc,
		"timeadd":    stdlib.TimeAddFunc,

		// преобразования типов
		"tostring": stdlib.MakeToFunc(cty.String),
		"tonumber": stdlib.MakeToFunc(cty.Number),
		"tobool":   stdlib.MakeToFunc(cty.Bool),
	}
}

// Functions возвращает отсортированные имена разрешённых функций.
func (e *Evaluator) Functions() []string {
	names := make([]string, 0, len(e.functions))
	for name := range e.functions {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

// Check разбирает выражение и проверяет, что оно ссылается только на input и data.
// Значения переменных не требуются, поэтому Check используется при валидации узлов.
func (e *Evaluator) Check(expr string) error {
	_, err := e.parse(expr)
	return err
}

// Evaluate вычисляет выражение с переменными input и data.
//
// Любая ошибка разбора, вычисления или паника внутри функции
// возвращается как *EvaluationError.
func (e *Evaluator) Evaluate(expr string, b Bindings) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &EvaluationError{Expr: expr, Cause: fmt.Sprintf("panic: %v", r)}
		}
	}()

	parsed, err := e.parse(expr)
	if err != nil {
		return nil, err
	}

	input, err := toCty(b.Input)
	if err != nil {
		return nil, &EvaluationError{Expr: expr, Cause: "input: " + err.Error()}
	}

	var data cty.Value
	if b.Data == nil {
		data = cty.EmptyObjectVal
	} else if data, err = toCty(b.Data); err != nil {
		return nil, &EvaluationError{Expr: expr, Cause: "data: " + err.Error()}
	}

	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			VarInput: input,
			VarData:  data,
		},
		Functions: e.functions,
	}

	val, diags := parsed.Value(ctx)
	if diags.HasErrors() {
		return nil, &EvaluationError{Expr: expr, Cause: diagnosticsCause(diags)}
	}

	out, err := fromCty(val)
	if err != nil {
		return nil, &EvaluationError{Expr: expr, Cause: err.Error()}
	}
	return out, nil
}

func (e *Evaluator) parse(expr string) (hclsyntax.Expression, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, &EvaluationError{Expr: expr, Cause: "empty expression"}
	}
	if len(expr) > e.maxLength {
		return nil, &EvaluationError{Expr: expr,
			Cause: fmt.Sprintf("expression exceeds %d bytes", e.maxLength)}
	}

	parsed, diags := hclsyntax.ParseExpression([]byte(expr), "expression", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, &EvaluationError{Expr: expr, Cause: diagnosticsCause(diags)}
	}

	for _, traversal := range parsed.Variables() {
		name := traversal.RootName()
		if name != VarInput && name != VarData {
			return nil, &EvaluationError{Expr: expr,
				Cause: fmt.Sprintf("undeclared identifier %q", name)}
		}
	}

	return parsed, nil
}

// diagnosticsCause собирает текст ошибок без позиций.
func diagnosticsCause(diags hcl.Diagnostics) string {
	parts := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += "; " + d.Detail
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// Truthy приводит результат выражения к bool по правилам редактора:
// nil, false, 0, NaN и пустая строка ложны, остальное истинно.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case int64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
