package engine

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestEvaluate_Arithmetic(t *testing.T) {
	ev := NewEvaluator()

	got, err := ev.Evaluate("input.x + 1", Bindings{Input: map[string]any{"x": 5}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 6.0 {
		t.Errorf("expected 6, got %v (%T)", got, got)
	}
}

func TestEvaluate_Comparison(t *testing.T) {
	ev := NewEvaluator()

	tests := []struct {
		input map[string]any
		want  bool
	}{
		{map[string]any{"value": 20}, true},
		{map[string]any{"value": 5}, false},
	}

	for _, tt := range tests {
		got, err := ev.Evaluate("input.value > 10", Bindings{Input: tt.input})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("input %v: expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestEvaluate_DataAndFunctions(t *testing.T) {
	ev := NewEvaluator()
	b := Bindings{
		Input: map[string]any{"name": "ada", "items": []any{3, 1, 2}},
		Data:  map[string]any{"prefix": "user-"},
	}

	tests := []struct {
		expr string
		want any
	}{
		{`"${data.prefix}${upper(input.name)}"`, "user-ADA"},
		{"length(input.items)", 3.0},
		{"max(input.items...)", 3.0},
		{`jsonencode({a = 1})`, `{"a":1}`},
		{`input.name == "ada" ? "yes" : "no"`, "yes"},
	}

	for _, tt := range tests {
		got, err := ev.Evaluate(tt.expr, b)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.expr, tt.want, got)
		}
	}
}

func TestEvaluate_Collections(t *testing.T) {
	ev := NewEvaluator()

	got, err := ev.Evaluate("{ total = input.a + input.b, tags = [\"x\", \"y\"] }",
		Bindings{Input: map[string]any{"a": 1, "b": 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["total"] != 3.0 {
		t.Errorf("expected total 3, got %v", m["total"])
	}
	tags, ok := m["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "x" {
		t.Errorf("unexpected tags: %v", m["tags"])
	}
}

func TestEvaluate_ForExpressionLocals(t *testing.T) {
	ev := NewEvaluator()

	got, err := ev.Evaluate("[for v in input : v * 2]", Bindings{Input: []any{1, 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := got.([]any)
	if !ok || len(list) != 2 || list[1] != 4.0 {
		t.Errorf("unexpected result: %v", got)
	}
}

func TestEvaluate_NilInput(t *testing.T) {
	ev := NewEvaluator()

	got, err := ev.Evaluate("input == null", Bindings{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != true {
		t.Errorf("expected true, got %v", got)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	ev := NewEvaluator(WithMaxExpressionLength(64))

	tests := []struct {
		name string
		expr string
	}{
		{"syntax", "input."},
		{"empty", "   "},
		{"missing attribute", "input.missing"},
		{"type mismatch", `input.x + "a"`},
		{"unknown function", "file(\"/etc/passwd\")"},
		{"too long", strings.Repeat("1+", 40) + "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ev.Evaluate(tt.expr, Bindings{Input: map[string]any{"x": 1}})
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrEvaluation) {
				t.Errorf("expected ErrEvaluation, got %v", err)
			}
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) || evalErr.Cause == "" {
				t.Errorf("expected EvaluationError with cause, got %v", err)
			}
		})
	}
}

func TestEvaluate_NoAmbientScope(t *testing.T) {
	ev := NewEvaluator()
	os.Setenv("FLOWGRAPH_SECRET", "leak")
	defer os.Unsetenv("FLOWGRAPH_SECRET")

	for _, expr := range []string{"FLOWGRAPH_SECRET", "env.FLOWGRAPH_SECRET", "process", "path.root", "self"} {
		if _, err := ev.Evaluate(expr, Bindings{Input: 1}); err == nil {
			t.Errorf("%s: expected undeclared identifier error", expr)
		}
	}
}

func TestEvaluate_CustomFunctionTable(t *testing.T) {
	ev := NewEvaluator(WithFunctions(nil))

	if _, err := ev.Evaluate("upper(\"a\")", Bindings{}); err == nil {
		t.Error("expected error: upper is not in the table")
	}
	if len(ev.Functions()) != 0 {
		t.Errorf("expected empty table, got %v", ev.Functions())
	}
}

func TestCheck(t *testing.T) {
	ev := NewEvaluator()

	if err := ev.Check("input.value > 10"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ev.Check("other.value"); err == nil {
		t.Error("expected error for undeclared identifier")
	}
	if err := ev.Check("input."); err == nil {
		t.Error("expected syntax error")
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	ev := NewEvaluator()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			got, err := ev.Evaluate("input.n * 2", Bindings{Input: map[string]any{"n": n}})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if got != float64(n*2) {
				t.Errorf("expected %d, got %v", n*2, got)
			}
		}(i)
	}
	wg.Wait()
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{0.0, false},
		{2.5, true},
		{"", false},
		{"no", true},
		{map[string]any{}, true},
		{[]any{}, true},
	}

	for _, tt := range tests {
		if got := Truthy(tt.in); got != tt.want {
			t.Errorf("Truthy(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
