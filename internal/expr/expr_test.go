package expr

import (
	"strings"
	"testing"
)

func TestInterpolate(t *testing.T) {
	src := MapSource{
		"name":  "Ada",
		"count": 3.0,
		"done":  true,
		"user":  map[string]any{"email": "ada@example.com"},
	}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain variable", "Hello {name}", "Hello Ada"},
		{"number without decimal", "count is {count}", "count is 3"},
		{"bool", "done: {done}", "done: true"},
		{"dotted path", "mail {user.email}", "mail ada@example.com"},
		{"unresolved left intact", "Hello {missing}", "Hello {missing}"},
		{"multiple", "{name}/{count}", "Ada/3"},
		{"no placeholders", "just text", "just text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.in, src); got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	vars := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 7.0}},
		"s": "leaf",
	}
	if v, ok := ResolvePath(vars, "a.b.c"); !ok || v != 7.0 {
		t.Errorf("a.b.c = %v, %v", v, ok)
	}
	if _, ok := ResolvePath(vars, "a.b.missing"); ok {
		t.Error("missing leaf should not resolve")
	}
	if _, ok := ResolvePath(vars, "s.deeper"); ok {
		t.Error("walking through a non-map should not resolve")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "x", "x"},
		{"whole float", 5.0, "5"},
		{"fractional float", 2.5, "2.5"},
		{"int", 42, "42"},
		{"bool", false, "false"},
		{"map as json", map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEvalCondition(t *testing.T) {
	src := MapSource{
		"status": "active",
		"score":  7.5,
		"label":  "10",
		"flag":   true,
		"off":    false,
		"empty":  "",
	}
	tests := []struct {
		name string
		cond string
		want bool
	}{
		{"equals true", `{status} equals "active"`, true},
		{"equals false", `{status} equals "closed"`, false},
		{"equals unresolved path", `{nope} equals "x"`, false},
		{"equals numeric formatting", `{score} equals "7.5"`, true},
		{"greater than true", `{score} greater than 7`, true},
		{"greater than false", `{score} greater than 8`, false},
		{"greater than string number", `{label} greater than 9`, true},
		{"greater than non-numeric", `{status} greater than 1`, false},
		{"truthiness bool", `{flag}`, true},
		{"truthiness false bool", `{off}`, false},
		{"truthiness empty string", `{empty}`, false},
		{"truthiness nonempty string", `{status}`, true},
		{"truthiness unresolved", `{missing}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvalCondition(tt.cond, src); got != tt.want {
				t.Errorf("EvalCondition(%q) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestIsMathCall(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"add(1, 2)", true},
		{"  sum(1, 2, 3)  ", true},
		{"equals(1, 1)", true},
		{"frobnicate(1)", false},
		{"add", false},
		{"Summarize the report (draft)", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsMathCall(tt.in); got != tt.want {
			t.Errorf("IsMathCall(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEvalMath(t *testing.T) {
	src := MapSource{
		"x":    4.0,
		"y":    2.0,
		"word": "12",
		"list": map[string]any{"n": 3.0},
	}
	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"add", "add(1, 2)", 3},
		{"subtract", "subtract(5, 2)", 3},
		{"multiply", "multiply(3, 4)", 12},
		{"divide", "divide(10, 4)", 2.5},
		{"sum variadic", "sum(1, 2, 3, 4)", 10},
		{"avg", "avg(2, 4)", 3},
		{"min", "min(9, 3, 7)", 3},
		{"max", "max(9, 3, 7)", 9},
		{"increment", "increment(41)", 42},
		{"decrement", "decrement(1)", 0},
		{"round", "round(2.6)", 3},
		{"floor", "floor(2.9)", 2},
		{"ceil", "ceil(2.1)", 3},
		{"abs", "abs(-5)", 5},
		{"greater", "greater(2, 1)", 1},
		{"less", "less(2, 1)", 0},
		{"equals numbers", "equals(3, 3)", 1},
		{"equals strings", `equals("a", "b")`, 0},
		{"nested", "add(multiply(2, 3), 1)", 7},
		{"interpolated", "add({x}, {y})", 6},
		{"string coerced", "add({word}, 1)", 13},
		{"dotted path", "add({list.n}, 0)", 3},
		{"negative literal", "add(-2, 5)", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalMath(tt.expr, src)
			if err != nil {
				t.Fatalf("EvalMath(%q) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("EvalMath(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalMathErrors(t *testing.T) {
	src := MapSource{"name": "Ada"}
	tests := []struct {
		name string
		expr string
		frag string
	}{
		{"division by zero", "divide(1, 0)", "division by zero"},
		{"unknown function", "frobnicate(1)", "unknown function"},
		{"bare identifier", "foo", "unknown identifier"},
		{"wrong arity", "add(1)", "wrong argument count"},
		{"non-numeric argument", `add({name}, 1)`, "not numeric"},
		{"unresolved placeholder", "add({missing}, 1)", ""},
		{"trailing text", "add(1, 2) extra", "trailing"},
		{"unterminated call", "add(1, 2", "unterminated"},
		{"empty", "", "unexpected end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvalMath(tt.expr, src)
			if err == nil {
				t.Fatalf("EvalMath(%q) succeeded, want error", tt.expr)
			}
			if tt.frag != "" && !strings.Contains(err.Error(), tt.frag) {
				t.Errorf("error = %q, want fragment %q", err, tt.frag)
			}
		})
	}
}
