package lang

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseHeaderAndParams(t *testing.T) {
	wf := Parse(`Workflow "Signup" with email, plan
Step 1: Ask for a greeting
Return email`)
	if wf.Name != "Signup" {
		t.Errorf("name = %q, want Signup", wf.Name)
	}
	if !reflect.DeepEqual(wf.Params, []string{"email", "plan"}) {
		t.Errorf("params = %v", wf.Params)
	}
	if len(wf.Steps) != 1 || wf.Steps[0].Kind != KindAction {
		t.Fatalf("steps = %+v", wf.Steps)
	}
	if wf.Steps[0].Action != "Ask for a greeting" {
		t.Errorf("action = %q", wf.Steps[0].Action)
	}
}

func TestParseCapabilityBlock(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{
			"bulleted lines",
			"Allow resolvers:\n- alpha\n- beta\nWorkflow \"T\"",
			[]string{"alpha", "beta"},
		},
		{
			"inline first entry",
			"Allow resolvers: - alpha\nWorkflow \"T\"",
			[]string{"alpha"},
		},
		{
			"indented lines",
			"Allow resolvers:\n  alpha\n  beta\nWorkflow \"T\"",
			[]string{"alpha", "beta"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := Parse(tt.source)
			if !reflect.DeepEqual(wf.Capabilities, tt.want) {
				t.Errorf("capabilities = %v, want %v", wf.Capabilities, tt.want)
			}
		})
	}
}

func TestParseArithmeticSentences(t *testing.T) {
	tests := []struct {
		line     string
		wantExpr string
		wantSave string
	}{
		{"Add {x} and {y} Save as sum", "add({x}, {y})", "sum"},
		{"Subtract {x} from {y} Save as diff", "subtract({y}, {x})", "diff"},
		{"Multiply {x} by {y} Save as prod", "multiply({x}, {y})", "prod"},
		{"Divide {x} by {y} Save as quot", "divide({x}, {y})", "quot"},
		{"Add 2 and 3 Save as five", "add(2, 3)", "five"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			wf := Parse(tt.line)
			if len(wf.Steps) != 1 {
				t.Fatalf("steps = %+v", wf.Steps)
			}
			st := wf.Steps[0]
			if st.Kind != KindCalculate {
				t.Fatalf("kind = %v, want calculate", st.Kind)
			}
			if st.Expr != tt.wantExpr {
				t.Errorf("expr = %q, want %q", st.Expr, tt.wantExpr)
			}
			if st.SaveAs != tt.wantSave {
				t.Errorf("saveAs = %q, want %q", st.SaveAs, tt.wantSave)
			}
		})
	}
}

func TestArithmeticInsideNumberedStep(t *testing.T) {
	wf := Parse("Step 1: Add {x} and {y} Save as sum")
	if len(wf.Steps) != 1 || wf.Steps[0].Kind != KindCalculate {
		t.Fatalf("steps = %+v", wf.Steps)
	}
	if wf.Steps[0].Expr != "add({x}, {y})" || wf.Steps[0].SaveAs != "sum" {
		t.Errorf("step = %+v", wf.Steps[0])
	}
}

func TestInlineSaveOnActionStep(t *testing.T) {
	wf := Parse("Step 1: Ask something Save as r")
	if len(wf.Steps) != 1 || wf.Steps[0].Kind != KindAction {
		t.Fatalf("steps = %+v", wf.Steps)
	}
	if wf.Steps[0].Action != "Ask something" || wf.Steps[0].SaveAs != "r" {
		t.Errorf("step = %+v", wf.Steps[0])
	}
}

func TestMathAutoInjection(t *testing.T) {
	wf := Parse(`Workflow "T" with x, y
Step 1: Add {x} and {y} Save as sum
Return sum`)
	if !wf.Allowed(MathCapability) {
		t.Fatalf("math capability should be auto-injected, got %v", wf.Capabilities)
	}
	count := 0
	for _, w := range wf.Warnings {
		if strings.Contains(w, "auto-injected") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("auto-injection warnings = %d, want exactly 1", count)
	}
}

func TestMathNotInjectedTwice(t *testing.T) {
	wf := Parse(`Allow resolvers:
- math
Workflow "T"
Add 1 and 2 Save as three
Return three`)
	if !reflect.DeepEqual(wf.Capabilities, []string{"math"}) {
		t.Errorf("capabilities = %v, want [math]", wf.Capabilities)
	}
	for _, w := range wf.Warnings {
		if strings.Contains(w, "auto-injected") {
			t.Errorf("unexpected auto-injection warning: %q", w)
		}
	}
}

func TestRestrictedModeWarning(t *testing.T) {
	wf := Parse(`Workflow "T"
Step 1: Do a thing
Return x`)
	found := false
	for _, w := range wf.Warnings {
		if strings.Contains(w, "restricted capability mode") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing restricted-mode warning, got %v", wf.Warnings)
	}
}

func TestSaveAsAttachesToPrecedingStep(t *testing.T) {
	wf := Parse(`Step 1: Ask something
Save as answer`)
	if len(wf.Steps) != 1 {
		t.Fatalf("steps = %+v", wf.Steps)
	}
	if wf.Steps[0].SaveAs != "answer" {
		t.Errorf("saveAs = %q, want answer", wf.Steps[0].SaveAs)
	}
}

func TestConstraintCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  any
	}{
		{"list", `[a, "b", c]`, []string{"a", "b", "c"}},
		{"empty list", `[]`, []string{}},
		{"number", `42.5`, 42.5},
		{"negative number", `-3`, float64(-3)},
		{"quoted string", `"hello world"`, "hello world"},
		{"bare token", `fast`, "fast"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := Parse("Step 1: Do it\nConstraint: mode = " + tt.value)
			got := wf.Steps[0].Constraints["mode"]
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("coerced = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseConditionalBlock(t *testing.T) {
	wf := Parse(`Workflow "T"
If {status} equals "active" then
Step 1: Notify the team
Save as note
End If
Return note`)
	if len(wf.Steps) != 1 {
		t.Fatalf("steps = %+v", wf.Steps)
	}
	st := wf.Steps[0]
	if st.Kind != KindIf {
		t.Fatalf("kind = %v, want if", st.Kind)
	}
	if st.Condition != `{status} equals "active"` {
		t.Errorf("condition = %q", st.Condition)
	}
	if len(st.Body) != 1 || st.Body[0].SaveAs != "note" {
		t.Errorf("body = %+v", st.Body)
	}
}

func TestParseParallelBlock(t *testing.T) {
	wf := Parse(`Run in parallel
Step 1: Fetch invoices
Save as invoices
Step 2: Fetch contacts
Save as contacts
End`)
	if len(wf.Steps) != 1 || wf.Steps[0].Kind != KindParallel {
		t.Fatalf("steps = %+v", wf.Steps)
	}
	if len(wf.Steps[0].Body) != 2 {
		t.Errorf("body = %+v", wf.Steps[0].Body)
	}
}

func TestParseNestedBlocks(t *testing.T) {
	wf := Parse(`Run in parallel
If {a} greater than 1 then
Add {a} and {a} Save as doubled
End If
Step 2: Fetch contacts
End`)
	if len(wf.Steps) != 1 {
		t.Fatalf("steps = %+v", wf.Steps)
	}
	body := wf.Steps[0].Body
	if len(body) != 2 {
		t.Fatalf("parallel body = %+v", body)
	}
	if body[0].Kind != KindIf {
		t.Errorf("nested kind = %v, want if", body[0].Kind)
	}
	if len(body[0].Body) != 1 || body[0].Body[0].Kind != KindCalculate {
		t.Errorf("nested if body = %+v", body[0].Body)
	}
}

func TestParseSingleLineForms(t *testing.T) {
	wf := Parse(`Connect "crm" using "https://crm.example.com"
Agent "scout" uses "crm"
Debrief scout with "all done"
Evolve scout using feedback: "be more specific"
Prompt user to "Pick a color"
Save as color
Persist color to "choices.json"
Emit "finished" with color
Return color`)
	kinds := []StepKind{KindConnect, KindAgentUse, KindDebrief, KindEvolve, KindPrompt, KindPersist, KindEmit}
	if len(wf.Steps) != len(kinds) {
		t.Fatalf("got %d steps, want %d: %+v", len(wf.Steps), len(kinds), wf.Steps)
	}
	for i, want := range kinds {
		if wf.Steps[i].Kind != want {
			t.Errorf("step %d kind = %v, want %v", i, wf.Steps[i].Kind, want)
		}
	}
	if wf.Steps[0].Resource != "crm" || wf.Steps[0].Endpoint != "https://crm.example.com" {
		t.Errorf("connect = %+v", wf.Steps[0])
	}
	if wf.Steps[3].Target != "scout" || wf.Steps[3].Feedback != "be more specific" {
		t.Errorf("evolve = %+v", wf.Steps[3])
	}
	if wf.Steps[4].SaveAs != "color" {
		t.Errorf("prompt saveAs = %q", wf.Steps[4].SaveAs)
	}
	if wf.Steps[5].Source != "color" || wf.Steps[5].Dest != "choices.json" {
		t.Errorf("persist = %+v", wf.Steps[5])
	}
	if wf.Steps[6].Event != "finished" || wf.Steps[6].Payload != "color" {
		t.Errorf("emit = %+v", wf.Steps[6])
	}
	if !reflect.DeepEqual(wf.Returns, []string{"color"}) {
		t.Errorf("returns = %v", wf.Returns)
	}
}

func TestParseMaxGenerations(t *testing.T) {
	wf := Parse(`Workflow "T"
Max generations: 3
Step 1: Ask something
Return x`)
	if wf.MaxGenerations != 3 {
		t.Errorf("maxGenerations = %d, want 3", wf.MaxGenerations)
	}
}

func TestParseIsTotal(t *testing.T) {
	sources := []string{
		"",
		"complete nonsense\nmore nonsense",
		"If broken condition\nEnd",
		"Run in parallel",
		"If {x} equals \"1\" then",
		"Step :\nSave as\nConstraint: =",
		strings.Repeat("x ", 10000),
	}
	for _, src := range sources {
		wf := Parse(src) // must not panic
		if wf == nil {
			t.Fatal("Parse returned nil")
		}
	}
}

func TestParseWarningsForStructure(t *testing.T) {
	wf := Parse("gibberish line")
	wantFragments := []string{
		"unrecognized line",
		"missing workflow header",
		"no steps",
		"no return clause",
	}
	for _, frag := range wantFragments {
		found := false
		for _, w := range wf.Warnings {
			if strings.Contains(w, frag) {
				found = true
			}
		}
		if !found {
			t.Errorf("missing warning containing %q, got %v", frag, wf.Warnings)
		}
	}
}

func TestParseMissingSentinelWarning(t *testing.T) {
	wf := Parse("If {x} equals \"1\" then\nStep 1: Do it")
	found := false
	for _, w := range wf.Warnings {
		if strings.Contains(w, "not closed") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing block-not-closed warning, got %v", wf.Warnings)
	}
	if len(wf.Steps) != 1 || len(wf.Steps[0].Body) != 1 {
		t.Errorf("steps = %+v", wf.Steps)
	}
}

func TestCommentsAndBlankLinesDropped(t *testing.T) {
	wf := Parse(`# a comment
// another comment

Workflow "T"
Step 1: Do it
Return x`)
	if wf.Name != "T" || len(wf.Steps) != 1 {
		t.Errorf("wf = %+v", wf)
	}
	for _, w := range wf.Warnings {
		if strings.Contains(w, "unrecognized") {
			t.Errorf("comment produced warning: %q", w)
		}
	}
}
