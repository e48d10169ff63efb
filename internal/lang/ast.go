package lang

// MathCapability is the name of the built-in arithmetic capability. The
// parser injects it into a workflow's allow-list whenever an arithmetic
// sentence appears, so authors never have to declare it themselves.
const MathCapability = "math"

// StepKind discriminates the closed set of step variants. The engine
// switches exhaustively over it; an unknown kind is a programming error,
// not a silent no-op.
type StepKind int

const (
	KindAction StepKind = iota
	KindCalculate
	KindIf
	KindParallel
	KindConnect
	KindAgentUse
	KindDebrief
	KindEvolve
	KindPrompt
	KindPersist
	KindEmit
)

func (k StepKind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindCalculate:
		return "calculate"
	case KindIf:
		return "if"
	case KindParallel:
		return "parallel"
	case KindConnect:
		return "connect"
	case KindAgentUse:
		return "agent_use"
	case KindDebrief:
		return "debrief"
	case KindEvolve:
		return "evolve"
	case KindPrompt:
		return "prompt"
	case KindPersist:
		return "persist"
	case KindEmit:
		return "emit"
	default:
		return "unknown"
	}
}

// Step is one instruction in a workflow. Only the fields for its Kind are
// populated; the rest stay zero. Steps are built once by the parser and
// never mutated afterwards.
type Step struct {
	Kind        StepKind       `yaml:"kind"`
	Action      string         `yaml:"action,omitempty"`      // KindAction: free-text template
	Expr        string         `yaml:"expr,omitempty"`        // KindCalculate: arithmetic expression
	SaveAs      string         `yaml:"save_as,omitempty"`     // variable to store the result under
	Constraints map[string]any `yaml:"constraints,omitempty"` // KindAction: typed constraint values
	Condition   string         `yaml:"condition,omitempty"`   // KindIf
	Body        []Step         `yaml:"body,omitempty"`        // KindIf, KindParallel
	Resource    string         `yaml:"resource,omitempty"`    // KindConnect, KindAgentUse
	Endpoint    string         `yaml:"endpoint,omitempty"`    // KindConnect
	Agent       string         `yaml:"agent,omitempty"`       // KindAgentUse, KindDebrief
	Message     string         `yaml:"message,omitempty"`     // KindDebrief
	Target      string         `yaml:"target,omitempty"`      // KindEvolve: resolver name
	Feedback    string         `yaml:"feedback,omitempty"`    // KindEvolve
	Question    string         `yaml:"question,omitempty"`    // KindPrompt
	Source      string         `yaml:"source,omitempty"`      // KindPersist: context path
	Dest        string         `yaml:"dest,omitempty"`        // KindPersist: file path or collection
	Event       string         `yaml:"event,omitempty"`       // KindEmit
	Payload     string         `yaml:"payload,omitempty"`     // KindEmit: context path, optional
}

// Workflow is a parsed program: ordered steps, declared parameters, a
// return projection and a capability allow-list. Parse warnings collect
// here; the engine appends its own runtime warnings to the Result instead.
type Workflow struct {
	Name           string   `yaml:"name"`
	Params         []string `yaml:"params,omitempty"`
	Steps          []Step   `yaml:"steps"`
	Returns        []string `yaml:"returns,omitempty"`
	Capabilities   []string `yaml:"capabilities,omitempty"`
	MaxGenerations int      `yaml:"max_generations,omitempty"` // 0 means no declared ceiling
	Warnings       []string `yaml:"warnings,omitempty"`
}

// Allowed reports whether a resolver name is in the declared allow-list.
func (w *Workflow) Allowed(name string) bool {
	for _, c := range w.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// MathRequired reports whether any step (at any nesting depth) needs the
// built-in math capability.
func (w *Workflow) MathRequired() bool {
	return stepsNeedMath(w.Steps)
}

func stepsNeedMath(steps []Step) bool {
	for _, s := range steps {
		switch s.Kind {
		case KindCalculate:
			return true
		case KindIf, KindParallel:
			if stepsNeedMath(s.Body) {
				return true
			}
		}
	}
	return false
}
