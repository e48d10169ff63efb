package lang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reWorkflow   = regexp.MustCompile(`^Workflow\s+"([^"]+)"(?:\s+with\s+(.+))?$`)
	reAllow      = regexp.MustCompile(`^Allow resolvers\s*:\s*(.*)$`)
	reMaxGen     = regexp.MustCompile(`^Max generations\s*:\s*(\d+)$`)
	reStep       = regexp.MustCompile(`^Step\s+\d+\s*:\s*(.+)$`)
	reSaveAs     = regexp.MustCompile(`^Save as\s+(\S+)$`)
	reInlineSave = regexp.MustCompile(`^(.+?)\s+Save as\s+(\S+)$`)
	reConstraint = regexp.MustCompile(`^Constraint\s*:\s*([^=]+?)\s*=\s*(.+)$`)
	reIf         = regexp.MustCompile(`^If\s+(.+?)\s+then$`)
	reConnect    = regexp.MustCompile(`^Connect\s+"([^"]+)"\s+using\s+"([^"]+)"$`)
	reAgentUse   = regexp.MustCompile(`^Agent\s+"([^"]+)"\s+uses\s+"([^"]+)"$`)
	reDebrief    = regexp.MustCompile(`^Debrief\s+(\S+)\s+with\s+"([^"]*)"$`)
	reEvolve     = regexp.MustCompile(`^Evolve\s+(\S+)\s+using\s+feedback\s*:\s*"([^"]*)"$`)
	rePrompt     = regexp.MustCompile(`^Prompt\s+user\s+to\s+"([^"]+)"$`)
	rePersist    = regexp.MustCompile(`^Persist\s+(\S+)\s+to\s+"([^"]+)"$`)
	reEmit       = regexp.MustCompile(`^Emit\s+"([^"]+)"(?:\s+with\s+(\S+))?$`)
	reReturn     = regexp.MustCompile(`^Return\s+(.+)$`)

	// The four arithmetic sentence forms, matched ahead of generic steps.
	reAdd      = regexp.MustCompile(`^Add\s+(.+?)\s+and\s+(.+?)\s+Save as\s+(\S+)$`)
	reSubtract = regexp.MustCompile(`^Subtract\s+(.+?)\s+from\s+(.+?)\s+Save as\s+(\S+)$`)
	reMultiply = regexp.MustCompile(`^Multiply\s+(.+?)\s+by\s+(.+?)\s+Save as\s+(\S+)$`)
	reDivide   = regexp.MustCompile(`^Divide\s+(.+?)\s+by\s+(.+?)\s+Save as\s+(\S+)$`)

	reNumber = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
)

// Parse turns plain-English workflow text into a Workflow. Parsing is
// total: malformed constructs degrade to warnings and fewer recognized
// steps, never an error. Filename constraints are the caller's concern.
func Parse(source string) *Workflow {
	p := &parser{lines: filterLines(source)}
	wf := &Workflow{}

	for p.i < len(p.lines) {
		l := p.lines[p.i]

		if m := reWorkflow.FindStringSubmatch(l.text); m != nil {
			wf.Name = m[1]
			if m[2] != "" {
				wf.Params = splitList(m[2])
			}
			p.i++
			continue
		}
		if m := reAllow.FindStringSubmatch(l.text); m != nil {
			p.i++
			wf.Capabilities = append(wf.Capabilities, p.parseAllowBlock(m[1])...)
			continue
		}
		if m := reMaxGen.FindStringSubmatch(l.text); m != nil {
			n, _ := strconv.Atoi(m[1])
			wf.MaxGenerations = n
			p.i++
			continue
		}
		if m := reReturn.FindStringSubmatch(l.text); m != nil {
			wf.Returns = append(wf.Returns, splitList(m[1])...)
			p.i++
			continue
		}

		step, ok := p.parseStep()
		if !ok {
			p.warn("unrecognized line %d: %q", l.num, l.text)
			p.i++
			continue
		}
		wf.Steps = append(wf.Steps, step)
	}

	p.finalize(wf)
	return wf
}

type parser struct {
	lines        []line
	i            int
	warnings     []string
	mathRequired bool
}

func (p *parser) warn(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

// parseAllowBlock consumes the contiguous run of bulleted or indented lines
// after an "Allow resolvers:" header. inline is whatever followed the colon
// on the header line itself.
func (p *parser) parseAllowBlock(inline string) []string {
	var names []string
	if n := trimBullet(inline); n != "" {
		names = append(names, n)
	}
	for p.i < len(p.lines) && p.lines[p.i].continuation() {
		if n := trimBullet(p.lines[p.i].text); n != "" {
			names = append(names, n)
		}
		p.i++
	}
	return names
}

// parseStep recognizes one step form at the cursor, consuming it plus any
// trailing "Save as" / "Constraint:" attachment lines. Returns false if the
// current line matches no step form; the cursor is untouched in that case.
func (p *parser) parseStep() (Step, bool) {
	l := p.lines[p.i]

	// Arithmetic sentences take precedence over the generic forms and flag
	// the built-in math capability for auto-injection. They may stand bare
	// or be the body of a numbered step.
	body := l.text
	if m := reStep.FindStringSubmatch(l.text); m != nil {
		body = m[1]
	}
	if step, ok := p.parseArithmetic(body); ok {
		p.i++
		return step, true
	}

	if m := reIf.FindStringSubmatch(l.text); m != nil {
		p.i++
		body := p.parseBlock("End If")
		return Step{Kind: KindIf, Condition: m[1], Body: body}, true
	}
	if l.text == "Run in parallel" {
		p.i++
		body := p.parseBlock("End")
		return Step{Kind: KindParallel, Body: body}, true
	}

	var step Step
	switch {
	case reStep.MatchString(l.text):
		m := reStep.FindStringSubmatch(l.text)
		step = Step{Kind: KindAction, Action: m[1]}
		// A save-target may ride on the step line itself.
		if sm := reInlineSave.FindStringSubmatch(step.Action); sm != nil {
			step.Action = sm[1]
			step.SaveAs = sm[2]
		}
	case reConnect.MatchString(l.text):
		m := reConnect.FindStringSubmatch(l.text)
		step = Step{Kind: KindConnect, Resource: m[1], Endpoint: m[2]}
	case reAgentUse.MatchString(l.text):
		m := reAgentUse.FindStringSubmatch(l.text)
		step = Step{Kind: KindAgentUse, Agent: m[1], Resource: m[2]}
	case reDebrief.MatchString(l.text):
		m := reDebrief.FindStringSubmatch(l.text)
		step = Step{Kind: KindDebrief, Agent: m[1], Message: m[2]}
	case reEvolve.MatchString(l.text):
		m := reEvolve.FindStringSubmatch(l.text)
		step = Step{Kind: KindEvolve, Target: m[1], Feedback: m[2]}
	case rePrompt.MatchString(l.text):
		m := rePrompt.FindStringSubmatch(l.text)
		step = Step{Kind: KindPrompt, Question: m[1]}
	case rePersist.MatchString(l.text):
		m := rePersist.FindStringSubmatch(l.text)
		step = Step{Kind: KindPersist, Source: m[1], Dest: m[2]}
	case reEmit.MatchString(l.text):
		m := reEmit.FindStringSubmatch(l.text)
		step = Step{Kind: KindEmit, Event: m[1], Payload: m[2]}
	default:
		return Step{}, false
	}
	p.i++
	p.attachTrailers(&step)
	return step, true
}

// parseBlock collects body steps until the terminator sentinel, recursively
// applying the same step grammar so If and Parallel blocks nest to any
// depth. A missing terminator degrades to a warning.
func (p *parser) parseBlock(terminator string) []Step {
	var body []Step
	for p.i < len(p.lines) {
		l := p.lines[p.i]
		if l.text == terminator {
			p.i++
			return body
		}
		step, ok := p.parseStep()
		if !ok {
			p.warn("unrecognized line %d: %q", l.num, l.text)
			p.i++
			continue
		}
		body = append(body, step)
	}
	p.warn("block not closed: missing %q sentinel", terminator)
	return body
}

// attachTrailers fills the save-target and constraint map of the most
// recently opened step from its immediately following lines.
func (p *parser) attachTrailers(step *Step) {
	for p.i < len(p.lines) {
		l := p.lines[p.i]
		if m := reSaveAs.FindStringSubmatch(l.text); m != nil {
			step.SaveAs = m[1]
			p.i++
			continue
		}
		if m := reConstraint.FindStringSubmatch(l.text); m != nil {
			if step.Constraints == nil {
				step.Constraints = make(map[string]any)
			}
			step.Constraints[strings.TrimSpace(m[1])] = coerceConstraint(m[2])
			p.i++
			continue
		}
		return
	}
}

func (p *parser) parseArithmetic(text string) (Step, bool) {
	var fn string
	var m []string
	switch {
	case reAdd.MatchString(text):
		fn, m = "add", reAdd.FindStringSubmatch(text)
	case reSubtract.MatchString(text):
		// "Subtract X from Y" computes Y - X.
		m = reSubtract.FindStringSubmatch(text)
		fn, m[1], m[2] = "subtract", m[2], m[1]
	case reMultiply.MatchString(text):
		fn, m = "multiply", reMultiply.FindStringSubmatch(text)
	case reDivide.MatchString(text):
		fn, m = "divide", reDivide.FindStringSubmatch(text)
	default:
		return Step{}, false
	}
	p.mathRequired = true
	expr := fmt.Sprintf("%s(%s, %s)", fn, m[1], m[2])
	return Step{Kind: KindCalculate, Expr: expr, SaveAs: m[3]}, true
}

// finalize runs the post-parse checks: structural warnings and the math
// capability auto-injection.
func (p *parser) finalize(wf *Workflow) {
	if wf.Name == "" {
		p.warn("missing workflow header")
	}
	if len(wf.Steps) == 0 {
		p.warn("workflow has no steps")
	}
	if len(wf.Returns) == 0 {
		p.warn("workflow has no return clause")
	}
	declaredAny := len(wf.Capabilities) > 0
	if p.mathRequired && !wf.Allowed(MathCapability) {
		wf.Capabilities = append([]string{MathCapability}, wf.Capabilities...)
		p.warn("arithmetic steps present: %q capability auto-injected into the allow-list", MathCapability)
	}
	if !declaredAny {
		p.warn("no capability declaration: workflow runs in restricted capability mode")
	}
	wf.Warnings = p.warnings
}

// coerceConstraint applies the fixed coercion rule: [..] list, full numeric
// parse, quoted string, else raw token.
func coerceConstraint(v string) any {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		inner := strings.TrimSpace(v[1 : len(v)-1])
		if inner == "" {
			return []string{}
		}
		parts := strings.Split(inner, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			out = append(out, strings.Trim(strings.TrimSpace(part), `"'`))
		}
		return out
	}
	if reNumber.MatchString(v) {
		n, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return n
		}
	}
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		return v[1 : len(v)-1]
	}
	return v
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func trimBullet(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "-")
	return strings.TrimSpace(s)
}
