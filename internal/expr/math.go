package expr

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// The closed function set. No other identifier is reachable during
// evaluation; this replaces the original design of assembling and
// executing expression text at runtime.
var mathFunctions = map[string]struct {
	minArgs int
	maxArgs int // 0 means unbounded
	apply   func(args []float64) (float64, error)
}{
	"add":      {2, 2, func(a []float64) (float64, error) { return a[0] + a[1], nil }},
	"subtract": {2, 2, func(a []float64) (float64, error) { return a[0] - a[1], nil }},
	"multiply": {2, 2, func(a []float64) (float64, error) { return a[0] * a[1], nil }},
	"divide": {2, 2, func(a []float64) (float64, error) {
		if a[1] == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a[0] / a[1], nil
	}},
	"sum": {1, 0, func(a []float64) (float64, error) {
		var s float64
		for _, v := range a {
			s += v
		}
		return s, nil
	}},
	"avg": {1, 0, func(a []float64) (float64, error) {
		var s float64
		for _, v := range a {
			s += v
		}
		return s / float64(len(a)), nil
	}},
	"min": {1, 0, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	}},
	"max": {1, 0, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	}},
	"increment": {1, 1, func(a []float64) (float64, error) { return a[0] + 1, nil }},
	"decrement": {1, 1, func(a []float64) (float64, error) { return a[0] - 1, nil }},
	"round":     {1, 1, func(a []float64) (float64, error) { return math.Round(a[0]), nil }},
	"floor":     {1, 1, func(a []float64) (float64, error) { return math.Floor(a[0]), nil }},
	"ceil":      {1, 1, func(a []float64) (float64, error) { return math.Ceil(a[0]), nil }},
	"abs":       {1, 1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"greater": {2, 2, func(a []float64) (float64, error) {
		if a[0] > a[1] {
			return 1, nil
		}
		return 0, nil
	}},
	"less": {2, 2, func(a []float64) (float64, error) {
		if a[0] < a[1] {
			return 1, nil
		}
		return 0, nil
	}},
}

var reMathCall = regexp.MustCompile(`^\s*([a-z]+)\s*\(.*\)\s*$`)

// IsMathCall reports whether text has the shape of a call to one of the
// fixed math functions. The engine uses it to evaluate such action text
// directly instead of dispatching to the resolver chain, and the chain
// uses it to auto-qualify the math capability at invocation time.
func IsMathCall(text string) bool {
	m := reMathCall.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	if m[1] == "equals" {
		return true
	}
	_, ok := mathFunctions[m[1]]
	return ok
}

// EvalMath interpolates placeholders and evaluates the expression with a
// small recursive-descent parser over the fixed function set. Callers are
// expected to degrade an error to a zero result plus a warning.
func EvalMath(expression string, src Source) (float64, error) {
	text := interpolateForMath(expression, src)
	p := &mathParser{input: text}
	v, err := p.parseValue()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected trailing text at offset %d in %q", p.pos, text)
	}
	n, ok := asNumber(v)
	if !ok {
		return 0, fmt.Errorf("expression %q did not produce a number", text)
	}
	return n, nil
}

type mathParser struct {
	input string
	pos   int
}

// parseValue handles one operand: a function call, a numeric literal or a
// quoted string (strings only matter to equals).
func (p *mathParser) parseValue() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	c := p.input[p.pos]
	switch {
	case c == '"':
		return p.parseString()
	case c == '-' || unicode.IsDigit(rune(c)):
		return p.parseNumber()
	case unicode.IsLetter(rune(c)):
		return p.parseCall()
	default:
		return nil, fmt.Errorf("unexpected character %q at offset %d", c, p.pos)
	}
}

func (p *mathParser) parseCall() (any, error) {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsLetter(rune(p.input[p.pos])) || p.input[p.pos] == '_') {
		p.pos++
	}
	name := p.input[start:p.pos]
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return nil, fmt.Errorf("unknown identifier %q", name)
	}
	p.pos++ // consume '('

	var args []any
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == ')' {
		p.pos++
	} else {
		for {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			args = append(args, v)
			p.skipSpace()
			if p.pos >= len(p.input) {
				return nil, fmt.Errorf("unterminated call to %q", name)
			}
			if p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.input[p.pos] == ')' {
				p.pos++
				break
			}
			return nil, fmt.Errorf("unexpected character %q in arguments of %q", p.input[p.pos], name)
		}
	}
	return applyFunction(name, args)
}

func (p *mathParser) parseNumber() (any, error) {
	start := p.pos
	if p.input[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	n, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q", p.input[start:p.pos])
	}
	return n, nil
}

func (p *mathParser) parseString() (any, error) {
	// cursor is on the opening quote
	end := strings.IndexByte(p.input[p.pos+1:], '"')
	if end < 0 {
		return nil, fmt.Errorf("unterminated string at offset %d", p.pos)
	}
	s := p.input[p.pos+1 : p.pos+1+end]
	p.pos += end + 2
	return s, nil
}

func (p *mathParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func applyFunction(name string, args []any) (any, error) {
	// equals is the one helper that compares strings as well as numbers.
	if name == "equals" {
		if len(args) != 2 {
			return nil, fmt.Errorf("equals expects 2 arguments, got %d", len(args))
		}
		if FormatValue(args[0]) == FormatValue(args[1]) {
			return float64(1), nil
		}
		return float64(0), nil
	}

	fn, ok := mathFunctions[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	if len(args) < fn.minArgs || (fn.maxArgs > 0 && len(args) > fn.maxArgs) {
		return nil, fmt.Errorf("%s: wrong argument count %d", name, len(args))
	}
	nums := make([]float64, len(args))
	for i, a := range args {
		n, ok := asNumber(a)
		if !ok {
			if s, isStr := a.(string); isStr {
				parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return nil, fmt.Errorf("%s: argument %d is not numeric: %q", name, i+1, s)
				}
				n = parsed
			} else {
				return nil, fmt.Errorf("%s: argument %d is not numeric", name, i+1)
			}
		}
		nums[i] = n
	}
	return fn.apply(nums)
}
