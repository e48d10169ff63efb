package expr

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reCondEquals  = regexp.MustCompile(`^\{([\w.]+)\}\s+equals\s+"([^"]*)"$`)
	reCondGreater = regexp.MustCompile(`^\{([\w.]+)\}\s+greater than\s+(-?\d+(?:\.\d+)?)$`)
)

// EvalCondition evaluates the two recognized comparison forms:
//
//	{path} equals "literal"
//	{path} greater than N
//
// Anything else falls back to a truthiness test of the brace-stripped
// dereferenced path. Never fails; an unresolvable path is simply false.
func EvalCondition(cond string, src Source) bool {
	cond = strings.TrimSpace(cond)

	if m := reCondEquals.FindStringSubmatch(cond); m != nil {
		v, ok := src.Lookup(m[1])
		if !ok {
			return false
		}
		return FormatValue(v) == m[2]
	}
	if m := reCondGreater.FindStringSubmatch(cond); m != nil {
		v, ok := src.Lookup(m[1])
		if !ok {
			return false
		}
		n, numeric := asConditionNumber(v)
		if !numeric {
			return false
		}
		limit, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return false
		}
		return n > limit
	}

	path := strings.Trim(cond, "{}")
	v, ok := src.Lookup(path)
	if !ok {
		return false
	}
	return truthy(v)
}

func asConditionNumber(v any) (float64, bool) {
	if n, ok := asNumber(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return n, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !strings.EqualFold(t, "false")
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}
