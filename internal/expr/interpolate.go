// Package expr resolves {dotted.path} interpolation and evaluates the
// fixed arithmetic and conditional expression forms of the workflow
// language. Nothing here can reach the host: the math evaluator accepts
// only a closed function set, and every failure degrades to a neutral
// default rather than an error the caller must handle.
package expr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Source resolves a dotted variable path to a value. The engine's shared
// execution context implements it; tests use MapSource.
type Source interface {
	Lookup(path string) (any, bool)
}

// MapSource adapts a plain (possibly nested) map to a Source.
type MapSource map[string]any

func (m MapSource) Lookup(path string) (any, bool) {
	return ResolvePath(map[string]any(m), path)
}

// ResolvePath walks a dotted path through nested string-keyed maps.
func ResolvePath(vars map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = vars
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

var rePlaceholder = regexp.MustCompile(`\{([A-Za-z_][\w.]*)\}`)

// Interpolate replaces every {dotted.path} occurrence with the string form
// of the corresponding value. Unresolved placeholders are left untouched;
// interpolation never fails.
func Interpolate(text string, src Source) string {
	return rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		path := match[1 : len(match)-1]
		v, ok := src.Lookup(path)
		if !ok {
			return match
		}
		return FormatValue(v)
	})
}

// interpolateForMath substitutes numeric values as bare numbers and
// anything else as a quoted literal, so the result stays parseable by the
// math evaluator.
func interpolateForMath(text string, src Source) string {
	return rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		path := match[1 : len(match)-1]
		v, ok := src.Lookup(path)
		if !ok {
			return match
		}
		if n, ok := asNumber(v); ok {
			return formatNumber(n)
		}
		return strconv.Quote(FormatValue(v))
	})
}

// FormatValue renders a context value as text: numbers without a trailing
// ".0", structured values as JSON.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	default:
		return 0, false
	}
}
