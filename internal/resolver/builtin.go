package resolver

import (
	"context"

	"github.com/proseflow/proseflow/internal/expr"
	"github.com/proseflow/proseflow/internal/lang"
)

// Math is the built-in arithmetic capability. The engine usually evaluates
// math-call actions directly, but chains assembled by hosts that were not
// aware of arithmetic steps still work because this resolver handles them
// under the auto-qualified capability name.
func Math() Resolver {
	return NewFunc(lang.MathCapability, func(ctx context.Context, action string, vars map[string]any) (any, error) {
		if !expr.IsMathCall(action) {
			return nil, ErrUnresolved
		}
		v, err := expr.EvalMath(action, expr.MapSource(vars))
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}
