// Package resolver defines the capability provider contract and the
// policy-checked chain that dispatches action strings to providers.
package resolver

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnresolved is the explicit "not handled" sentinel. A resolver returns
// it when the action is outside its capability; the chain returns it when
// no resolver in the chain produced a defined value.
var ErrUnresolved = errors.New("action unresolved")

// Resolver is an external capability provider. Name must be stable: it is
// what the allow-list is checked against. Resolve either returns a value,
// ErrUnresolved, or a provider-level fault.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, action string, vars map[string]any) (any, error)
}

// Func adapts a plain function into a named Resolver.
type Func struct {
	name string
	fn   func(ctx context.Context, action string, vars map[string]any) (any, error)
}

func NewFunc(name string, fn func(ctx context.Context, action string, vars map[string]any) (any, error)) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Resolve(ctx context.Context, action string, vars map[string]any) (any, error) {
	if f.fn == nil {
		return nil, ErrUnresolved
	}
	return f.fn(ctx, action, vars)
}

// PolicyError is the hard fault raised when a chain entry's name is absent
// from the effective allow-list. It aborts the triggering step's dispatch;
// the violation is additionally appended to the durable audit log.
type PolicyError struct {
	Resolver string
	Action   string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("resolver %q not permitted for action %q", e.Resolver, e.Action)
}
