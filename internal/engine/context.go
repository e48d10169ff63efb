package engine

import (
	"strings"
	"sync"

	"github.com/proseflow/proseflow/internal/expr"
)

// Context is the single mutable variable store for one workflow execution.
// Parallel sub-steps share the same instance: the mutex protects map
// integrity only, not ordering — siblings writing the same variable race
// and the last write lands. Workflows are expected to be authored to keep
// parallel writes disjoint.
type Context struct {
	mu   sync.RWMutex
	vars map[string]any
}

// NewContext copies the caller-supplied inputs; the original map is never
// mutated.
func NewContext(inputs map[string]any) *Context {
	vars := make(map[string]any, len(inputs)+1)
	for k, v := range inputs {
		vars[k] = v
	}
	return &Context{vars: vars}
}

// Set stores a value under a (non-dotted) variable name. The write is
// globally visible immediately; there is no scoping or shadowing.
func (c *Context) Set(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars[name] = v
}

// Lookup resolves a dotted path. Implements expr.Source.
func (c *Context) Lookup(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !strings.Contains(path, ".") {
		v, ok := c.vars[path]
		return v, ok
	}
	return expr.ResolvePath(c.vars, path)
}

// Snapshot returns a shallow copy of the current variables, for handing to
// resolvers.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.vars))
	for k, v := range c.vars {
		out[k] = v
	}
	return out
}
