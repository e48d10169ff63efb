package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/proseflow/proseflow/internal/expr"
	"github.com/proseflow/proseflow/internal/lang"
	"github.com/proseflow/proseflow/internal/metrics"
)

// AuditLog records refused dispatch attempts durably. Implemented by the
// sqlite store in internal/audit.
type AuditLog interface {
	RecordDisallowed(ctx context.Context, resolver, action string, at time.Time) error
}

// ChainOption configures optional chain collaborators.
type ChainOption func(*Chain)

func WithAudit(a AuditLog) ChainOption {
	return func(c *Chain) { c.audit = a }
}

func WithLogger(l *zap.Logger) ChainOption {
	return func(c *Chain) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// Chain is an ordered sequence of resolvers plus the capability allow-list
// for one workflow execution. Entries are tried strictly in order; the
// first defined value wins. It is immutable during execution apart from
// the one-time math injection and the attempt counter.
type Chain struct {
	resolvers []Resolver
	allowed   map[string]bool
	audit     AuditLog
	log       *zap.Logger
	metrics   *metrics.Metrics

	mu       sync.Mutex
	attempts int
}

// NewChain builds a chain from the ordered resolvers and the workflow's
// declared allow-list.
func NewChain(resolvers []Resolver, allowList []string, opts ...ChainOption) *Chain {
	c := &Chain{
		resolvers: resolvers,
		allowed:   make(map[string]bool, len(allowList)),
		log:       zap.NewNop(),
	}
	for _, name := range allowList {
		c.allowed[name] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureMath adds the built-in math capability to the allow-list. The
// engine calls it once, before the first step runs, when any step body
// requires arithmetic.
func (c *Chain) EnsureMath() {
	c.allowed[lang.MathCapability] = true
}

// Attempts returns the number of Invoke calls made so far. Diagnostic only.
func (c *Chain) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Invoke tries each resolver in declaration order and returns the first
// defined value. A disallowed resolver is a hard *PolicyError after one
// audit entry; a permitted resolver's fault becomes a warning and the
// chain proceeds. When no resolver produces a value the result is
// ErrUnresolved, which callers treat as an explicit non-value.
func (c *Chain) Invoke(ctx context.Context, action string, vars map[string]any) (any, []string, error) {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()

	// Arithmetic-looking actions qualify the math capability on the spot,
	// mirroring the parser-level auto-injection.
	mathAction := expr.IsMathCall(action)

	var warnings []string
	for _, r := range c.resolvers {
		name := r.Name()
		if name == "" {
			warnings = append(warnings, "resolver with empty name skipped")
			c.metrics.ResolverCalled("unnamed", "fault")
			continue
		}
		if !c.allowed[name] && !(mathAction && name == lang.MathCapability) {
			c.metrics.PolicyViolation()
			c.log.Warn("disallowed resolver attempt",
				zap.String("resolver", name),
				zap.String("action", action))
			if c.audit != nil {
				if err := c.audit.RecordDisallowed(ctx, name, action, time.Now().UTC()); err != nil {
					warnings = append(warnings, fmt.Sprintf("audit log write failed: %v", err))
				}
			}
			return nil, warnings, &PolicyError{Resolver: name, Action: action}
		}

		val, err := r.Resolve(ctx, action, vars)
		switch {
		case err == nil:
			c.metrics.ResolverCalled(name, "resolved")
			c.log.Debug("action resolved",
				zap.String("resolver", name),
				zap.String("action", action))
			return val, warnings, nil
		case errors.Is(err, ErrUnresolved):
			c.metrics.ResolverCalled(name, "unresolved")
			continue
		default:
			c.metrics.ResolverCalled(name, "fault")
			warnings = append(warnings, fmt.Sprintf("resolver %q failed: %v", name, err))
			c.log.Warn("resolver fault",
				zap.String("resolver", name),
				zap.String("action", action),
				zap.Error(err))
			continue
		}
	}
	return nil, warnings, ErrUnresolved
}
