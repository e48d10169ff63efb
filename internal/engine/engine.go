// Package engine is the tree-walking interpreter for parsed workflows. It
// owns the shared execution context, dispatches actions through the
// resolver chain, and implements the concurrency and fallback semantics of
// each step kind.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proseflow/proseflow/internal/expr"
	"github.com/proseflow/proseflow/internal/lang"
	"github.com/proseflow/proseflow/internal/metrics"
	"github.com/proseflow/proseflow/internal/resolver"
	"github.com/proseflow/proseflow/internal/sink"
)

// Prompter supplies the single line of external input a Prompt step
// suspends for.
type Prompter interface {
	Prompt(ctx context.Context, question string) (string, error)
}

// GenerationError aborts an execution that exceeded the workflow's
// declared generation ceiling, before any step runs.
type GenerationError struct {
	Workflow   string
	Generation int
	Max        int
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("workflow %q generation %d exceeds ceiling %d", e.Workflow, e.Generation, e.Max)
}

// Options are the explicit collaborators of one Engine instance. There is
// no process-wide state: sinks, listeners and loggers all live and die
// with the engine that owns them.
type Options struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Sinks    *sink.Registry
	Prompter Prompter
	Bus      *Bus
}

type Engine struct {
	log      *zap.Logger
	metrics  *metrics.Metrics
	sinks    *sink.Registry
	prompter Prompter
	bus      *Bus

	mu          sync.Mutex
	generations map[string]int
}

func New(opts Options) *Engine {
	e := &Engine{
		log:         opts.Logger,
		metrics:     opts.Metrics,
		sinks:       opts.Sinks,
		prompter:    opts.Prompter,
		bus:         opts.Bus,
		generations: make(map[string]int),
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.bus == nil {
		e.bus = NewBus()
	}
	return e
}

// Bus returns the engine's event bus so hosts can subscribe listeners.
func (e *Engine) Bus() *Bus { return e.bus }

// Result is what an execution surfaces to the caller: the return
// projection plus every warning and binding collected along the way.
type Result struct {
	RunID     string
	Workflow  string
	Returns   map[string]any
	Warnings  []string
	Resources map[string]string
	Agents    map[string]string
	Events    int
}

// run is the per-execution state: one context, one chain, one warning
// list. Parallel sub-steps append warnings concurrently, hence the mutex.
type run struct {
	id    string
	wf    *lang.Workflow
	vars  *Context
	chain *resolver.Chain

	mu        sync.Mutex
	warnings  []string
	resources map[string]string
	agents    map[string]string
	events    int
	asks      []askRecord
}

// askRecord remembers an executed ask-style action so a later Evolve step
// can re-invoke it.
type askRecord struct {
	action string
	saveAs string
}

func (r *run) warn(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (r *run) warnAll(ws []string) {
	if len(ws) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, ws...)
}

func (r *run) recordAsk(action, saveAs string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asks = append(r.asks, askRecord{action: action, saveAs: saveAs})
}

func (r *run) lastAsk() (askRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.asks) == 0 {
		return askRecord{}, false
	}
	return r.asks[len(r.asks)-1], true
}

// Execute runs one workflow against the given inputs and resolver chain.
// The returned Result is non-nil even when err is set, so callers always
// see the warnings collected before the abort. Only policy violations and
// generation-ceiling violations produce an error; everything else degrades
// to warnings.
func (e *Engine) Execute(ctx context.Context, wf *lang.Workflow, inputs map[string]any, chain *resolver.Chain) (*Result, error) {
	r := &run{
		id:        "run_" + uuid.New().String(),
		wf:        wf,
		vars:      NewContext(inputs),
		chain:     chain,
		resources: make(map[string]string),
		agents:    make(map[string]string),
	}
	r.vars.Set("workflow", wf.Name)
	r.warnAll(wf.Warnings)

	if err := e.checkGeneration(wf); err != nil {
		e.metrics.RunFinished(wf.Name, "generation_ceiling")
		return e.result(r), err
	}

	// One-time math injection, before the first step runs.
	if chain != nil && wf.MathRequired() {
		chain.EnsureMath()
	}

	e.log.Info("workflow started",
		zap.String("run_id", r.id),
		zap.String("workflow", wf.Name),
		zap.Int("steps", len(wf.Steps)))

	for i := range wf.Steps {
		if err := e.executeStep(ctx, r, &wf.Steps[i]); err != nil {
			e.metrics.RunFinished(wf.Name, "aborted")
			e.log.Warn("workflow aborted",
				zap.String("run_id", r.id),
				zap.Error(err))
			return e.result(r), err
		}
	}

	e.metrics.RunFinished(wf.Name, "completed")
	res := e.result(r)
	res.Returns = e.project(r)
	return res, nil
}

// checkGeneration counts executions per workflow name on this engine and
// enforces the declared ceiling before any step runs.
func (e *Engine) checkGeneration(wf *lang.Workflow) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.generations[wf.Name]
	if wf.MaxGenerations > 0 && g >= wf.MaxGenerations {
		return &GenerationError{Workflow: wf.Name, Generation: g + 1, Max: wf.MaxGenerations}
	}
	e.generations[wf.Name] = g + 1
	return nil
}

func (e *Engine) result(r *run) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Result{
		RunID:     r.id,
		Workflow:  r.wf.Name,
		Returns:   make(map[string]any),
		Warnings:  append([]string(nil), r.warnings...),
		Resources: r.resources,
		Agents:    r.agents,
		Events:    r.events,
	}
}

// project resolves each declared return path against the final context.
// Absent paths project to nil, never an error.
func (e *Engine) project(r *run) map[string]any {
	out := make(map[string]any, len(r.wf.Returns))
	for _, path := range r.wf.Returns {
		v, ok := r.vars.Lookup(path)
		if !ok {
			out[path] = nil
			continue
		}
		out[path] = v
	}
	return out
}

// executeStep dispatches one step by kind. The switch is exhaustive over
// the closed StepKind set; a kind it does not know is a hard error.
func (e *Engine) executeStep(ctx context.Context, r *run, st *lang.Step) error {
	e.metrics.StepExecuted(st.Kind.String())

	switch st.Kind {
	case lang.KindCalculate:
		e.execCalculate(r, st)
	case lang.KindAction:
		return e.execAction(ctx, r, st)
	case lang.KindIf:
		return e.execIf(ctx, r, st)
	case lang.KindParallel:
		return e.execParallel(ctx, r, st)
	case lang.KindConnect:
		r.mu.Lock()
		r.resources[st.Resource] = st.Endpoint
		r.mu.Unlock()
	case lang.KindAgentUse:
		r.mu.Lock()
		r.agents[st.Agent] = st.Resource
		r.mu.Unlock()
	case lang.KindDebrief:
		e.publish(r, Event{
			Name:    "debrief",
			Agent:   st.Agent,
			Message: expr.Interpolate(st.Message, r.vars),
		})
	case lang.KindEvolve:
		return e.execEvolve(ctx, r, st)
	case lang.KindPrompt:
		e.execPrompt(ctx, r, st)
	case lang.KindPersist:
		e.execPersist(ctx, r, st)
	case lang.KindEmit:
		e.execEmit(r, st)
	default:
		return fmt.Errorf("unhandled step kind %d", st.Kind)
	}
	return nil
}

func (e *Engine) execCalculate(r *run, st *lang.Step) {
	v, err := expr.EvalMath(st.Expr, r.vars)
	if err != nil {
		r.warn("calculation %q failed: %v", st.Expr, err)
		v = 0
	}
	if st.SaveAs != "" {
		r.vars.Set(st.SaveAs, v)
	}
}

func (e *Engine) execAction(ctx context.Context, r *run, st *lang.Step) error {
	text := expr.Interpolate(st.Action, r.vars)

	// Interpolated math-call syntax is evaluated directly; the resolver
	// chain never sees it.
	if expr.IsMathCall(text) {
		v, err := expr.EvalMath(st.Action, r.vars)
		if err != nil {
			r.warn("math action %q failed: %v", text, err)
			v = 0
		}
		if st.SaveAs != "" {
			r.vars.Set(st.SaveAs, v)
		}
		return nil
	}

	val, err := e.dispatch(ctx, r, text)
	if err != nil {
		return err
	}
	if st.SaveAs != "" {
		r.vars.Set(st.SaveAs, val)
	}
	if st.SaveAs != "" && isAskAction(st.Action) {
		r.recordAsk(st.Action, st.SaveAs)
	}
	return nil
}

// dispatch sends one action through the chain. Unresolved becomes an
// explicit nil value; policy violations propagate as the step's failure.
func (e *Engine) dispatch(ctx context.Context, r *run, action string) (any, error) {
	if r.chain == nil {
		r.warn("no resolver chain: action %q unresolved", action)
		return nil, nil
	}
	val, warns, err := r.chain.Invoke(ctx, action, r.vars.Snapshot())
	r.warnAll(warns)
	if err != nil {
		if errors.Is(err, resolver.ErrUnresolved) {
			r.warn("action %q unresolved by chain", action)
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (e *Engine) execIf(ctx context.Context, r *run, st *lang.Step) error {
	if !expr.EvalCondition(st.Condition, r.vars) {
		return nil
	}
	for i := range st.Body {
		if err := e.executeStep(ctx, r, &st.Body[i]); err != nil {
			return err
		}
	}
	return nil
}

// execParallel fans the body out as concurrent tasks sharing the run's
// context. It waits for every sub-task, success or failure; a sub-step
// fault never cancels its siblings. Hard faults propagate only after all
// siblings finish.
func (e *Engine) execParallel(ctx context.Context, r *run, st *lang.Step) error {
	var wg sync.WaitGroup
	errs := make([]error, len(st.Body))
	for i := range st.Body {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.executeStep(ctx, r, &st.Body[i])
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) execPrompt(ctx context.Context, r *run, st *lang.Step) {
	question := expr.Interpolate(st.Question, r.vars)
	if e.prompter == nil {
		r.warn("no prompter configured for question %q", question)
		if st.SaveAs != "" {
			r.vars.Set(st.SaveAs, "")
		}
		return
	}
	answer, err := e.prompter.Prompt(ctx, question)
	if err != nil {
		r.warn("prompt %q failed: %v", question, err)
		answer = ""
	}
	if st.SaveAs != "" {
		r.vars.Set(st.SaveAs, answer)
	}
}

func (e *Engine) execPersist(ctx context.Context, r *run, st *lang.Step) {
	v, ok := r.vars.Lookup(st.Source)
	if !ok {
		r.warn("persist: variable %q not found", st.Source)
		return
	}
	if e.sinks == nil {
		r.warn("persist: no sinks configured for destination %q", st.Dest)
		return
	}
	s, arg, err := e.sinks.Route(st.Dest)
	if err != nil {
		r.warn("persist: %v", err)
		return
	}
	if err := s.Write(ctx, arg, v); err != nil {
		e.metrics.SinkWrite(s.Name(), "fault")
		r.warn("persist to %q failed: %v", st.Dest, err)
		return
	}
	e.metrics.SinkWrite(s.Name(), "ok")
}

func (e *Engine) execEmit(r *run, st *lang.Step) {
	ev := Event{Name: st.Event}
	if st.Payload != "" {
		if v, ok := r.vars.Lookup(st.Payload); ok {
			ev.Payload = v
		}
	}
	e.publish(r, ev)
}

func (e *Engine) publish(r *run, ev Event) {
	ev.RunID = r.id
	ev.Time = time.Now().UTC()
	r.mu.Lock()
	r.events++
	r.mu.Unlock()
	e.bus.Publish(ev)
}

func isAskAction(action string) bool {
	return strings.HasPrefix(strings.ToLower(action), "ask")
}
