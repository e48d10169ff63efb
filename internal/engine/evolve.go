package engine

import (
	"context"
	"fmt"

	"github.com/proseflow/proseflow/internal/lang"
)

// execEvolve re-invokes the most recent prior ask-style action that had a
// save-target, feeding the step's feedback back into the prompt on every
// attempt. The number of attempts is bounded by the workflow's generation
// ceiling (default 1); each attempt overwrites the save-target and emits a
// debrief event. A missing prior ask step copies the current value through
// and records a warning — Evolve never fails the workflow.
func (e *Engine) execEvolve(ctx context.Context, r *run, st *lang.Step) error {
	ask, ok := r.lastAsk()
	if !ok {
		r.warn("evolve %q: no prior ask step with a save target", st.Target)
		if st.SaveAs != "" {
			v, _ := r.vars.Lookup(st.SaveAs)
			r.vars.Set(st.SaveAs, v)
		}
		return nil
	}

	generations := r.wf.MaxGenerations
	if generations <= 0 {
		generations = 1
	}

	prompt := ask.action
	for attempt := 1; attempt <= generations; attempt++ {
		prompt = fmt.Sprintf("%s\nFeedback: %s", prompt, st.Feedback)

		val, err := e.dispatch(ctx, r, prompt)
		if err != nil {
			return err
		}
		r.vars.Set(ask.saveAs, val)

		e.publish(r, Event{
			Name:    "debrief",
			Agent:   st.Target,
			Message: fmt.Sprintf("evolve attempt %d/%d for %q", attempt, generations, ask.saveAs),
		})
	}
	return nil
}
