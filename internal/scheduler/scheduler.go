// Package scheduler runs workflows on cron schedules. Jobs come from the
// host configuration; the scheduler only knows how to hand a workflow
// source path and inputs to a Runner.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner executes one workflow file with the given inputs. The host
// implements it around lang.Parse and engine.Execute.
type Runner interface {
	RunWorkflow(ctx context.Context, source string, inputs map[string]any) error
}

// Job is one scheduled workflow execution.
type Job struct {
	Name     string            `yaml:"name" json:"name"`
	Schedule string            `yaml:"schedule" json:"schedule"` // standard 5-field cron expression
	Workflow string            `yaml:"workflow" json:"workflow"`
	Inputs   map[string]string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    *zap.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
}

func New(runner Runner, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		log:     log,
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the jobs and begins the cron loop. Invalid jobs are
// skipped with a log line; a bad schedule never prevents the rest from
// starting.
func (s *Scheduler) Start(jobs []Job) {
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			s.log.Warn("skipping scheduled job",
				zap.String("job", job.Name),
				zap.Error(err))
		}
	}
	s.cron.Start()
}

// Stop cancels running jobs and waits for the cron loop to drain.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	return out
}

// Add registers one job. The schedule must be a valid cron expression.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Workflow == "" {
		return fmt.Errorf("job %q: workflow path is required", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.Name]; exists {
		return fmt.Errorf("job %q already exists", job.Name)
	}

	id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(job) })
	if err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", job.Name, job.Schedule, err)
	}
	s.entries[job.Name] = id
	return nil
}

func (s *Scheduler) execute(job Job) {
	inputs := make(map[string]any, len(job.Inputs))
	for k, v := range job.Inputs {
		inputs[k] = v
	}
	if err := s.runner.RunWorkflow(s.ctx, job.Workflow, inputs); err != nil {
		s.log.Warn("scheduled workflow failed",
			zap.String("job", job.Name),
			zap.String("workflow", job.Workflow),
			zap.Error(err))
		return
	}
	s.log.Info("scheduled workflow completed",
		zap.String("job", job.Name),
		zap.String("workflow", job.Workflow))
}
