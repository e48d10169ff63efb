package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/proseflow/proseflow/internal/audit"
	"github.com/proseflow/proseflow/internal/config"
	"github.com/proseflow/proseflow/internal/engine"
	"github.com/proseflow/proseflow/internal/eventws"
	"github.com/proseflow/proseflow/internal/lang"
	"github.com/proseflow/proseflow/internal/metrics"
	"github.com/proseflow/proseflow/internal/resolver"
	"github.com/proseflow/proseflow/internal/scheduler"
	"github.com/proseflow/proseflow/internal/sink"
	"github.com/proseflow/proseflow/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	daemon := flag.Bool("daemon", false, "run scheduled jobs from config instead of a single workflow")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		os.Exit(0)
	}

	var err error
	if *daemon {
		err = runDaemon(*configPath)
	} else {
		if flag.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "usage: proseflow [-config file] workflow.flow [key=value ...]")
			os.Exit(2)
		}
		err = runOnce(*configPath, flag.Arg(0), flag.Args()[1:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// host bundles the collaborators one proseflow process owns.
type host struct {
	cfg      *config.Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	audit    *audit.Store
	sinks    *sink.Registry
	registry *resolver.Registry
	engine   *engine.Engine
	closers  []func()
}

func newHost(configPath string) (*host, error) {
	cfg := &config.Config{DataDir: ".proseflow"}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if cfg.DataDir == "" {
			cfg.DataDir = ".proseflow"
		}
	}

	log, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	h := &host{cfg: cfg, log: log}
	h.closers = append(h.closers, func() { _ = log.Sync() })

	h.audit, err = audit.Open(cfg.DataDir)
	if err != nil {
		h.close()
		return nil, err
	}
	h.closers = append(h.closers, func() { _ = h.audit.Close() })

	if err := h.buildSinks(); err != nil {
		h.close()
		return nil, err
	}

	h.registry = resolver.NewRegistry()
	if err := h.registry.RegisterResolver(resolver.Math()); err != nil {
		h.close()
		return nil, err
	}
	for _, script := range cfg.Resolvers.Lua {
		if err := h.registry.RegisterResolver(resolver.NewLuaResolver(script.Name, script.Script)); err != nil {
			h.close()
			return nil, err
		}
	}

	h.metrics = metrics.New(prometheus.NewRegistry())
	h.engine = engine.New(engine.Options{
		Logger:   log,
		Metrics:  h.metrics,
		Sinks:    h.sinks,
		Prompter: stdinPrompter{},
	})

	if cfg.Events.Listen != "" {
		b := eventws.NewBroadcaster(log)
		h.engine.Bus().Subscribe(b)
		go func() {
			if err := http.ListenAndServe(cfg.Events.Listen, b); err != nil {
				log.Warn("event stream server stopped", zap.Error(err))
			}
		}()
	}

	return h, nil
}

func (h *host) close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		h.closers[i]()
	}
}

func (h *host) buildSinks() error {
	h.sinks = sink.NewRegistry(sink.NewFileSink(""))

	sqliteSink, err := sink.NewSQLiteSink(h.cfg.DataDir)
	if err != nil {
		return err
	}
	h.sinks.AddStore("sqlite", sqliteSink)
	h.closers = append(h.closers, func() { _ = sqliteSink.Close() })

	if h.cfg.Sinks.Redis.Addr != "" {
		redisSink := sink.NewRedisSink(h.cfg.Sinks.Redis.Addr, h.cfg.Sinks.Redis.DB)
		h.sinks.AddStore("redis", redisSink)
		h.closers = append(h.closers, func() { _ = redisSink.Close() })
	}
	if h.cfg.Sinks.Postgres.DSN != "" {
		pgSink, err := sink.NewPostgresSink(h.cfg.Sinks.Postgres.DSN)
		if err != nil {
			return err
		}
		h.sinks.AddStore("postgres", pgSink)
		h.closers = append(h.closers, func() { _ = pgSink.Close() })
	}
	if h.cfg.Sinks.Default != "" {
		h.sinks.SetDefault(h.cfg.Sinks.Default)
	}
	return nil
}

// RunWorkflow implements scheduler.Runner.
func (h *host) RunWorkflow(ctx context.Context, source string, inputs map[string]any) error {
	result, err := h.execute(ctx, source, inputs)
	if result != nil {
		for _, w := range result.Warnings {
			h.log.Warn("workflow warning", zap.String("workflow", result.Workflow), zap.String("warning", w))
		}
	}
	return err
}

func (h *host) execute(ctx context.Context, workflowPath string, inputs map[string]any) (*engine.Result, error) {
	if ext := filepath.Ext(workflowPath); ext != ".flow" {
		return nil, fmt.Errorf("workflow file must have a .flow extension, got %q", ext)
	}
	data, err := os.ReadFile(workflowPath)
	if err != nil {
		return nil, fmt.Errorf("reading workflow: %w", err)
	}

	wf := lang.Parse(string(data))
	if wf.MaxGenerations == 0 {
		wf.MaxGenerations = h.cfg.Limits.MaxGenerations
	}

	resolvers, err := h.registry.Build(wf.Capabilities)
	if err != nil {
		return nil, err
	}
	chain := resolver.NewChain(resolvers, wf.Capabilities,
		resolver.WithAudit(h.audit),
		resolver.WithLogger(h.log),
		resolver.WithMetrics(h.metrics))

	return h.engine.Execute(ctx, wf, inputs, chain)
}

func runOnce(configPath, workflowPath string, args []string) error {
	h, err := newHost(configPath)
	if err != nil {
		return err
	}
	defer h.close()

	result, err := h.execute(context.Background(), workflowPath, parseInputs(args))
	if result != nil {
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
	}
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(result.Returns)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func runDaemon(configPath string) error {
	if configPath == "" {
		return fmt.Errorf("daemon mode requires -config")
	}
	h, err := newHost(configPath)
	if err != nil {
		return err
	}
	defer h.close()

	jobs := make([]scheduler.Job, 0, len(h.cfg.Scheduler.Jobs))
	for _, j := range h.cfg.Scheduler.Jobs {
		jobs = append(jobs, scheduler.Job{
			Name:     j.Name,
			Schedule: j.Schedule,
			Workflow: j.Workflow,
			Inputs:   j.Inputs,
		})
	}
	if len(jobs) == 0 {
		return fmt.Errorf("daemon mode: no scheduled jobs configured")
	}

	sched := scheduler.New(h, h.log)
	sched.Start(jobs)
	defer sched.Stop()

	h.log.Info("scheduler running", zap.Int("jobs", len(jobs)))
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logging level: %w", err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

// parseInputs turns trailing key=value arguments into the initial input
// map, coercing numeric and boolean literals.
func parseInputs(args []string) map[string]any {
	inputs := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			inputs[k] = n
		} else if b, err := strconv.ParseBool(v); err == nil {
			inputs[k] = b
		} else {
			inputs[k] = v
		}
	}
	return inputs
}

type stdinPrompter struct{}

func (stdinPrompter) Prompt(ctx context.Context, question string) (string, error) {
	fmt.Printf("%s ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
