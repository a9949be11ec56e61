// Package app wires every nuvom component into one process: config,
// logger, capability registry, task registry, queue/result backends,
// runner, worker pool, scheduler, and the metrics exporter. Grounded on the
// teacher's internal/app.App (a single struct assembled once by New, then
// driven by Start/Close), generalized from an HTTP+Postgres backend to a
// job-queue engine with no HTTP surface of its own beyond /metrics.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nuvom/nuvom/internal/config"
	"github.com/nuvom/nuvom/internal/discovery"
	"github.com/nuvom/nuvom/internal/job"
	"github.com/nuvom/nuvom/internal/metrics"
	"github.com/nuvom/nuvom/internal/nuvomlog"
	"github.com/nuvom/nuvom/internal/plugin"
	"github.com/nuvom/nuvom/internal/queue"
	"github.com/nuvom/nuvom/internal/registry"
	"github.com/nuvom/nuvom/internal/result"
	"github.com/nuvom/nuvom/internal/runner"
	"github.com/nuvom/nuvom/internal/scheduler"
	"github.com/nuvom/nuvom/internal/worker"
)

// App is the fully wired process: every component a CLI subcommand needs
// is reachable off this struct.
type App struct {
	Cfg      *config.Config
	Log      *nuvomlog.Logger
	Registry *registry.Registry
	Tasks    *job.TaskRegistry

	Queue   queue.Backend
	Results result.Backend

	Runner *runner.Runner
	Pool   *worker.Pool

	Scheduler  *scheduler.Scheduler
	MetricsReg *metrics.Registry

	promReg       *prometheus.Registry
	metricsServer *metrics.Server

	cancel context.CancelFunc
}

// Options carries the handful of knobs a CLI invocation can set beyond the
// environment-sourced Config: where to discover tasks from, and an
// optional plugin declaration file.
type Options struct {
	DiscoveryRoot    string
	DiscoveryInclude []string
	DiscoveryExclude []string
	PluginFile       string
	ScheduleDSN      string // empty disables the scheduler
}

// New builds an App from cfg: logger, registry with built-ins, the
// configured queue/result backend pair, runner, worker pool, optional
// scheduler, and the metrics registrar. When opts.DiscoveryRoot is set it
// runs discovery and logs a failure as a warning; no tasks are registered
// from the result. It does not start any
// goroutines; call Start for that.
func New(cfg *config.Config, opts Options) (*App, error) {
	log, err := nuvomlog.New(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	reg := registry.New()
	if err := reg.EnsureBuiltins(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("register builtins: %w", err)
	}
	if opts.PluginFile != "" {
		specs, err := plugin.LoadDeclarationFile(opts.PluginFile)
		if err != nil {
			log.Warn("plugin declaration file could not be read", "path", opts.PluginFile, "error", err)
		} else if errs := plugin.Load(reg, specs); len(errs) > 0 {
			for _, e := range errs {
				log.Warn("plugin failed to load", "error", e)
			}
		}
	}

	q, err := resolveQueue(reg, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("resolve queue backend: %w", err)
	}
	results, err := resolveResults(reg, cfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("resolve result backend: %w", err)
	}

	tasks := job.NewTaskRegistry(false)
	if opts.DiscoveryRoot != "" {
		if _, err := discovery.Discover(opts.DiscoveryRoot, opts.DiscoveryInclude, opts.DiscoveryExclude); err != nil {
			log.Warn("task discovery failed", "error", err)
		}
	}

	defaults := runner.Defaults{TimeoutSecs: cfg.JobTimeoutSecs, RetryDelay: cfg.RetryDelaySecs}
	r := runner.New(tasks, q, results, log, defaults)

	pool := worker.New(worker.Config{NumWorkers: cfg.MaxWorkers, BatchSize: cfg.BatchSize}, q, r, log)

	metricsReg, promReg := metrics.New()
	r.SetMetrics(metricsReg)
	pool.SetMetrics(metricsReg)

	a := &App{
		Cfg:        cfg,
		Log:        log,
		Registry:   reg,
		Tasks:      tasks,
		Queue:      q,
		Results:    results,
		Runner:     r,
		Pool:       pool,
		MetricsReg: metricsReg,
		promReg:    promReg,
	}

	if opts.ScheduleDSN != "" {
		store, err := scheduler.OpenStore(opts.ScheduleDSN)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("open schedule store: %w", err)
		}
		sched := scheduler.New(store, tasks, q, results, log)
		sched.SetMetrics(metricsReg)
		a.Scheduler = sched
	}

	if cfg.PrometheusPort > 0 {
		a.metricsServer = metrics.NewServer(promReg, cfg.PrometheusPort, log)
	}

	return a, nil
}

// resolveQueue resolves and, if needed, lazily starts the configured queue
// provider. The memory provider is already started by EnsureBuiltins; file
// and external providers are started here with the real config subset.
func resolveQueue(reg *registry.Registry, cfg *config.Config) (queue.Backend, error) {
	provider, err := reg.Get(registry.CapabilityQueueBackend, cfg.QueueBackend)
	if err != nil {
		return nil, err
	}
	if provider.Instance() == nil {
		settings := map[string]interface{}{
			"dir":  cfg.QueueDir,
			"addr": cfg.RedisAddr,
			"key":  cfg.RedisQueueKey,
		}
		if err := provider.Start(settings); err != nil {
			return nil, err
		}
	}
	q, ok := provider.Instance().(queue.Backend)
	if !ok {
		return nil, fmt.Errorf("provider %s does not implement queue.Backend", provider.Name())
	}
	return q, nil
}

func resolveResults(reg *registry.Registry, cfg *config.Config) (result.Backend, error) {
	provider, err := reg.Get(registry.CapabilityResultBackend, cfg.ResultBackend)
	if err != nil {
		return nil, err
	}
	if provider.Instance() == nil {
		settings := map[string]interface{}{"dir": cfg.ResultDir, "dsn": cfg.SQLiteDBPath}
		if err := provider.Start(settings); err != nil {
			return nil, err
		}
	}
	rb, ok := provider.Instance().(result.Backend)
	if !ok {
		return nil, fmt.Errorf("provider %s does not implement result.Backend", provider.Name())
	}
	return rb, nil
}

// Start launches the worker pool, the optional scheduler, and the metrics
// HTTP server. Returns immediately; none of these block the caller.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.Pool.Start(runCtx)

	if a.Scheduler != nil {
		if err := a.Scheduler.Load(runCtx); err != nil {
			a.Log.Error("scheduler failed to load schedules", "error", err)
		} else {
			go a.Scheduler.Run(runCtx)
		}
	}

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.Start(runCtx); err != nil {
				a.Log.Warn("metrics server stopped", "error", err)
			}
		}()
	}
}

// Close stops the worker pool gracefully and tears down registered
// providers and the logger. Safe to call even if Start was never called.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Pool != nil {
		a.Pool.Shutdown()
	}
	if a.Registry != nil {
		a.Registry.StopAll()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
