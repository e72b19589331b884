// Package daemon keeps autobuild running: it triggers the build pipeline on
// a cron expression or interval, reloads the configuration file when it
// changes, and serves Prometheus metrics.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/autobuild/internal/config"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
	"git.home.luguber.info/inful/autobuild/internal/metrics"
	"git.home.luguber.info/inful/autobuild/internal/pipeline"
)

// Trigger names recorded with each run.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)

// ErrAlreadyRunning is returned by Start on a running daemon.
var ErrAlreadyRunning = errors.New("daemon already running")

// RunFunc executes one pipeline run with the given configuration.
type RunFunc func(ctx context.Context, cfg *config.Config, trigger string) (*pipeline.Report, error)

// Option customises a Daemon.
type Option func(*Daemon)

// WithRegistry shares a Prometheus registry with the caller so per-run
// recorders and the daemon gauges are served from the same endpoint.
func WithRegistry(reg *prom.Registry) Option {
	return func(d *Daemon) { d.registry = reg }
}

// WithReloadDebounce sets how long file changes must settle before a reload.
func WithReloadDebounce(dur time.Duration) Option {
	return func(d *Daemon) { d.debounce = dur }
}

// WithRunOnStart runs the pipeline once as soon as the daemon starts.
func WithRunOnStart() Option {
	return func(d *Daemon) { d.runOnStart = true }
}

// Daemon schedules pipeline runs.
type Daemon struct {
	cfgPath    string
	run        RunFunc
	registry   *prom.Registry
	debounce   time.Duration
	runOnStart bool

	mu      sync.RWMutex
	cfg     *config.Config
	last    *pipeline.Report
	started bool

	runMu   sync.Mutex // one pipeline run at a time
	running atomic.Bool
	runs    atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	scheduler *Scheduler
	watcher   *ConfigWatcher
	server    *metrics.Server
	wg        sync.WaitGroup
	gauges    sync.Once
}

// New creates a daemon for the configuration loaded from cfgPath.
func New(cfgPath string, cfg *config.Config, run RunFunc, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ValidationError("configuration is required").Build()
	}
	if run == nil {
		return nil, ferrors.ValidationError("run function is required").Build()
	}
	d := &Daemon{
		cfgPath:  cfgPath,
		cfg:      cfg,
		run:      run,
		debounce: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = prom.NewRegistry()
	}
	return d, nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// LastReport returns the report of the most recent run, or nil.
func (d *Daemon) LastReport() *pipeline.Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Runs returns how many pipeline runs have completed.
func (d *Daemon) Runs() int64 { return d.runs.Load() }

// Start schedules the build job, starts the config watcher and, when a
// listen address is configured, the metrics server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.started = true
	cfg := d.cfg
	d.mu.Unlock()

	d.ctx, d.cancel = context.WithCancel(ctx)
	fail := func(err error) error {
		d.cancel()
		d.mu.Lock()
		d.started = false
		d.mu.Unlock()
		return err
	}

	sched, err := NewScheduler()
	if err != nil {
		return fail(ferrors.DaemonError("failed to create scheduler").WithCause(err).Build())
	}
	d.scheduler = sched
	if err := d.scheduler.Schedule(cfg.Schedule, d.scheduledRun); err != nil {
		_ = d.scheduler.Stop()
		return fail(err)
	}

	if cfg.Metrics.Listen != "" {
		d.registerGauges()
		d.server = metrics.NewServer(cfg.Metrics.Listen, d.registry, cfg.Metrics.MaxConnections)
		if err := d.server.Start(); err != nil {
			_ = d.scheduler.Stop()
			return fail(err)
		}
	}

	if d.cfgPath != "" {
		watcher, err := NewConfigWatcher(d.cfgPath, d.ApplyConfig, d.debounce)
		if err != nil {
			slog.Warn("Config watcher unavailable", logfields.Error(err))
		} else if err := watcher.Start(d.ctx); err != nil {
			slog.Warn("Config watcher unavailable", logfields.Error(err))
			_ = watcher.Stop()
		} else {
			d.watcher = watcher
		}
	}

	d.scheduler.Start()

	if d.runOnStart {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_, _ = d.RunNow(d.ctx, TriggerStartup)
		}()
	}

	slog.Info("Daemon started")
	return nil
}

// Stop shuts everything down and waits for an in-flight run to finish.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	d.mu.Unlock()

	var errs []error
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	d.cancel()
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	d.wg.Wait()
	if d.server != nil {
		if err := d.server.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	slog.Info("Daemon stopped")
	return errors.Join(errs...)
}

// RunNow runs the pipeline immediately with the active configuration,
// waiting for any run already in progress.
func (d *Daemon) RunNow(ctx context.Context, trigger string) (*pipeline.Report, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.running.Store(true)
	defer d.running.Store(false)

	cfg := d.Config()
	report, err := d.run(ctx, cfg, trigger)
	d.runs.Add(1)

	d.mu.Lock()
	if report != nil {
		d.last = report
	}
	d.mu.Unlock()

	if err != nil {
		slog.Error("Automated build failed", slog.String("trigger", trigger), logfields.Error(err))
	}
	return report, err
}

// ApplyConfig swaps in a reloaded configuration. The build job is
// rescheduled when the schedule changed; other settings apply to the next run.
func (d *Daemon) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return ferrors.ValidationError("configuration is required").Build()
	}

	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	started := d.started
	d.mu.Unlock()

	if started && d.scheduler != nil && old.Schedule != cfg.Schedule {
		if err := d.scheduler.Schedule(cfg.Schedule, d.scheduledRun); err != nil {
			d.mu.Lock()
			d.cfg = old
			d.mu.Unlock()
			return err
		}
	}
	if old.Metrics != cfg.Metrics {
		slog.Warn("Metrics settings changed; restart the daemon to apply them")
	}
	return nil
}

func (d *Daemon) scheduledRun() {
	_, _ = d.RunNow(d.ctx, TriggerSchedule)
}

func (d *Daemon) registerGauges() {
	d.gauges.Do(d.mustRegisterGauges)
}

func (d *Daemon) mustRegisterGauges() {
	d.registry.MustRegister(
		prom.NewGaugeFunc(prom.GaugeOpts{
			Namespace: "autobuild",
			Name:      "daemon_run_in_progress",
			Help:      "1 while a pipeline run is executing",
		}, func() float64 {
			if d.running.Load() {
				return 1
			}
			return 0
		}),
		prom.NewGaugeFunc(prom.GaugeOpts{
			Namespace: "autobuild",
			Name:      "daemon_last_run_timestamp_seconds",
			Help:      "Unix time the most recent run finished",
		}, func() float64 {
			if r := d.LastReport(); r != nil && !r.Finished.IsZero() {
				return float64(r.Finished.Unix())
			}
			return 0
		}),
		prom.NewGaugeFunc(prom.GaugeOpts{
			Namespace: "autobuild",
			Name:      "daemon_next_run_timestamp_seconds",
			Help:      "Unix time of the next scheduled run",
		}, func() float64 {
			if d.scheduler == nil {
				return 0
			}
			next, err := d.scheduler.NextRun()
			if err != nil {
				return 0
			}
			return float64(next.Unix())
		}),
	)
}
