package commands

import (
	"context"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/autobuild/internal/config"
	"git.home.luguber.info/inful/autobuild/internal/events"
	"git.home.luguber.info/inful/autobuild/internal/history"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
	"git.home.luguber.info/inful/autobuild/internal/logging"
	"git.home.luguber.info/inful/autobuild/internal/metrics"
	"git.home.luguber.info/inful/autobuild/internal/pipeline"
)

// TriggerManual marks runs started from the command line.
const TriggerManual = "manual"

// RunCmd implements the 'run' command.
type RunCmd struct{}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	_, err = RunOnce(g.ctx(), cfg, RunOptions{
		Trigger: TriggerManual,
		Verbose: root.Verbose,
		Output:  g.stdout(),
		Console: g.stderr(),
	})
	return err
}

// RunOptions tune one automated build run.
type RunOptions struct {
	Trigger  string
	Verbose  bool
	Recorder metrics.Recorder
	Output   io.Writer // build command output
	Console  io.Writer // log output besides the run log file
	Now      func() time.Time
}

// RunOnce performs one automated build: it opens the run log, prunes
// expired logs, wires run history and event publication, and executes the
// pipeline. The returned error carries the exit status for the process.
func RunOnce(ctx context.Context, cfg *config.Config, opts RunOptions) (*pipeline.Report, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	session, err := logging.Setup(logging.Options{
		Directory: cfg.Logging.Directory,
		Verbose:   opts.Verbose,
		Level:     cfg.Logging.Level,
		Console:   opts.Console,
		Now:       opts.Now,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Close() }()

	retention := time.Duration(cfg.Logging.RetentionDays) * 24 * time.Hour
	if removed, err := logging.PruneOld(cfg.Logging.Directory, retention, opts.Now()); err != nil {
		slog.Warn("Failed to prune old log files", logfields.Error(err))
	} else if len(removed) > 0 {
		slog.Info("Pruned old log files", slog.Int("count", len(removed)))
	}

	var publishers events.Multi
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			slog.Warn("Run history unavailable", logfields.Path(cfg.History.Path), logfields.Error(err))
		} else {
			defer func() { _ = store.Close() }()
			publishers = append(publishers, store)
		}
	}
	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			slog.Warn("Event publication unavailable", slog.String("url", cfg.Events.NATSURL), logfields.Error(err))
		} else {
			defer func() { _ = pub.Close() }()
			publishers = append(publishers, pub)
		}
	}

	p := pipeline.New(cfg, pipeline.Deps{
		Publisher: publishers,
		Recorder:  opts.Recorder,
		Output:    opts.Output,
		LogPath:   session.Path,
		Trigger:   opts.Trigger,
		Now:       opts.Now,
	})
	return p.Execute(ctx)
}
