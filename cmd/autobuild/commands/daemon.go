package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/autobuild/internal/config"
	"git.home.luguber.info/inful/autobuild/internal/daemon"
	"git.home.luguber.info/inful/autobuild/internal/metrics"
	"git.home.luguber.info/inful/autobuild/internal/pipeline"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	RunNow bool `help:"Run the automated build once at startup"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return RunDaemon(g, cfg, root.Config, root.Verbose, d.RunNow)
}

// RunDaemon runs scheduled builds until the context is cancelled.
func RunDaemon(g *Global, cfg *config.Config, configPath string, verbose, runNow bool) error {
	slog.Info("Starting daemon mode", slog.String("config", configPath))

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	run := func(ctx context.Context, cfg *config.Config, trigger string) (*pipeline.Report, error) {
		return RunOnce(ctx, cfg, RunOptions{
			Trigger:  trigger,
			Verbose:  verbose,
			Recorder: recorder,
			Output:   g.stdout(),
			Console:  g.stderr(),
		})
	}

	opts := []daemon.Option{daemon.WithRegistry(reg)}
	if runNow {
		opts = append(opts, daemon.WithRunOnStart())
	}
	d, err := daemon.New(configPath, cfg, run, opts...)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx := g.ctx()
	if err := d.Start(ctx); err != nil {
		return err
	}

	slog.Info("Daemon started, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}
