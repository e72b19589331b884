package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/autobuild/internal/config"
	"git.home.luguber.info/inful/autobuild/internal/logging"
)

// Global is the state shared by every subcommand.
type Global struct {
	Context context.Context
	Stdout  io.Writer
	Stderr  io.Writer
}

func (g *Global) ctx() context.Context {
	if g.Context == nil {
		return context.Background()
	}
	return g.Context
}

func (g *Global) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) stderr() io.Writer {
	if g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"${config_file}"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Steps    StepsCmd    `cmd:"" default:"withargs" help:"Run the build commands in order, stopping at the first failure"`
	Run      RunCmd      `cmd:"" help:"Run the automated build: pull, build, publish, notify on failure"`
	Init     InitCmd     `cmd:"" help:"Initialize a new configuration file"`
	Daemon   DaemonCmd   `cmd:"" help:"Run the automated build on the configured schedule"`
	History  HistoryCmd  `cmd:"" help:"Show recent automated build runs"`
	Validate ValidateCmd `cmd:"" help:"Check the configuration file"`
}

// Vars are the interpolation variables the CLI tags expect.
func Vars(versionLine string) kong.Vars {
	return kong.Vars{"version": versionLine, "config_file": config.DefaultConfigFile}
}

// AfterApply runs after flag parsing; setup console logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := logging.ResolveLevel(c.Verbose, "")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	slog.Debug("Configuration loaded", slog.String("path", root.Config))
	return cfg, nil
}
