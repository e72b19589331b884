package commands

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/autobuild/internal/config"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/runner"
)

// StepsCmd implements the 'steps' command, the default when no command is given.
type StepsCmd struct {
	Builtin bool `help:"Run the built-in compiler invocations instead of the configured steps (creates bin/)"`
}

func (s *StepsCmd) Run(g *Global, root *CLI) error {
	cmds, timeout, err := s.commands(root)
	if err != nil {
		return err
	}

	r := runner.New(
		runner.WithStdout(g.stdout()),
		runner.WithStderr(g.stderr()),
		runner.WithStepTimeout(timeout),
	)
	_, err = r.Run(g.ctx(), cmds)
	return err
}

func (s *StepsCmd) commands(root *CLI) ([]runner.Command, time.Duration, error) {
	if s.Builtin {
		return builtinCommands()
	}
	if _, err := os.Stat(root.Config); errors.Is(err, fs.ErrNotExist) && root.Config == config.DefaultConfigFile {
		slog.Info("No configuration file, running built-in steps", slog.String("path", root.Config))
		return builtinCommands()
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return nil, 0, err
	}
	cmds, err := cfg.Commands()
	if err != nil {
		return nil, 0, err
	}
	return cmds, cfg.StepTimeout(), nil
}

// builtinCommands returns the compiler invocations and creates the directory
// they write into.
func builtinCommands() ([]runner.Command, time.Duration, error) {
	if err := os.MkdirAll(runner.DefaultOutputDir, 0o750); err != nil {
		return nil, 0, ferrors.FileSystemError("failed to create output directory").
			WithCause(err).
			WithContext("path", runner.DefaultOutputDir).
			Build()
	}
	return runner.DefaultCommands(), 0, nil
}
