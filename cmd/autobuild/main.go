package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/autobuild/cmd/autobuild/commands"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("autobuild"),
		kong.Description("Run the build steps, publish the artifacts, and report failures."),
		commands.Vars(version.String()),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := parser.Run(&commands.Global{Context: ctx, Stdout: os.Stdout, Stderr: os.Stderr}, cli)
	stop()

	ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
