package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/autobuild/internal/config"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of runs to show" default:"20"`
	Steps bool `help:"Also list the steps of each run"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return h.print(g, cfg)
}

func (h *HistoryCmd) print(g *Global, cfg *config.Config) error {
	if cfg.History.Path == "" {
		return ferrors.ConfigError("configuration not found: history.path").Build()
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := g.ctx()
	runs, err := store.Recent(ctx, h.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(g.stdout(), "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tTRIGGER\tSTATUS\tSTAGE\tEXIT\tSTARTED\tDURATION")
	for _, run := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			run.ID, run.Trigger, run.Status, dash(run.Stage), run.ExitCode,
			run.Started.Local().Format(time.DateTime), run.Duration().Round(time.Millisecond))
		if h.Steps {
			if err := printSteps(ctx, tw, store, run.ID); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}

func printSteps(ctx context.Context, tw *tabwriter.Writer, store *history.Store, runID string) error {
	steps, err := store.Steps(ctx, runID)
	if err != nil {
		return err
	}
	for _, s := range steps {
		_, _ = fmt.Fprintf(tw, "  %d. %s\t%s\t\t\t%d\t\t%s\n",
			s.Index+1, s.Description, s.Command, s.ExitCode, s.Duration.Round(time.Millisecond))
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
