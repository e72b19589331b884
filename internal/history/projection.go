package history

import (
	"context"
	"time"

	"git.home.luguber.info/inful/autobuild/internal/events"
)

// Publish lets the store subscribe to run events: runs are opened on
// RunStarted, steps appended on StepFinished and runs closed on RunFinished.
func (s *Store) Publish(ctx context.Context, evt events.Event) error {
	switch e := evt.(type) {
	case events.RunStarted:
		return s.RecordRun(ctx, Run{ID: e.RunID, Trigger: e.Trigger, Started: e.At})
	case events.StepFinished:
		return s.RecordStep(ctx, e.RunID, Step{
			Index:       e.Index,
			Description: e.Description,
			Command:     e.Command,
			ExitCode:    e.ExitCode,
			Duration:    time.Duration(e.DurationMS) * time.Millisecond,
			Error:       e.Error,
			Finished:    e.At,
		})
	case events.RunFinished:
		return s.FinishRun(ctx, e.RunID, Outcome{
			Status:   e.Status,
			Stage:    e.Stage,
			ExitCode: e.ExitCode,
			Error:    e.Error,
			Finished: e.At,
		})
	default:
		return nil
	}
}

var _ events.Publisher = (*Store)(nil)
