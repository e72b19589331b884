// Package runner executes an ordered list of external commands, stopping at
// the first one that fails and handing its exit status back to the caller.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/autobuild/internal/events"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
	"git.home.luguber.info/inful/autobuild/internal/metrics"
)

// Runner runs commands strictly one after another.
type Runner struct {
	stdout      io.Writer
	stderr      io.Writer
	progress    io.Writer
	executor    Executor
	recorder    metrics.Recorder
	publisher   events.Publisher
	stepTimeout time.Duration
	runID       string
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithStdout sets where child standard output goes.
func WithStdout(w io.Writer) Option { return func(r *Runner) { r.stdout = w } }

// WithStderr sets where child standard error goes.
func WithStderr(w io.Writer) Option { return func(r *Runner) { r.stderr = w } }

// WithProgress sets where the start and completion messages go.
func WithProgress(w io.Writer) Option { return func(r *Runner) { r.progress = w } }

// WithExecutor replaces the process starter.
func WithExecutor(e Executor) Option { return func(r *Runner) { r.executor = e } }

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// WithPublisher attaches a lifecycle event publisher.
func WithPublisher(p events.Publisher) Option { return func(r *Runner) { r.publisher = p } }

// WithStepTimeout bounds every single command. Zero means no limit.
func WithStepTimeout(d time.Duration) Option { return func(r *Runner) { r.stepTimeout = d } }

// WithRunID tags published events with the id of the surrounding run.
func WithRunID(id string) Option { return func(r *Runner) { r.runID = id } }

// New builds a Runner writing child output to the process stdout/stderr.
func New(opts ...Option) *Runner {
	r := &Runner{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		executor:  ExecExecutor{},
		recorder:  metrics.NoopRecorder{},
		publisher: events.Noop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.progress == nil {
		r.progress = r.stdout
	}
	return r
}

// Run executes cmds in order. On the first failure it prints the failure
// message and returns a Report holding only the commands that ran together
// with an error carrying a *CommandError. Later commands are never started.
func (r *Runner) Run(ctx context.Context, cmds []Command) (Report, error) {
	report := Report{Results: make([]Result, 0, len(cmds))}

	for i, c := range cmds {
		if len(c.Args) == 0 || c.Args[0] == "" {
			report.ExitCode = 2
			return report, ferrors.ValidationError(fmt.Sprintf("command %d (%q) has no program", i+1, c.Description)).
				WithContext("index", i).
				Build()
		}
	}

	for i, c := range cmds {
		if err := ctx.Err(); err != nil {
			report.ExitCode = ExitCode(err)
			return report, ferrors.RuntimeError("build interrupted").
				WithCause(err).
				WithContext("remaining", len(cmds)-i).
				Build()
		}

		res := r.runOne(ctx, i, c)
		report.Results = append(report.Results, res)

		if res.Err != nil {
			report.ExitCode = res.ExitCode
			cmdErr := &CommandError{Command: c, Index: i, Code: res.ExitCode, Err: res.Err}
			return report, ferrors.WrapError(cmdErr, ferrors.CategoryCommand, "build step failed").
				WithContext("step", c.Description).
				WithContext("exit_code", res.ExitCode).
				Build()
		}
	}
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, index int, c Command) Result {
	description := c.Description
	if description == "" {
		description = c.String()
	}

	r.printf("==> %s\n", description)
	slog.Info("Starting build step",
		logfields.StepIndex(index+1),
		logfields.Step(description),
		logfields.Command(c.Args))
	r.publish(ctx, events.StepStarted{
		RunID:       r.runID,
		Index:       index,
		Description: description,
		Command:     c.String(),
		At:          r.now(),
	})

	stepCtx := ctx
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}

	start := r.now()
	code, err := r.executor.Execute(stepCtx, c, r.stdout, r.stderr)
	duration := r.now().Sub(start)
	if err != nil && code == 0 {
		code = 1
	}
	if err == nil && code != 0 {
		err = fmt.Errorf("exit status %d", code)
	}

	res := Result{Command: c, ExitCode: code, Duration: duration, Err: err}

	r.recorder.ObserveStepDuration(description, duration)
	finished := events.StepFinished{
		RunID:       r.runID,
		Index:       index,
		Description: description,
		Command:     c.String(),
		ExitCode:    code,
		DurationMS:  duration.Milliseconds(),
		At:          r.now(),
	}

	if err != nil {
		finished.Error = err.Error()
		label := metrics.ResultFailed
		if code == ExitInterrupted {
			label = metrics.ResultCanceled
		}
		r.recorder.IncStepResult(description, label)
		r.publish(ctx, finished)

		r.printf("==> %s: failed (exit status %d)\n", description, code)
		slog.Error("Build step failed",
			logfields.StepIndex(index+1),
			logfields.Step(description),
			logfields.ExitCode(code),
			logfields.DurationMS(float64(duration.Milliseconds())),
			logfields.Error(err))
		return res
	}

	r.recorder.IncStepResult(description, metrics.ResultSuccess)
	r.publish(ctx, finished)

	r.printf("==> %s: done\n", description)
	slog.Info("Build step finished",
		logfields.StepIndex(index+1),
		logfields.Step(description),
		logfields.DurationMS(float64(duration.Milliseconds())))
	return res
}

func (r *Runner) printf(format string, args ...any) {
	if r.progress == nil {
		return
	}
	_, _ = fmt.Fprintf(r.progress, format, args...)
}

// publish never fails the build; delivery problems are only logged.
func (r *Runner) publish(ctx context.Context, evt events.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		slog.Warn("Failed to publish build event", slog.String("type", evt.EventType()), logfields.Error(err))
	}
}
