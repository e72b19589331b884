// Package pipeline runs one automated build: pull the repository, run the
// build commands, publish the artifacts, and mail the run log when anything
// fails.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/autobuild/internal/config"
	"git.home.luguber.info/inful/autobuild/internal/events"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/git"
	"git.home.luguber.info/inful/autobuild/internal/history"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
	"git.home.luguber.info/inful/autobuild/internal/logging"
	"git.home.luguber.info/inful/autobuild/internal/metrics"
	"git.home.luguber.info/inful/autobuild/internal/notify"
	"git.home.luguber.info/inful/autobuild/internal/retry"
	"git.home.luguber.info/inful/autobuild/internal/runner"
)

// Stage names, in execution order.
const (
	StagePull    = "pull"
	StageBuild   = "build"
	StagePublish = "publish"
)

// Repository is the subset of the git client the pipeline needs.
type Repository interface {
	Pull(ctx context.Context) error
	Stage(path string) error
	Commit(message string, author object.Signature) (string, error)
	Push(ctx context.Context) error
}

// Deps are the collaborators of a pipeline. Zero values get defaults built
// from the configuration.
type Deps struct {
	Repo      Repository
	Mailer    notify.Mailer
	Publisher events.Publisher
	Recorder  metrics.Recorder
	Executor  runner.Executor
	Output    io.Writer // console destination for step output
	Progress  io.Writer // console destination for step progress messages
	LogPath   string    // run log attached to failure mails
	Trigger   string
	Now       func() time.Time
	NewID     func() string
}

// Report summarises a run.
type Report struct {
	RunID    string
	Trigger  string
	Started  time.Time
	Finished time.Time
	Stage    string // stage that failed, empty on success
	Steps    []runner.Result
	Commit   string // artifact commit hash, empty when nothing was committed
	ExitCode int
	Err      error
}

// Succeeded reports whether every stage completed.
func (r *Report) Succeeded() bool { return r.Err == nil }

// Pipeline is one configured automated build.
type Pipeline struct {
	cfg  *config.Config
	deps Deps
}

// New prepares a pipeline for cfg.
func New(cfg *config.Config, deps Deps) *Pipeline {
	if deps.Repo == nil {
		deps.Repo = git.NewClient(cfg.Repository.Path,
			git.WithAuth(cfg.Repository.Auth),
			git.WithRetry(retry.FromConfig(cfg.Retry)),
			git.WithRemote(cfg.Repository.Remote))
	}
	if deps.Mailer == nil && cfg.SMTP.IsEnabled() {
		deps.Mailer = notify.NewSMTPMailer(cfg.SMTP)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if deps.Output == nil {
		deps.Output = os.Stdout
	}
	if deps.Progress == nil {
		deps.Progress = deps.Output
	}
	if deps.Trigger == "" {
		deps.Trigger = "manual"
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// Execute runs the stages in order and stops at the first failure. A failed
// run sends the failure mail; cleanup always runs. The returned error is the
// stage failure, and Report.ExitCode is the status the process should exit with.
func (p *Pipeline) Execute(ctx context.Context) (*Report, error) {
	report := &Report{RunID: p.deps.NewID(), Trigger: p.deps.Trigger, Started: p.deps.Now()}
	log := slog.Default().With(logfields.RunID(report.RunID))

	log.Info("Starting automated build", slog.String("trigger", report.Trigger))
	p.publish(ctx, events.RunStarted{RunID: report.RunID, Trigger: report.Trigger, At: report.Started})

	err := p.run(ctx, report, log)
	if err != nil {
		report.Err = err
		report.ExitCode = ferrors.ExitCodeOf(err)
		log.Error("Automated build failed",
			logfields.Stage(report.Stage),
			logfields.ExitCode(report.ExitCode),
			logfields.Error(err))
		notify.NotifyFailure(context.WithoutCancel(ctx), p.deps.Mailer, p.cfg.SMTP, p.deps.LogPath, err)
	}

	p.cleanup(log)

	report.Finished = p.deps.Now()
	duration := report.Finished.Sub(report.Started)
	outcome := outcomeOf(err)
	p.deps.Recorder.ObserveRunDuration(duration)
	p.deps.Recorder.IncRunOutcome(outcome)

	finished := events.RunFinished{
		RunID:      report.RunID,
		Status:     statusOf(err),
		Stage:      report.Stage,
		ExitCode:   report.ExitCode,
		DurationMS: duration.Milliseconds(),
		At:         report.Finished,
	}
	if err != nil {
		finished.Error = err.Error()
	}
	p.publish(ctx, finished)

	if err == nil {
		log.Info("Automated build finished", logfields.DurationMS(float64(duration.Milliseconds())))
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *Report, log *slog.Logger) error {
	if p.cfg.Repository.PullEnabled() {
		report.Stage = StagePull
		if err := p.deps.Repo.Pull(ctx); err != nil {
			return err
		}
	}

	report.Stage = StageBuild
	if err := p.build(ctx, report, log); err != nil {
		return err
	}

	report.Stage = StagePublish
	if err := p.publishArtifacts(ctx, report, log); err != nil {
		return err
	}

	report.Stage = ""
	return nil
}

func (p *Pipeline) build(ctx context.Context, report *Report, log *slog.Logger) error {
	cmds, err := p.cfg.Commands()
	if err != nil {
		return err
	}

	if script := p.cfg.ScriptPath(); script != "" {
		if err := makeExecutable(script); err != nil {
			return err
		}
		log.Info("Made build script executable", logfields.Path(script))
	}

	scriptLog, err := logging.OpenScriptLog(p.cfg.Logging.Directory)
	if err != nil {
		return err
	}
	defer func() { _ = scriptLog.Close() }()
	out := io.MultiWriter(p.deps.Output, scriptLog)

	opts := []runner.Option{
		runner.WithStdout(out),
		runner.WithStderr(out),
		runner.WithProgress(p.deps.Progress),
		runner.WithRecorder(p.deps.Recorder),
		runner.WithPublisher(p.deps.Publisher),
		runner.WithStepTimeout(p.cfg.StepTimeout()),
		runner.WithRunID(report.RunID),
	}
	if p.deps.Executor != nil {
		opts = append(opts, runner.WithExecutor(p.deps.Executor))
	}

	log.Info("Running build", slog.Int("steps", len(cmds)), logfields.Path(scriptLog.Name()))
	res, err := runner.New(opts...).Run(ctx, cmds)
	report.Steps = res.Results
	return err
}

func (p *Pipeline) publishArtifacts(ctx context.Context, report *Report, log *slog.Logger) error {
	repo := p.cfg.Repository
	if err := p.deps.Repo.Stage(repo.BinaryDirectory); err != nil {
		return err
	}

	hash, err := p.deps.Repo.Commit(repo.CommitMessage, object.Signature{
		Name:  repo.AuthorName,
		Email: repo.AuthorEmail,
		When:  p.deps.Now(),
	})
	switch {
	case errors.Is(err, git.ErrNothingToCommit):
		log.Info("No new build artifacts to commit")
	case err != nil:
		return err
	default:
		report.Commit = hash
	}

	if !repo.PushEnabled() {
		log.Info("Push disabled, artifacts committed locally")
		return nil
	}
	return p.deps.Repo.Push(ctx)
}

func (p *Pipeline) cleanup(log *slog.Logger) {
	log.Info("Cleanup: nothing to clean")
}

// publish never fails a run; delivery problems are logged.
func (p *Pipeline) publish(ctx context.Context, evt events.Event) {
	if err := p.deps.Publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		slog.Warn("Failed to publish run event", slog.String("type", evt.EventType()), logfields.Error(err))
	}
}

func makeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return ferrors.FileSystemError("build script not found").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
		return ferrors.FileSystemError("failed to make build script executable").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, context.Canceled), runner.ExitCode(err) == runner.ExitInterrupted:
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeFailed
	}
}

func statusOf(err error) string {
	if err == nil {
		return history.StatusSucceeded
	}
	return history.StatusFailed
}
