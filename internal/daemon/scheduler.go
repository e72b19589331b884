package daemon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/autobuild/internal/config"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
)

// Scheduler wraps a gocron scheduler holding the single build job.
type Scheduler struct {
	scheduler gocron.Scheduler
	mu        sync.Mutex
	jobID     uuid.UUID
	hasJob    bool
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for a running build.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// Schedule installs (or replaces) the build job. The job runs in singleton
// mode: a tick that arrives while a build is still running is skipped.
func (s *Scheduler) Schedule(sc config.ScheduleConfig, task func()) error {
	def, expr, err := definition(sc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasJob {
		if err := s.scheduler.RemoveJob(s.jobID); err != nil {
			slog.Warn("Failed to remove previous build job", logfields.Error(err))
		}
		s.hasJob = false
	}

	job, err := s.scheduler.NewJob(def,
		gocron.NewTask(task),
		gocron.WithName("automated-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return ferrors.DaemonError("failed to create scheduled build job").
			WithCause(err).
			WithContext("schedule", expr).
			Build()
	}
	s.jobID = job.ID()
	s.hasJob = true

	if next, err := job.NextRun(); err == nil && !next.IsZero() {
		slog.Info("Scheduled automated build", logfields.Schedule(expr), slog.Time("next_run", next))
	} else {
		slog.Info("Scheduled automated build", logfields.Schedule(expr))
	}
	return nil
}

// NextRun returns when the build job fires next.
func (s *Scheduler) NextRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasJob {
		return time.Time{}, fmt.Errorf("no build job scheduled")
	}
	for _, j := range s.scheduler.Jobs() {
		if j.ID() == s.jobID {
			return j.NextRun()
		}
	}
	return time.Time{}, fmt.Errorf("build job %s not found", s.jobID)
}

// definition turns the schedule section into a gocron job definition.
// A cron expression wins over an interval.
func definition(sc config.ScheduleConfig) (gocron.JobDefinition, string, error) {
	switch {
	case sc.Cron != "":
		return gocron.CronJob(sc.Cron, false), sc.Cron, nil
	case sc.Interval != "":
		d, err := time.ParseDuration(sc.Interval)
		if err != nil || d <= 0 {
			return nil, "", ferrors.ValidationError(fmt.Sprintf("invalid configuration schedule.interval: %q", sc.Interval)).Build()
		}
		return gocron.DurationJob(d), "every " + d.String(), nil
	default:
		return nil, "", ferrors.ConfigError("configuration not found: schedule.cron or schedule.interval").Build()
	}
}
