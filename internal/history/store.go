// Package history keeps a SQLite record of automated build runs and the
// steps they executed.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one automated build.
type Run struct {
	ID       string
	Trigger  string
	Status   string
	Stage    string // failing stage, empty on success
	ExitCode int
	Error    string
	Started  time.Time
	Finished time.Time // zero while running
}

// Duration returns the elapsed run time, zero while running.
func (r Run) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Step is one executed command of a run.
type Step struct {
	Index       int
	Description string
	Command     string
	ExitCode    int
	Duration    time.Duration
	Error       string
	Finished    time.Time
}

// Outcome closes a run.
type Outcome struct {
	Status   string
	Stage    string
	ExitCode int
	Error    string
	Finished time.Time
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and creates) the history database. Use ":memory:" for an
// in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeError(err, "open sqlite database").WithContext("path", dbPath).Build()
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, storeError(err, "initialize schema").WithContext("path", dbPath).Build()
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		trigger_name TEXT NOT NULL,
		status TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT '',
		exit_code INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started INTEGER NOT NULL,
		finished INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		step_index INTEGER NOT NULL,
		description TEXT NOT NULL,
		command TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		finished INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a new run in the running state.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, trigger_name, status, started) VALUES (?, ?, ?, ?)",
		run.ID, run.Trigger, run.Status, run.Started.UnixNano(),
	)
	if err != nil {
		return storeError(err, "insert run").WithContext("run_id", run.ID).Build()
	}
	return nil
}

// RecordStep appends an executed step to a run.
func (s *Store) RecordStep(ctx context.Context, runID string, step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, step_index, description, command, exit_code, duration_ms, error, finished)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, step.Index, step.Description, step.Command, step.ExitCode,
		step.Duration.Milliseconds(), step.Error, step.Finished.UnixNano(),
	)
	if err != nil {
		return storeError(err, "insert step").WithContext("run_id", runID).Build()
	}
	return nil
}

// FinishRun closes a run with its outcome.
func (s *Store) FinishRun(ctx context.Context, runID string, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, stage = ?, exit_code = ?, error = ?, finished = ? WHERE id = ?",
		out.Status, out.Stage, out.ExitCode, out.Error, out.Finished.UnixNano(), runID,
	)
	if err != nil {
		return storeError(err, "update run").WithContext("run_id", runID).Build()
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trigger_name, status, stage, exit_code, error, started, finished
		 FROM runs ORDER BY started DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, storeError(err, "query runs").Build()
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Trigger, &r.Status, &r.Stage, &r.ExitCode, &r.Error, &started, &finished); err != nil {
			return nil, storeError(err, "scan run").Build()
		}
		r.Started = time.Unix(0, started)
		if finished.Valid {
			r.Finished = time.Unix(0, finished.Int64)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate runs").Build()
	}
	return runs, nil
}

// Steps returns the steps of a run in execution order.
func (s *Store) Steps(ctx context.Context, runID string) ([]Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_index, description, command, exit_code, duration_ms, error, finished
		 FROM steps WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, storeError(err, "query steps").WithContext("run_id", runID).Build()
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		var durationMS, finished int64
		if err := rows.Scan(&st.Index, &st.Description, &st.Command, &st.ExitCode, &durationMS, &st.Error, &finished); err != nil {
			return nil, storeError(err, "scan step").Build()
		}
		st.Duration = time.Duration(durationMS) * time.Millisecond
		st.Finished = time.Unix(0, finished)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "iterate steps").Build()
	}
	return steps, nil
}

func storeError(err error, msg string) *ferrors.ErrorBuilder {
	return ferrors.StoreError(msg).WithCause(err)
}
