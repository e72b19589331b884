// Package logging sets up the per-run log file and console output, and
// removes log files once they age past the retention window.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
)

const (
	// LevelEnv overrides the configured log level.
	LevelEnv = "AUTOBUILD_LOG_LEVEL"
	// ScriptLogName receives the output of the build commands, overwritten each run.
	ScriptLogName = "build_script.log"

	fileTimeLayout = "2006-01-02__15-04-05"
	fileSuffix     = "_build.log"
)

// Options controls Setup.
type Options struct {
	Directory string
	Verbose   bool
	Level     string    // configured level; LevelEnv wins, Verbose wins over both
	Console   io.Writer // defaults to os.Stderr
	Now       func() time.Time
}

// Session is an open run log.
type Session struct {
	Path   string
	Logger *slog.Logger
	file   *os.File
	prev   *slog.Logger
}

// Close closes the log file and restores the slog default that was active
// before Setup.
func (s *Session) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	if s.prev != nil {
		slog.SetDefault(s.prev)
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Setup creates the log directory, opens a timestamped log file and installs a
// text handler writing to both the file and the console as slog default.
func Setup(opts Options) (*Session, error) {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(opts.Directory, 0o750); err != nil {
		return nil, ferrors.FileSystemError("failed to create log directory").
			WithCause(err).
			WithContext("path", opts.Directory).
			Build()
	}

	path := filepath.Join(opts.Directory, FileName(opts.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, ferrors.FileSystemError("failed to open log file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	level := ResolveLevel(opts.Verbose, opts.Level)
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(f, opts.Console), &slog.HandlerOptions{Level: level}))
	prev := slog.Default()
	slog.SetDefault(logger)

	logger.Debug("Log file opened", logfields.Path(path), slog.String("level", level.String()))
	return &Session{Path: path, Logger: logger, file: f, prev: prev}, nil
}

// FileName returns the log file name for a run started at t.
func FileName(t time.Time) string {
	return t.Format(fileTimeLayout) + fileSuffix
}

// ResolveLevel picks the effective level: verbose forces debug, then the
// environment override, then the configured value, then info.
func ResolveLevel(verbose bool, configured string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	if lvl, ok := ParseLevel(os.Getenv(LevelEnv)); ok {
		return lvl
	}
	if lvl, ok := ParseLevel(configured); ok {
		return lvl
	}
	return slog.LevelInfo
}

// ParseLevel accepts debug, info, warn/warning and error (any case).
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// OpenScriptLog truncates and opens dir/build_script.log.
func OpenScriptLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, ferrors.FileSystemError("failed to create log directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}
	path := filepath.Join(dir, ScriptLogName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, ferrors.FileSystemError("failed to open build output log").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return f, nil
}

// PruneOld deletes regular files in dir whose modification time is at least
// retention before now. A missing directory is not an error.
func PruneOld(dir string, retention time.Duration, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ferrors.FileSystemError("failed to list log directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < retention {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		slog.Info("Deleted old log file", logfields.Path(path))
		removed = append(removed, path)
	}
	if len(errs) > 0 {
		return removed, ferrors.FileSystemError("failed to delete old log files").
			WithCause(errors.Join(errs...)).
			Warning().
			Build()
	}
	return removed, nil
}
