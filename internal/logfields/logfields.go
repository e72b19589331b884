package logfields

import (
	"log/slog"
	"strings"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyStep       = "step"
	KeyStepIndex  = "step_index"
	KeyCommand    = "command"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyRemote     = "remote"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeySchedule   = "schedule"
	KeyRecipient  = "recipient"
	KeySubject    = "subject"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Step(desc string) slog.Attr       { return slog.String(KeyStep, desc) }
func StepIndex(i int) slog.Attr        { return slog.Int(KeyStepIndex, i) }
func ExitCode(code int) slog.Attr      { return slog.Int(KeyExitCode, code) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Remote(name string) slog.Attr     { return slog.String(KeyRemote, name) }
func Branch(name string) slog.Attr     { return slog.String(KeyBranch, name) }
func Commit(hash string) slog.Attr     { return slog.String(KeyCommit, hash) }
func Schedule(expr string) slog.Attr   { return slog.String(KeySchedule, expr) }
func Recipient(addr string) slog.Attr  { return slog.String(KeyRecipient, addr) }
func Subject(subject string) slog.Attr { return slog.String(KeySubject, subject) }

// Command renders argv as a single space separated string.
func Command(args []string) slog.Attr { return slog.String(KeyCommand, strings.Join(args, " ")) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
