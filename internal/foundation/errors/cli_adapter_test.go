package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

type exitErr struct{ code int }

func (e exitErr) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitErr) ExitCode() int { return e.code }

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "auth", err: AuthError("unauthorized").Build(), expected: 5},
		{name: "config", err: ConfigError("missing smtp.host").Build(), expected: 7},
		{name: "git", err: GitError("push rejected").Build(), expected: 8},
		{name: "filesystem", err: FileSystemError("chmod failed").Build(), expected: 11},
		{name: "internal", err: InternalError("boom").Build(), expected: 10},
		{name: "unclassified", err: errors.New("unknown"), expected: 1},
		{
			name:     "command exit status wins over category",
			err:      CommandError("step failed").WithCause(exitErr{code: 3}).Build(),
			expected: 3,
		},
		{
			name:     "bare exit coder",
			err:      fmt.Errorf("run: %w", exitErr{code: 42}),
			expected: 42,
		},
		{
			name:     "interrupted",
			err:      RuntimeError("build interrupted").WithCause(context.Canceled).Build(),
			expected: 130,
		},
		{
			name:     "timed out",
			err:      RuntimeError("build interrupted").WithCause(context.DeadlineExceeded).Build(),
			expected: 124,
		},
		{
			name:     "signal-killed exit coder falls back to category",
			err:      CommandError("step failed").WithCause(exitErr{code: -1}).Build(),
			expected: 11,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
			if got := ExitCodeOf(tt.err); got != tt.expected {
				t.Errorf("ExitCodeOf() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	loud := NewCLIErrorAdapter(true, nil)
	err := ConfigError("configuration not found: smtp.host").Build()

	if got := quiet.FormatError(err); got != "configuration not found: smtp.host" {
		t.Errorf("unexpected quiet format: %q", got)
	}
	if got := loud.FormatError(err); !strings.Contains(got, "[config:fatal]") {
		t.Errorf("expected verbose format to include category tag, got %q", got)
	}
	if got := quiet.FormatError(GitError("pull failed").Build()); got != "git: pull failed" {
		t.Errorf("unexpected git format: %q", got)
	}
	if got := quiet.FormatError(errors.New("x")); got != "Error: x" {
		t.Errorf("unexpected plain format: %q", got)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logBuf, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logBuf, nil)))
	adapter.out = &out
	var code int
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(CommandError("step failed").WithCause(exitErr{code: 4}).Build())

	if code != 4 {
		t.Fatalf("expected exit 4, got %d", code)
	}
	if !strings.Contains(out.String(), "command: step failed") {
		t.Errorf("unexpected user output: %q", out.String())
	}
	if !strings.Contains(logBuf.String(), "exit_code=4") {
		t.Errorf("expected exit code in log, got %q", logBuf.String())
	}
}
