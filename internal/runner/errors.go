package runner

import (
	"context"
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// Exit codes used when the child never produced a status of its own.
const (
	ExitCannotExecute = 126
	ExitNotFound      = 127
	ExitTimeout       = 124
	ExitInterrupted   = 130
)

// CommandError reports the command that stopped the sequence.
type CommandError struct {
	Command Command
	Index   int
	Code    int
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed: %s (exit status %d): %v", e.Command.String(), e.Code, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode returns the status that should be handed to the caller.
func (e *CommandError) ExitCode() int { return e.Code }

// ExitCode maps an error returned by Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	}
	if coder, ok := ferrors.AsExitCoder(err); ok && coder.ExitCode() > 0 {
		return coder.ExitCode()
	}
	if ferrors.HasCategory(err, ferrors.CategoryValidation) {
		return 2
	}
	return 1
}
