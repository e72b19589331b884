package runner

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"time"
)

// Executor starts a command, waits for it and reports its exit status.
// Tests substitute fakes; production uses ExecExecutor.
type Executor interface {
	Execute(ctx context.Context, cmd Command, stdout, stderr io.Writer) (int, error)
}

// ExecExecutor runs commands as child processes via os/exec. The child
// inherits the parent environment plus Command.Env.
type ExecExecutor struct {
	// WaitDelay bounds how long Wait blocks on output pipes after the child
	// has been killed because ctx ended.
	WaitDelay time.Duration
}

func (e ExecExecutor) Execute(ctx context.Context, c Command, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	err := cmd.Run()
	return statusOf(ctx, err), err
}

// statusOf converts the outcome of exec.Cmd.Run to an exit status.
func statusOf(ctx context.Context, err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return ExitInterrupted
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
		// terminated by a signal
		return 1
	}

	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ExitNotFound
	case errors.Is(err, fs.ErrPermission):
		return ExitCannotExecute
	}
	return 1
}
