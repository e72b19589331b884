package git

import (
	"fmt"
	"strings"
)

// Typed git errors enabling structured classification without string parsing upstream.
type AuthError struct {
	Op, Remote string
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.Remote, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, Remote string
	Err        error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found %s: %v", e.Op, e.Remote, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, Remote string
	Err        error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.Remote, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type RemoteDivergedError struct {
	Op, Remote string
	Err        error
}

func (e *RemoteDivergedError) Error() string {
	return fmt.Sprintf("%s remote diverged %s: %v", e.Op, e.Remote, e.Err)
}
func (e *RemoteDivergedError) Unwrap() error { return e.Err }

// classifyRemoteError wraps pull/push failures into typed variants when possible.
func classifyRemoteError(op, remote string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: op, Remote: remote, Err: err}
	case strings.Contains(l, "repository not found") || strings.Contains(l, "repository does not exist") || strings.Contains(l, "remote not found"):
		return &NotFoundError{Op: op, Remote: remote, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: op, Remote: remote, Err: err}
	case strings.Contains(l, "non-fast-forward"):
		return &RemoteDivergedError{Op: op, Remote: remote, Err: err}
	default:
		return err
	}
}
