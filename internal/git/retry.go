package git

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/go-git/go-git/v5"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
)

// withRetry runs fn once, or under the configured retry policy.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	if c.policy == nil || c.policy.MaxRetries <= 0 {
		return fn(ctx)
	}
	return c.policy.Do(ctx, fn, isPermanentGitError, func(attempt int, err error) {
		slog.Warn("Retrying git operation",
			slog.String("operation", op),
			logfields.Remote(c.remote),
			slog.Int("attempt", attempt),
			logfields.Error(err))
	})
}

func isPermanentGitError(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.As(err, new(*AuthError)),
		errors.As(err, new(*NotFoundError)),
		errors.As(err, new(*UnsupportedProtocolError)),
		errors.As(err, new(*RemoteDivergedError)):
		return true
	case errors.Is(err, git.ErrRemoteNotFound),
		errors.Is(err, git.ErrNonFastForwardUpdate),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	case ferrors.HasCategory(err, ferrors.CategoryAuth):
		return true
	}
	if classified, ok := ferrors.AsClassified(err); ok && classified.IsFatal() {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}
