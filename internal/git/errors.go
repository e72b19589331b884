package git

import (
	"errors"
	"strings"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// GitError simplifies creating a git-scoped ClassifiedError.
func GitError(message string) *ferrors.ErrorBuilder {
	return ferrors.NewError(ferrors.CategoryGit, message)
}

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op string, target string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := ferrors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())

	builder := GitError("git " + op + " failed").
		WithCause(err).
		WithContext("op", op).
		WithContext("target", target)

	switch {
	case errors.As(err, new(*AuthError)):
		builder.WithCategory(ferrors.CategoryAuth)
	case errors.As(err, new(*NotFoundError)):
		builder.WithCategory(ferrors.CategoryNotFound)
	case errors.As(err, new(*RemoteDivergedError)):
		builder.WithContext("diverged", true)
	case errors.As(err, new(*UnsupportedProtocolError)):
		builder.WithCategory(ferrors.CategoryConfig)
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") || strings.Contains(l, "timeout") || strings.Contains(l, "connection refused") || strings.Contains(l, "no route to host"):
		builder.WithCategory(ferrors.CategoryNetwork).Retryable()
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		builder.WithCategory(ferrors.CategoryNetwork).RateLimit()
	}

	return builder.Build()
}
