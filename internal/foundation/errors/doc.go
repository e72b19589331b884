// Package errors provides the classified error primitives used across autobuild.
//
// A ClassifiedError carries a category (config, command, git, notify, ...),
// a severity, a retry strategy and structured context. Errors are created
// with the fluent ErrorBuilder:
//
//	err := errors.WrapError(cause, errors.CategoryGit, "push failed").
//		Retryable().
//		WithContext("remote", "origin").
//		Build()
//
// CLIErrorAdapter turns any error into a process exit code. Errors that carry
// the exit status of a failed external command (ExitCoder) keep that status,
// so a failing compiler invocation surfaces its own code to the caller.
package errors
