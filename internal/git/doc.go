// Package git publishes build artifacts through the repository that holds
// them: pull before building, then stage, commit and push the binary
// directory. All operations use go-git; no git executable is required.
//
// Network operations (pull, push) are retried with a retry.Policy unless the
// failure is permanent (authentication, missing repository, unsupported
// protocol).
package git
