package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	appcfg "git.home.luguber.info/inful/autobuild/internal/config"
	"git.home.luguber.info/inful/autobuild/internal/logfields"
	"git.home.luguber.info/inful/autobuild/internal/retry"
)

// ErrNothingToCommit is returned by Commit when the index holds no changes.
var ErrNothingToCommit = errors.New("nothing to commit")

// Client performs git operations on one working copy.
type Client struct {
	repoPath string
	remote   string
	auth     *appcfg.AuthConfig
	policy   *retry.Policy
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithAuth sets credentials for pull and push.
func WithAuth(a *appcfg.AuthConfig) Option { return func(c *Client) { c.auth = a } }

// WithRetry retries transient pull/push failures with p.
func WithRetry(p retry.Policy) Option { return func(c *Client) { c.policy = &p } }

// WithRemote selects the remote name (default "origin").
func WithRemote(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.remote = name
		}
	}
}

// NewClient creates a client for the repository containing repoPath.
func NewClient(repoPath string, opts ...Option) *Client {
	c := &Client{repoPath: repoPath, remote: git.DefaultRemoteName, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the repository path the client operates on.
func (c *Client) Path() string { return c.repoPath }

func (c *Client) open() (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpenWithOptions(c.repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, nil, ClassifyGitError(err, "open", c.repoPath)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, ClassifyGitError(err, "worktree", c.repoPath)
	}
	return repo, wt, nil
}

func (c *Client) authMethod() (transport.AuthMethod, error) {
	if c.auth.IsZero() {
		return nil, nil
	}
	return getAuth(c.auth)
}

// Pull fast-forwards the current branch from the remote. Being already up to
// date is success.
func (c *Client) Pull(ctx context.Context) error {
	repo, wt, err := c.open()
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return ClassifyGitError(err, "pull", c.repoPath)
	}
	auth, err := c.authMethod()
	if err != nil {
		return err
	}

	slog.Info("Pulling latest changes", logfields.Path(c.repoPath), logfields.Remote(c.remote), logfields.Branch(head.Name().Short()))
	err = c.withRetry(ctx, "pull", func(ctx context.Context) error {
		perr := wt.PullContext(ctx, &git.PullOptions{
			RemoteName:    c.remote,
			ReferenceName: head.Name(),
			SingleBranch:  true,
			Auth:          auth,
		})
		if errors.Is(perr, git.NoErrAlreadyUpToDate) {
			slog.Info("Repository already up to date", logfields.Path(c.repoPath))
			return nil
		}
		return classifyRemoteError("pull", c.remote, perr)
	})
	if err != nil {
		return ClassifyGitError(err, "pull", c.remote)
	}
	return nil
}

// Stage adds every change (new, modified and deleted files) under path,
// which is relative to the worktree root.
func (c *Client) Stage(path string) error {
	_, wt, err := c.open()
	if err != nil {
		return err
	}
	rel := filepath.ToSlash(filepath.Clean(path))
	if err := wt.AddWithOptions(&git.AddOptions{Path: rel}); err != nil {
		return GitError(fmt.Sprintf("failed to stage %s", rel)).
			WithCause(err).
			WithContext("path", rel).
			Build()
	}
	slog.Info("Staged build artifacts", logfields.Path(rel))
	return nil
}

// Commit records the index. It returns ErrNothingToCommit when nothing is
// staged, otherwise the new commit hash.
func (c *Client) Commit(message string, author object.Signature) (string, error) {
	_, wt, err := c.open()
	if err != nil {
		return "", err
	}
	status, err := wt.Status()
	if err != nil {
		return "", ClassifyGitError(err, "status", c.repoPath)
	}
	if !hasStagedChanges(status) {
		slog.Info("Nothing to commit", logfields.Path(c.repoPath))
		return "", ErrNothingToCommit
	}

	if author.When.IsZero() {
		author.When = c.now()
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: &author})
	if err != nil {
		return "", ClassifyGitError(err, "commit", c.repoPath)
	}
	slog.Info("Committed build artifacts", logfields.Commit(hash.String()[:8]), slog.String("message", message))
	return hash.String(), nil
}

// Push sends the current branch to the remote. Being already up to date is
// success.
func (c *Client) Push(ctx context.Context) error {
	repo, _, err := c.open()
	if err != nil {
		return err
	}
	auth, err := c.authMethod()
	if err != nil {
		return err
	}

	slog.Info("Pushing build artifacts", logfields.Remote(c.remote))
	err = c.withRetry(ctx, "push", func(ctx context.Context) error {
		perr := repo.PushContext(ctx, &git.PushOptions{RemoteName: c.remote, Auth: auth})
		if errors.Is(perr, git.NoErrAlreadyUpToDate) {
			slog.Info("Remote already up to date", logfields.Remote(c.remote))
			return nil
		}
		return classifyRemoteError("push", c.remote, perr)
	})
	if err != nil {
		return ClassifyGitError(err, "push", c.remote)
	}
	return nil
}

func hasStagedChanges(status git.Status) bool {
	for _, s := range status {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			return true
		}
	}
	return false
}
