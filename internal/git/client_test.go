package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfg "git.home.luguber.info/inful/autobuild/internal/config"
	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/autobuild/internal/retry"
)

var testAuthor = object.Signature{Name: "autobuild", Email: "autobuild@localhost"}

// newRemote creates a bare repository holding one commit and returns its path.
func newRemote(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	bare := filepath.Join(root, "remote.git")
	_, err := git.PlainInit(bare, true)
	require.NoError(t, err)

	seedDir := filepath.Join(root, "seed")
	seed, err := git.PlainInit(seedDir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "main.c"), []byte("int main(void){return 0;}\n"), 0o600))
	wt, err := seed.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.c")
	require.NoError(t, err)
	sig := testAuthor
	sig.When = time.Now()
	_, err = wt.Commit("initial", &git.CommitOptions{Author: &sig})
	require.NoError(t, err)

	_, err = seed.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	require.NoError(t, seed.Push(&git.PushOptions{RemoteName: "origin"}))
	return bare
}

func cloneOf(t *testing.T, remote string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "work")
	_, err := git.PlainClone(dir, false, &git.CloneOptions{URL: remote})
	require.NoError(t, err)
	return dir
}

func writeArtifact(t *testing.T, repo, name, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "bin"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(repo, "bin", name), []byte(body), 0o600))
}

func TestStageCommitPushThenPull(t *testing.T) {
	remote := newRemote(t)
	builder := cloneOf(t, remote)
	consumer := cloneOf(t, remote)
	ctx := t.Context()

	writeArtifact(t, builder, "app", "binary-v1")
	c := NewClient(builder)
	require.NoError(t, c.Stage("bin"))
	hash, err := c.Commit(appcfg.DefaultCommitMessage, testAuthor)
	require.NoError(t, err)
	assert.Len(t, hash, 40)
	require.NoError(t, c.Push(ctx))

	require.NoError(t, NewClient(consumer).Pull(ctx))
	data, err := os.ReadFile(filepath.Join(consumer, "bin", "app"))
	require.NoError(t, err)
	assert.Equal(t, "binary-v1", string(data))

	repo, err := git.PlainOpen(consumer)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, appcfg.DefaultCommitMessage, commit.Message)
	assert.Equal(t, "autobuild", commit.Author.Name)
}

func TestCommitNothingToCommit(t *testing.T) {
	dir := cloneOf(t, newRemote(t))
	c := NewClient(dir)

	_, err := c.Commit("empty", testAuthor)
	require.ErrorIs(t, err, ErrNothingToCommit)

	// untracked files outside the staged path do not count
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("x"), 0o600))
	_, err = c.Commit("still empty", testAuthor)
	require.ErrorIs(t, err, ErrNothingToCommit)
}

func TestPullAndPushAlreadyUpToDate(t *testing.T) {
	dir := cloneOf(t, newRemote(t))
	c := NewClient(dir, WithRemote("origin"))

	require.NoError(t, c.Pull(t.Context()))
	require.NoError(t, c.Push(t.Context()))
}

func TestStageMissingPath(t *testing.T) {
	dir := cloneOf(t, newRemote(t))
	err := NewClient(dir).Stage("does-not-exist")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryGit))
}

func TestOpenNonRepository(t *testing.T) {
	err := NewClient(t.TempDir()).Pull(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryGit))
}

func TestPushUnknownRemoteIsPermanent(t *testing.T) {
	dir := cloneOf(t, newRemote(t))
	pol := retry.NewPolicy(appcfg.RetryBackoffFixed, time.Hour, time.Hour, 3)
	c := NewClient(dir, WithRemote("upstream"), WithRetry(pol))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	err := c.Push(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrRemoteNotFound)
}

func TestGetAuth(t *testing.T) {
	m, err := getAuth(&appcfg.AuthConfig{Type: appcfg.AuthTypeToken, Token: "abc"})
	require.NoError(t, err)
	assert.NotNil(t, m)

	m, err = getAuth(&appcfg.AuthConfig{Type: appcfg.AuthTypeNone})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = getAuth(&appcfg.AuthConfig{Type: appcfg.AuthTypeBasic, Username: "u"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryAuth))

	_, err = getAuth(&appcfg.AuthConfig{Type: appcfg.AuthTypeSSH, KeyPath: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestIsPermanentGitError(t *testing.T) {
	assert.False(t, isPermanentGitError(nil))
	assert.True(t, isPermanentGitError(&AuthError{Op: "push", Err: errors.New("authentication required")}))
	assert.True(t, isPermanentGitError(context.Canceled))
	assert.False(t, isPermanentGitError(errors.New("remote hung up unexpectedly")))
	assert.True(t, isPermanentGitError(ferrors.ValidationError("bad refspec").Build()))
	assert.False(t, isPermanentGitError(GitError("git pull failed").Build()))
}

func TestClassifyRemoteError(t *testing.T) {
	err := classifyRemoteError("pull", "origin", errors.New("authentication required"))
	assert.ErrorAs(t, err, new(*AuthError))

	err = classifyRemoteError("push", "origin", errors.New("repository not found"))
	assert.ErrorAs(t, err, new(*NotFoundError))

	classified := ClassifyGitError(err, "push", "origin")
	assert.True(t, ferrors.HasCategory(classified, ferrors.CategoryNotFound))

	network := ClassifyGitError(errors.New("dial tcp: connection refused"), "pull", "origin")
	assert.True(t, ferrors.HasCategory(network, ferrors.CategoryNetwork))
}
