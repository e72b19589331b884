package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesFileAndConsole(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	sess, err := Setup(Options{Directory: dir, Console: &console, Now: func() time.Time { return at }})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "2024-03-09__14-05-07_build.log"), sess.Path)
	assert.Same(t, sess.Logger, slog.Default())
	slog.Info("hello from the run")
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Same(t, prev, slog.Default())

	data, err := os.ReadFile(sess.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the run")
	assert.Contains(t, console.String(), "hello from the run")
}

func TestResolveLevel(t *testing.T) {
	t.Setenv(LevelEnv, "")
	assert.Equal(t, slog.LevelInfo, ResolveLevel(false, ""))
	assert.Equal(t, slog.LevelWarn, ResolveLevel(false, "WARNING"))
	assert.Equal(t, slog.LevelDebug, ResolveLevel(true, "error"))

	t.Setenv(LevelEnv, "error")
	assert.Equal(t, slog.LevelError, ResolveLevel(false, "debug"))
	assert.Equal(t, slog.LevelDebug, ResolveLevel(true, ""))
}

func TestPruneOldRemovesOnlyExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	oldFile := filepath.Join(dir, "old_build.log")
	edge := filepath.Join(dir, "edge_build.log")
	fresh := filepath.Join(dir, "fresh_build.log")
	for _, p := range []string{oldFile, edge, fresh} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o750))

	retention := 7 * 24 * time.Hour
	require.NoError(t, os.Chtimes(oldFile, now.Add(-8*24*time.Hour), now.Add(-8*24*time.Hour)))
	require.NoError(t, os.Chtimes(edge, now.Add(-retention), now.Add(-retention)))

	removed, err := PruneOld(dir, retention, now)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{oldFile, edge}, removed)
	assert.NoFileExists(t, oldFile)
	assert.NoFileExists(t, edge)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestPruneOldMissingDirectory(t *testing.T) {
	removed, err := PruneOld(filepath.Join(t.TempDir(), "absent"), time.Hour, time.Now())
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestOpenScriptLogTruncates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ScriptLogName), []byte("previous run output"), 0o600))

	f, err := OpenScriptLog(dir)
	require.NoError(t, err)
	_, err = f.WriteString("new")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(dir, ScriptLogName))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
