package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

const minimalYAML = `
build:
  steps:
    - description: Compiling tool
      command: cc -o bin/tool tool.c
repository:
  binary_directory: bin
smtp:
  enabled: false
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Build.WorkDir)
	assert.Equal(t, DefaultRemote, cfg.Repository.Remote)
	assert.Equal(t, DefaultCommitMessage, cfg.Repository.CommitMessage)
	assert.Equal(t, DefaultLogDirectory, cfg.Logging.Directory)
	assert.Equal(t, DefaultRetentionDays, cfg.Logging.RetentionDays)
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)
	assert.Equal(t, DefaultEventsSubject, cfg.Events.Subject)
	assert.True(t, cfg.Repository.PullEnabled())
	assert.True(t, cfg.Repository.PushEnabled())
	assert.False(t, cfg.SMTP.IsEnabled())
}

func TestParseStepDescriptionDefaultsToCommand(t *testing.T) {
	cfg, err := Parse([]byte(`
build:
  steps:
    - command: "  make all  "
repository: {binary_directory: bin}
smtp: {enabled: false}
`))
	require.NoError(t, err)
	assert.Equal(t, "make all", cfg.Build.Steps[0].Description)
}

func TestValidateReportsFirstMissingKey(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{
			name: "smtp host",
			yaml: "build: {steps: [{command: cc}]}\nrepository: {binary_directory: bin}\nsmtp: {sender: a, password: b, receiver: c}\n",
			key:  "smtp.host",
		},
		{
			name: "smtp password",
			yaml: "build: {steps: [{command: cc}]}\nrepository: {binary_directory: bin}\nsmtp: {host: h, sender: a, receiver: c}\n",
			key:  "smtp.password",
		},
		{
			name: "binary directory",
			yaml: "build: {steps: [{command: cc}]}\nsmtp: {enabled: false}\n",
			key:  "repository.binary_directory",
		},
		{
			name: "binary directory with push disabled",
			yaml: "build: {steps: [{command: cc}]}\nrepository: {push: false}\nsmtp: {enabled: false}\n",
			key:  "repository.binary_directory",
		},
		{
			name: "steps",
			yaml: "repository: {binary_directory: bin}\nsmtp: {enabled: false}\n",
			key:  "build.steps",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "configuration not found: "+tt.key)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"unterminated quote": "build: {steps: [{command: 'cc \"x'}]}\nrepository: {binary_directory: bin}\nsmtp: {enabled: false}\n",
		"step timeout":       "build: {step_timeout: soon, steps: [{command: cc}]}\nrepository: {binary_directory: bin}\nsmtp: {enabled: false}\n",
		"interval":           "build: {steps: [{command: cc}]}\nschedule: {interval: -1s}\nrepository: {binary_directory: bin}\nsmtp: {enabled: false}\n",
		"auth type":          "build: {steps: [{command: cc}]}\nrepository: {binary_directory: bin, auth: {type: kerberos}}\nsmtp: {enabled: false}\n",
		"smtp port":          "build: {steps: [{command: cc}]}\nrepository: {binary_directory: bin}\nsmtp: {host: h, port: 70000, sender: a, password: b, receiver: c}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), "got %v", err)
		})
	}
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("AUTOBUILD_TEST_PASSWORD", "s3cret")
	cfg, err := Parse([]byte(`
build: {steps: [{command: cc}]}
repository: {binary_directory: bin}
smtp: {host: mail, sender: a@x, password: "${AUTOBUILD_TEST_PASSWORD}", receiver: b@x}
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.SMTP.Password)
	assert.Equal(t, "mail:587", cfg.SMTP.Address())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(".env", []byte("AUTOBUILD_DOTENV_SENDER=ci@example.com\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("AUTOBUILD_DOTENV_SENDER") })
	require.NoError(t, os.WriteFile("autobuild.yaml", []byte(`
build: {steps: [{command: cc}]}
repository: {binary_directory: bin}
smtp: {host: mail, sender: "${AUTOBUILD_DOTENV_SENDER}", password: p, receiver: r}
`), 0o600))

	cfg, err := Load("autobuild.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ci@example.com", cfg.SMTP.Sender)
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("nope.yaml")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestInitWritesLoadableExample(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SMTP_PASSWORD", "pw")

	require.NoError(t, Init(DefaultConfigFile, false))
	cfg, err := Load(DefaultConfigFile)
	require.NoError(t, err)

	cmds, err := cfg.Commands()
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, []string{"cc", "-o", "bin/app", "main.c", "util.c"}, cmds[0].Args)
	assert.Equal(t, "Compiling tool from tool.c", cmds[1].Description)
	assert.Equal(t, "pw", cfg.SMTP.Password)
}

func TestInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autobuild.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	err := Init(path, false)
	require.Error(t, err)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "keep", string(data))

	require.NoError(t, Init(path, true))
	data, _ = os.ReadFile(path)
	assert.NotEqual(t, "keep", string(data))
}

func TestCommandsScriptRunsFirst(t *testing.T) {
	work := t.TempDir()
	cfg := &Config{Build: BuildConfig{
		WorkDir:     work,
		Script:      "build.sh",
		StepTimeout: "90s",
		Steps:       []Step{{Description: "tests", Command: "make test", Dir: "sub", Env: []string{"CI=1"}}},
	}}

	cmds, err := cfg.Commands()
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	assert.Equal(t, []string{filepath.Join(work, "build.sh")}, cmds[0].Args)
	assert.Equal(t, work, cmds[0].Dir)
	assert.Equal(t, filepath.Join(work, "sub"), cmds[1].Dir)
	assert.Equal(t, []string{"CI=1"}, cmds[1].Env)
	assert.Equal(t, 90*time.Second, cfg.StepTimeout())
}
