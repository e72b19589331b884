package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// Config represents the application configuration.
type Config struct {
	Build      BuildConfig      `yaml:"build"`
	Repository RepositoryConfig `yaml:"repository"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retry      RetryConfig      `yaml:"retry"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	History    HistoryConfig    `yaml:"history"`
	Events     EventsConfig     `yaml:"events"`
}

// BuildConfig describes the ordered build steps.
type BuildConfig struct {
	WorkDir     string `yaml:"work_dir"`
	Script      string `yaml:"script,omitempty"` // optional build script run as a single step
	StepTimeout string `yaml:"step_timeout,omitempty"`
	Steps       []Step `yaml:"steps,omitempty"`
}

// Step is one configured command line.
type Step struct {
	Description string   `yaml:"description"`
	Command     string   `yaml:"command"`
	Dir         string   `yaml:"dir,omitempty"`
	Env         []string `yaml:"env,omitempty"`
}

// RepositoryConfig points at the working copy that receives the artifacts.
type RepositoryConfig struct {
	Path            string      `yaml:"path"`
	Remote          string      `yaml:"remote"`
	BinaryDirectory string      `yaml:"binary_directory"`
	CommitMessage   string      `yaml:"commit_message"`
	AuthorName      string      `yaml:"author_name"`
	AuthorEmail     string      `yaml:"author_email"`
	Pull            *bool       `yaml:"pull,omitempty"`
	Push            *bool       `yaml:"push,omitempty"`
	Auth            *AuthConfig `yaml:"auth,omitempty"`
}

// PullEnabled reports whether the pipeline pulls before building (default true).
func (r RepositoryConfig) PullEnabled() bool { return r.Pull == nil || *r.Pull }

// PushEnabled reports whether committed artifacts are pushed to the remote (default true).
func (r RepositoryConfig) PushEnabled() bool { return r.Push == nil || *r.Push }

// SMTPConfig configures the failure notification mail.
type SMTPConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Sender   string `yaml:"sender"`
	Password string `yaml:"password"`
	Receiver string `yaml:"receiver"`
}

// IsEnabled reports whether failure mails are sent (default true).
func (s SMTPConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// Address returns host:port.
func (s SMTPConfig) Address() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// LoggingConfig configures the per-run log files.
type LoggingConfig struct {
	Directory     string `yaml:"directory"`
	RetentionDays int    `yaml:"retention_days"`
	Level         string `yaml:"level,omitempty"`
}

// ScheduleConfig drives daemon mode. Cron wins when both are set.
type ScheduleConfig struct {
	Cron     string `yaml:"cron,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint in daemon mode.
type MetricsConfig struct {
	Listen         string `yaml:"listen,omitempty"`
	MaxConnections int    `yaml:"max_connections,omitempty"`
}

// HistoryConfig locates the SQLite run history. Empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// EventsConfig configures NATS publication of run events. Empty URL disables it.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file: .env files are applied
// first, ${VAR} references are expanded, then defaults and validation run.
func Load(configPath string) (*Config, error) {
	if _, err := loadEnvFiles(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load .env file").Fatal().Build()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ferrors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			Fatal().
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes, defaults and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
