package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/autobuild/internal/runner"
)

// Example returns the configuration written by Init: the two default compiler
// invocations plus placeholders for every other section.
func Example() *Config {
	steps := make([]Step, 0, 2)
	for _, c := range runner.DefaultCommands() {
		steps = append(steps, Step{Description: c.Description, Command: c.String()})
	}
	pull, push := true, true

	return &Config{
		Build: BuildConfig{
			WorkDir: ".",
			Steps:   steps,
		},
		Repository: RepositoryConfig{
			Path:            ".",
			Remote:          DefaultRemote,
			BinaryDirectory: "bin",
			CommitMessage:   DefaultCommitMessage,
			AuthorName:      "autobuild",
			AuthorEmail:     "autobuild@localhost",
			Pull:            &pull,
			Push:            &push,
		},
		SMTP: SMTPConfig{
			Host:     "smtp.example.com",
			Port:     DefaultSMTPPort,
			Sender:   "build@example.com",
			Password: "${SMTP_PASSWORD}",
			Receiver: "team@example.com",
		},
		Logging: LoggingConfig{
			Directory:     DefaultLogDirectory,
			RetentionDays: DefaultRetentionDays,
		},
		Retry: RetryConfig{
			MaxRetries:   2,
			Backoff:      RetryBackoffLinear,
			InitialDelay: "1s",
			MaxDelay:     "30s",
		},
		Schedule: ScheduleConfig{Cron: "0 2 * * *"},
		Metrics:  MetricsConfig{Listen: ":9464", MaxConnections: DefaultMaxConns},
		History:  HistoryConfig{Path: "autobuild.db"},
		Events:   EventsConfig{Subject: DefaultEventsSubject},
	}
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	data, err := yaml.Marshal(Example())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
