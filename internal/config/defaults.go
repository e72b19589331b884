package config

import "strings"

const (
	DefaultConfigFile    = "autobuild.yaml"
	DefaultLogDirectory  = "logs"
	DefaultRetentionDays = 7
	DefaultCommitMessage = "Add latest build artifacts"
	DefaultRemote        = "origin"
	DefaultSMTPPort      = 587
	DefaultEventsSubject = "autobuild.runs"
	DefaultMaxConns      = 16
)

func applyDefaults(cfg *Config) {
	if cfg.Build.WorkDir == "" {
		cfg.Build.WorkDir = "."
	}
	for i := range cfg.Build.Steps {
		s := &cfg.Build.Steps[i]
		s.Command = strings.TrimSpace(s.Command)
		if s.Description == "" {
			s.Description = s.Command
		}
	}

	if cfg.Repository.Path == "" {
		cfg.Repository.Path = "."
	}
	if cfg.Repository.Remote == "" {
		cfg.Repository.Remote = DefaultRemote
	}
	if cfg.Repository.CommitMessage == "" {
		cfg.Repository.CommitMessage = DefaultCommitMessage
	}
	if cfg.Repository.AuthorName == "" {
		cfg.Repository.AuthorName = "autobuild"
	}
	if cfg.Repository.AuthorEmail == "" {
		cfg.Repository.AuthorEmail = "autobuild@localhost"
	}

	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = DefaultSMTPPort
	}

	if cfg.Logging.Directory == "" {
		cfg.Logging.Directory = DefaultLogDirectory
	}
	if cfg.Logging.RetentionDays <= 0 {
		cfg.Logging.RetentionDays = DefaultRetentionDays
	}

	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}
	if m := NormalizeRetryBackoff(string(cfg.Retry.Backoff)); m != "" {
		cfg.Retry.Backoff = m
	} else {
		cfg.Retry.Backoff = RetryBackoffLinear
	}

	if cfg.Metrics.MaxConnections <= 0 {
		cfg.Metrics.MaxConnections = DefaultMaxConns
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}
}
