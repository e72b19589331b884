package config

import (
	"fmt"
	"time"

	"github.com/kballard/go-shellquote"

	ferrors "git.home.luguber.info/inful/autobuild/internal/foundation/errors"
)

// Validate checks that every key the automated build needs is present.
// The first problem found is returned, naming the offending key.
func Validate(cfg *Config) error {
	if cfg.SMTP.IsEnabled() {
		required := []struct{ key, value string }{
			{"smtp.host", cfg.SMTP.Host},
			{"smtp.sender", cfg.SMTP.Sender},
			{"smtp.password", cfg.SMTP.Password},
			{"smtp.receiver", cfg.SMTP.Receiver},
		}
		for _, r := range required {
			if r.value == "" {
				return missing(r.key)
			}
		}
		if cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535 {
			return invalid("smtp.port", fmt.Sprintf("port %d out of range", cfg.SMTP.Port))
		}
	}

	if cfg.Repository.BinaryDirectory == "" {
		return missing("repository.binary_directory")
	}

	if cfg.Build.Script == "" && len(cfg.Build.Steps) == 0 {
		return missing("build.steps")
	}
	for i, s := range cfg.Build.Steps {
		key := fmt.Sprintf("build.steps[%d].command", i)
		if s.Command == "" {
			return missing(key)
		}
		args, err := shellquote.Split(s.Command)
		if err != nil {
			return invalid(key, err.Error())
		}
		if len(args) == 0 {
			return missing(key)
		}
	}

	if cfg.Build.StepTimeout != "" {
		if d, err := time.ParseDuration(cfg.Build.StepTimeout); err != nil || d < 0 {
			return invalid("build.step_timeout", fmt.Sprintf("invalid duration %q", cfg.Build.StepTimeout))
		}
	}
	if cfg.Schedule.Interval != "" {
		if d, err := time.ParseDuration(cfg.Schedule.Interval); err != nil || d <= 0 {
			return invalid("schedule.interval", fmt.Sprintf("invalid duration %q", cfg.Schedule.Interval))
		}
	}

	if auth := cfg.Repository.Auth; !auth.IsZero() {
		switch auth.Type {
		case AuthTypeToken:
			if auth.Token == "" {
				return missing("repository.auth.token")
			}
		case AuthTypeBasic:
			if auth.Username == "" || auth.Password == "" {
				return missing("repository.auth.username/password")
			}
		case AuthTypeSSH:
		default:
			return invalid("repository.auth.type", fmt.Sprintf("unsupported authentication type: %s", auth.Type))
		}
	}
	return nil
}

func missing(key string) error {
	return ferrors.ConfigError(fmt.Sprintf("configuration not found: %s", key)).
		WithContext("field", key).
		Build()
}

func invalid(key, reason string) error {
	return ferrors.ValidationError(fmt.Sprintf("invalid configuration %s: %s", key, reason)).
		WithContext("field", key).
		WithContext("reason", reason).
		Build()
}
