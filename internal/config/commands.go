package config

import (
	"fmt"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/autobuild/internal/runner"
)

// ScriptPath returns the build script location, or "" when none is configured.
func (c *Config) ScriptPath() string {
	if c.Build.Script == "" {
		return ""
	}
	return resolve(c.Build.WorkDir, c.Build.Script)
}

// StepTimeout returns the per-step limit; zero means none.
func (c *Config) StepTimeout() time.Duration {
	if c.Build.StepTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Build.StepTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Commands converts the configured build into runner commands. The build
// script, when set, runs first; the listed steps follow in order.
func (c *Config) Commands() ([]runner.Command, error) {
	cmds := make([]runner.Command, 0, len(c.Build.Steps)+1)

	if script := c.ScriptPath(); script != "" {
		exe, err := filepath.Abs(script)
		if err != nil {
			return nil, invalid("build.script", err.Error())
		}
		cmds = append(cmds, runner.Command{
			Description: fmt.Sprintf("Running build script %s", c.Build.Script),
			Args:        []string{exe},
			Dir:         c.Build.WorkDir,
		})
	}

	for i, s := range c.Build.Steps {
		args, err := runner.ParseCommand(s.Command)
		if err != nil {
			return nil, invalid(fmt.Sprintf("build.steps[%d].command", i), err.Error())
		}
		if len(args) == 0 {
			return nil, missing(fmt.Sprintf("build.steps[%d].command", i))
		}
		cmds = append(cmds, runner.Command{
			Description: s.Description,
			Args:        args,
			Dir:         resolve(c.Build.WorkDir, s.Dir),
			Env:         s.Env,
		})
	}
	return cmds, nil
}

// resolve joins rel onto base unless rel is absolute.
func resolve(base, rel string) string {
	if rel == "" {
		return base
	}
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(base, rel)
}
