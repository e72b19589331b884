package runner

import (
	"time"

	"github.com/kballard/go-shellquote"
)

// Command is one external program invocation and the text shown while it runs.
type Command struct {
	Description string
	Args        []string // executable first
	Dir         string   // working directory, empty for the current one
	Env         []string // extra KEY=VALUE entries appended to the parent environment
}

// String renders the argv as a shell-quoted line.
func (c Command) String() string {
	return shellquote.Join(c.Args...)
}

// Result is the outcome of one executed command.
type Result struct {
	Command  Command
	ExitCode int
	Duration time.Duration
	Err      error
}

// Report holds the results of the commands that actually ran, in order.
type Report struct {
	Results  []Result
	ExitCode int
}

// Succeeded reports whether every command ran and exited with status 0.
func (r Report) Succeeded() bool { return r.ExitCode == 0 }

// DefaultOutputDir receives the artifacts of DefaultCommands. It must exist
// before they run.
const DefaultOutputDir = "bin"

// DefaultCommands returns the two compiler invocations run when nothing else
// is configured.
func DefaultCommands() []Command {
	return []Command{
		{
			Description: "Compiling app from main.c and util.c",
			Args:        []string{"cc", "-o", DefaultOutputDir + "/app", "main.c", "util.c"},
		},
		{
			Description: "Compiling tool from tool.c",
			Args:        []string{"cc", "-o", DefaultOutputDir + "/tool", "tool.c"},
		},
	}
}

// ParseCommand splits a shell-style command line into argv. Quotes and
// backslash escapes are honoured; no shell is involved.
func ParseCommand(line string) ([]string, error) {
	args, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	return args, nil
}
