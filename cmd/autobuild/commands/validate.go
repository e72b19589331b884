package commands

import (
	"fmt"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct{}

func (v *ValidateCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	cmds, err := cfg.Commands()
	if err != nil {
		return err
	}

	out := g.stdout()
	_, _ = fmt.Fprintf(out, "Configuration %s is valid\n", root.Config)
	for i, c := range cmds {
		_, _ = fmt.Fprintf(out, "  %d. %s: %s\n", i+1, c.Description, c.String())
	}
	return nil
}
