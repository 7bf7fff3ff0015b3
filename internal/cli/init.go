package cli

import (
	"fmt"

	"toolbench/internal/config"
)

// InitCmd writes a starter config.
type InitCmd struct {
	Path   string `arg:"" optional:"" default:"toolbench.yml" help:"Config file to create."`
	Corpus string `default:"corpus" placeholder:"DIR" help:"Corpus root written into the config."`
}

// Run scaffolds the config, refusing to overwrite an existing file.
func (c *InitCmd) Run(env *appEnv) error {
	if err := config.Scaffold(c.Path, c.Corpus); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "Wrote %s\n", c.Path)
	return nil
}
