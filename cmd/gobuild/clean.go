package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mitchellh/cli"
)

// CleanCommand removes a build directory's persisted graph and staged
// outputs (spec.md §6 `clean`), so the next build starts from scratch.
type CleanCommand struct {
	Ui cli.Ui
}

func (c *CleanCommand) Run(args []string) int {
	var buildDir string
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.StringVar(&buildDir, "build-dir", "build", "build directory to remove")
	fs.Usage = func() { c.Ui.Output(c.Help()) }
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if _, err := os.Stat(buildDir); os.IsNotExist(err) {
		c.Ui.Output(fmt.Sprintf("Nothing to clean: %s does not exist.", buildDir))
		return 0
	}

	if err := os.RemoveAll(buildDir); err != nil {
		c.Ui.Error(fmt.Sprintf("Error removing %s: %s", buildDir, err))
		return 1
	}
	c.Ui.Output(fmt.Sprintf("Removed %s.", buildDir))
	return 0
}

func (c *CleanCommand) Help() string {
	return "Usage: gobuild clean [-build-dir=build]\n\n  Removes the persisted graph and staged build outputs."
}

func (c *CleanCommand) Synopsis() string {
	return "Remove the persisted graph and build outputs"
}
