// Command gobuild is a thin CLI front-end proving the build graph core
// works end-to-end (spec.md §6 CLI surface; SPEC_FULL.md §9, supplemental
// to spec.md's core scope). It is built with github.com/mitchellh/cli the
// way cmd/tofu/main.go and cmd/tofu/commands.go wire the teacher's command
// table, scaled down to four subcommands instead of a whole product line.
package main

import (
	"os"

	"github.com/mitchellh/cli"
)

// Ui is the cli.Ui used for communicating to the outside world.
var Ui cli.Ui

func main() {
	os.Exit(realMain())
}

func realMain() int {
	Ui = &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	args := os.Args[1:]

	c := &cli.CLI{
		Name:       "gobuild",
		Args:       args,
		Commands:   commands(),
		HelpWriter: os.Stdout,
	}

	exitCode, err := c.Run()
	if err != nil {
		Ui.Error(err.Error())
		return 1
	}
	return exitCode
}

func commands() map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"build": func() (cli.Command, error) {
			return &BuildCommand{Ui: Ui}, nil
		},
		"clean": func() (cli.Command, error) {
			return &CleanCommand{Ui: Ui}, nil
		},
		"install": func() (cli.Command, error) {
			return &InstallCommand{Ui: Ui}, nil
		},
		"resolve": func() (cli.Command, error) {
			return &ResolveCommand{Ui: Ui}, nil
		},
	}
}
