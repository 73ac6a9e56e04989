package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/cli"

	"github.com/gobuild/core/internal/executor"
	"github.com/gobuild/core/internal/job"
	"github.com/gobuild/core/internal/projectfile"
)

// InstallCommand builds every target, then stages the resulting target
// artifacts into "<build-dir>/install-root" (spec.md §6 `install`,
// §6 build directory layout's "install-root/ staging for install
// operations").
type InstallCommand struct {
	Ui cli.Ui
}

func (c *InstallCommand) Run(args []string) int {
	bf := &buildFlags{}
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	registerBuildFlags(fs, bf)
	fs.Usage = func() { c.Ui.Output(c.Help()) }
	if err := fs.Parse(args); err != nil {
		return 1
	}

	opts, err := bf.toOptions()
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	rp, err := projectfile.Load(bf.projectFile, builtinRegistry())
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error reading project description: %s", err))
		return 1
	}

	j, proj, err := job.New(rp, bf.buildDir)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error preparing build: %s", err))
		return 1
	}

	targets := allProductIDs(proj)
	prog := job.NewTextProgress(os.Stdout, bf.noColor)

	result, err := j.Build(context.Background(), proj, targets, opts, prog)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Build error: %s", err))
		return 1
	}
	if result.Outcome != executor.Success {
		if result.Failures != nil {
			c.Ui.Error(result.Failures.Error())
		}
		return 1
	}

	installRoot := filepath.Join(bf.buildDir, "install-root")
	if err := os.MkdirAll(installRoot, 0o755); err != nil {
		c.Ui.Error(fmt.Sprintf("Error creating %s: %s", installRoot, err))
		return 1
	}

	installed := 0
	for _, p := range proj.Products() {
		for _, aid := range p.TargetArtifacts {
			a := proj.Artifact(aid)
			dst := filepath.Join(installRoot, filepath.Base(a.Path))
			if err := copyFile(a.Path, dst); err != nil {
				c.Ui.Error(fmt.Sprintf("Error installing %s: %s", a.Path, err))
				return 1
			}
			installed++
		}
	}

	c.Ui.Output(fmt.Sprintf("Installed %d target(s) into %s.", installed, installRoot))
	return 0
}

func (c *InstallCommand) Help() string {
	return "Usage: gobuild install [options]\n\n  Builds every reachable target, then stages it into <build-dir>/install-root."
}

func (c *InstallCommand) Synopsis() string {
	return "Build and stage targets into the install root"
}
