package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/gobuild/core/internal/executor"
	"github.com/gobuild/core/internal/graph"
	"github.com/gobuild/core/internal/job"
	"github.com/gobuild/core/internal/projectfile"
)

// BuildCommand runs one full build cycle (spec.md §6 `build`).
type BuildCommand struct {
	Ui cli.Ui
}

func (c *BuildCommand) Run(args []string) int {
	bf := &buildFlags{}
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
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

	switch result.Outcome {
	case executor.Success:
		c.Ui.Output(fmt.Sprintf("Build succeeded: %d transformer(s) executed, %d skipped.", len(result.Executed), len(result.Skipped)))
		return 0
	case executor.Cancelled:
		c.Ui.Error("Build cancelled.")
		return 1
	default:
		if result.Failures != nil {
			c.Ui.Error(result.Failures.Error())
		}
		return 1
	}
}

func (c *BuildCommand) Help() string {
	return "Usage: gobuild build [options]\n\n" +
		"  Resolves the project description and builds every reachable target.\n\n" +
		"Options:\n" +
		"  -project=project.toml       project description to load\n" +
		"  -build-dir=build           persisted-graph and output directory\n" +
		"  -jobs=N                    maximum parallel transformers\n" +
		"  -keep-going                continue past unrelated failures\n" +
		"  -dry-run                   report without executing\n" +
		"  -force-probe-execution     no extra effect; sources are always re-read\n" +
		"  -check-outputs             verify declared outputs after each run\n" +
		"  -command-echo-mode=MODE    description|command-line|silent\n" +
		"  -job-limits=pool=N         repeatable job-limit pool declaration\n" +
		"  -no-color                  disable colorized output"
}

func (c *BuildCommand) Synopsis() string {
	return "Build every reachable target in the project"
}

// allProductIDs selects every product in the project as the default
// build target set; a future -product=NAME flag could narrow this.
func allProductIDs(proj *graph.Project) []graph.ProductID {
	ids := make([]graph.ProductID, len(proj.Products()))
	for i, p := range proj.Products() {
		ids[i] = p.ID
	}
	return ids
}
