package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/mitchellh/cli"

	"github.com/gobuild/core/internal/graph"
	"github.com/gobuild/core/internal/projectfile"
)

// ResolveCommand resolves a project description and prints its build
// graph without executing anything (spec.md §6 `resolve`).
type ResolveCommand struct {
	Ui cli.Ui
}

func (c *ResolveCommand) Run(args []string) int {
	var projectFile string
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.StringVar(&projectFile, "project", "project.toml", "path to the TOML project description")
	fs.Usage = func() { c.Ui.Output(c.Help()) }
	if err := fs.Parse(args); err != nil {
		return 1
	}

	proj, err := projectfile.Load(projectFile, builtinRegistry())
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error reading project description: %s", err))
		return 1
	}

	resolved, err := graph.Resolve(proj)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("Error resolving build graph: %s", err))
		return 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "project %q: %d artifact(s), %d transformer(s)\n", resolved.Name, resolved.NumArtifacts(), resolved.NumTransformers())
	for _, p := range resolved.Products() {
		fmt.Fprintf(&b, "\nproduct %q (%d artifact(s), %d transformer(s), %d target(s)):\n", p.Name, len(p.ArtifactIDs), len(p.TransformerIDs), len(p.TargetArtifacts))
		for _, aid := range p.TargetArtifacts {
			a := resolved.Artifact(aid)
			fmt.Fprintf(&b, "  target: %s [%s]\n", a.Path, strings.Join(a.FileTags, ","))
		}
		for _, tid := range p.TransformerIDs {
			t := resolved.Transformer(tid)
			fmt.Fprintf(&b, "  transformer %d: rule=%s state=%s\n", tid, t.Rule.ID, t.State)
		}
	}
	c.Ui.Output(b.String())
	return 0
}

func (c *ResolveCommand) Help() string {
	return "Usage: gobuild resolve [-project=project.toml]\n\n  Resolves a project description into a build graph and prints it."
}

func (c *ResolveCommand) Synopsis() string {
	return "Resolve a project description into a build graph"
}
