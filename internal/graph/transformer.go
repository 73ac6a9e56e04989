package graph

import (
	"github.com/gobuild/core/internal/fingerprint"
	"github.com/gobuild/core/internal/resolvedproject"
)

// Command is the transformer-local, already-instantiated form of
// resolvedproject.Command: argv and paths are fully resolved, unlike the
// CommandBuilder-produced template.
type Command = resolvedproject.Command

// Transformer is the unit of work (spec.md §3).
type Transformer struct {
	ID TransformerID

	Rule *Rule // the Rule this transformer instantiates

	Inputs  []ArtifactID
	Outputs []ArtifactID

	Commands []Command

	// Fingerprint covers rule identity + command list + input
	// fingerprints + influential property values (spec.md §4.2). It is
	// computed once, at construction time by the graph resolver, and is
	// never mutated afterwards, in particular not by a worker goroutine.
	Fingerprint fingerprint.Fingerprint

	// StoredFingerprint is set by change detection to the fingerprint
	// recorded in the persisted graph when that record equals
	// Fingerprint; it stays the zero Fingerprint for a transformer that
	// is new or whose fingerprint changed (spec.md §4.2).
	StoredFingerprint fingerprint.Fingerprint

	State BuildState

	// Pools are the named job-limit pools this transformer belongs to
	// (spec.md §4.3).
	Pools []string

	// Weight is this transformer's contribution to task_started's
	// total_effort (spec.md §4.5); 0 is normalized to 1 by the graph
	// resolver.
	Weight int

	// AlwaysRun mirrors the Command-level "always-run" flag, hoisted to
	// the transformer when ALL of its commands request it, so change
	// detection can skip the fingerprint/timestamp comparison entirely
	// for such transformers (spec.md §9 "run once and forget" open
	// question: this module treats AlwaysRun transformers as always
	// Buildable regardless of fingerprint/timestamp state, and records
	// this choice, not an inferred intent, in DESIGN.md).
	AlwaysRun bool

	Product ProductID
}

// Rule is the description of how to produce outputs from inputs
// (spec.md §3), copied from the resolved project input model plus a
// product-scoped numeric ID used inside the rule graph.
type Rule struct {
	*resolvedproject.Rule
	// GraphIndex is this rule's position in its product's rule graph,
	// assigned during rule-graph construction (spec.md §3: "a stable
	// identifier assigned during rule-graph construction").
	GraphIndex int
}
