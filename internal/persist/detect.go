package persist

import (
	"os"

	"github.com/gobuild/core/internal/graph"
)

// DetectChanges compares a freshly resolved graph.Project against the
// snapshot from the previous build and advances every Artifact and
// Transformer's BuildState accordingly (spec.md §4.4): transformers
// whose rule, inputs or declared-influential properties changed, whose
// source inputs changed on disk, or whose recorded outputs are missing
// or were modified outside of a build, become Buildable; everything else
// is treated as already Built and is skipped by the executor.
//
// prev may be nil, meaning no previous build exists; in that case every
// transformer becomes Buildable (spec.md §4.4 step 1, "a missing
// persisted graph behaves as if every source and transformer changed").
func DetectChanges(proj *graph.Project, prev *Snapshot) error {
	if prev == nil {
		markAllBuildable(proj)
		return nil
	}

	bySourcePath := make(map[string]ArtifactSnapshot)
	byTransformerKey := make(map[string]TransformerSnapshot)
	for _, p := range prev.Products {
		for _, a := range p.Artifacts {
			bySourcePath[a.Path] = a
		}
		for _, t := range p.Transformers {
			byTransformerKey[t.Key] = t
		}
	}

	// Step 1: mark every transformer Built by default; rule/input/property
	// changes and stale outputs will promote some of them to Buildable
	// below. New transformers (no matching key) start Buildable.
	keys := make([]string, proj.NumTransformers())
	for i := 0; i < proj.NumTransformers(); i++ {
		tid := graph.TransformerID(i)
		t := proj.Transformer(tid)
		key := transformerKey(proj, t)
		keys[i] = key

		rec, ok := byTransformerKey[key]
		switch {
		case !ok:
			t.State = graph.Buildable
		case rec.Fingerprint != t.Fingerprint:
			t.State = graph.Buildable
		default:
			t.State = graph.Built
			t.StoredFingerprint = rec.Fingerprint
		}
	}

	// Step 2: a Source artifact whose content changed since the last
	// build forces every transformer downstream of it (its Parents,
	// transitively) to Buildable, even if that transformer's own
	// fingerprint is unchanged (spec.md §4.4 "source changes propagate
	// forward through the artifact graph").
	for i := 0; i < proj.NumArtifacts(); i++ {
		aid := graph.ArtifactID(i)
		a := proj.Artifact(aid)
		if a.Kind != graph.Source {
			continue
		}
		rec, ok := bySourcePath[a.Path]
		if !ok || rec.ContentFingerprint != a.ContentFingerprint {
			markDownstreamBuildable(proj, aid)
		}
	}

	// Step 3: a Generated artifact whose file is missing or was modified
	// on disk since it was last written forces its own producer back to
	// Buildable, regardless of fingerprint comparisons (spec.md §4.4
	// "generated artifacts are also stat-checked, to catch files touched
	// or removed outside of a build").
	for i := 0; i < proj.NumTransformers(); i++ {
		tid := graph.TransformerID(i)
		t := proj.Transformer(tid)
		if t.State == graph.Buildable {
			continue
		}
		rec, ok := byTransformerKey[keys[i]]
		if !ok {
			continue
		}
		if outputsStale(proj, t, rec) {
			t.State = graph.Buildable
		}
	}

	// AlwaysRun transformers are always Buildable, independent of any
	// fingerprint or timestamp comparison (spec.md §9 "run once and
	// forget").
	for i := 0; i < proj.NumTransformers(); i++ {
		t := proj.Transformer(graph.TransformerID(i))
		if t.AlwaysRun {
			t.State = graph.Buildable
		}
	}

	return nil
}

func markAllBuildable(proj *graph.Project) {
	for i := 0; i < proj.NumTransformers(); i++ {
		proj.Transformer(graph.TransformerID(i)).State = graph.Buildable
	}
}

// markDownstreamBuildable walks the artifact Parents graph from a
// changed Source artifact and marks every transformer it transitively
// feeds as Buildable.
func markDownstreamBuildable(proj *graph.Project, changed graph.ArtifactID) {
	seen := make(map[graph.ArtifactID]bool)
	var visit func(aid graph.ArtifactID)
	visit = func(aid graph.ArtifactID) {
		if seen[aid] {
			return
		}
		seen[aid] = true
		a := proj.Artifact(aid)
		for _, parentID := range a.Parents {
			parent := proj.Artifact(parentID)
			if parent.Producer != graph.NoTransformer {
				proj.Transformer(parent.Producer).State = graph.Buildable
			}
			visit(parentID)
		}
	}
	visit(changed)
}

// outputsStale reports whether any of a transformer's recorded outputs
// is missing, or has a modification time different from what was
// recorded the last time this transformer ran successfully.
func outputsStale(proj *graph.Project, t *graph.Transformer, rec TransformerSnapshot) bool {
	if len(t.Outputs) != len(rec.OutputPaths) {
		return true
	}
	for i, oid := range t.Outputs {
		a := proj.Artifact(oid)
		if a.Path != rec.OutputPaths[i] {
			return true
		}
		info, err := os.Stat(a.Path)
		if err != nil {
			return true
		}
		if i < len(rec.OutputModTimes) && !info.ModTime().Equal(rec.OutputModTimes[i]) {
			return true
		}
	}
	return false
}
