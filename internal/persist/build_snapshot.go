package persist

import (
	"os"

	"github.com/gobuild/core/internal/fingerprint"
	"github.com/gobuild/core/internal/graph"
)

// BuildSnapshot captures the current on-disk state of proj's artifacts
// and transformers into a Snapshot suitable for Save, to be compared
// against on the next build via DetectChanges. It is called once at the
// end of a build() call, after the executor returns, over whichever
// transformers reached the Built state (spec.md §4.4 step 5: "the
// persisted graph is rewritten to reflect the new state of the world").
//
// A transformer whose outputs cannot be stat'd (for instance because it
// Failed and never produced them) is simply omitted from the snapshot,
// which has the effect of leaving it eligible to run again on the next
// build.
func BuildSnapshot(proj *graph.Project) *Snapshot {
	snap := &Snapshot{
		FormatVersion: FormatVersion,
		ProjectName:   proj.Name,
	}

	for _, prod := range proj.Products() {
		ps := ProductSnapshot{Name: prod.Name}

		for _, aid := range prod.ArtifactIDs {
			a := proj.Artifact(aid)
			if a.Kind != graph.Source {
				continue
			}
			ps.Artifacts = append(ps.Artifacts, ArtifactSnapshot{
				Path:               a.Path,
				FileTags:           a.FileTags,
				ModTime:            a.ModTime,
				ContentFingerprint: a.ContentFingerprint,
			})
		}

		for _, tid := range prod.TransformerIDs {
			t := proj.Transformer(tid)
			if t.State != graph.Built {
				continue
			}
			ts, ok := snapshotOutputs(proj, t)
			if !ok {
				continue
			}
			ts.Key = transformerKey(proj, t)
			ts.Fingerprint = t.Fingerprint
			ps.Transformers = append(ps.Transformers, ts)
		}

		snap.Products = append(snap.Products, ps)
	}

	return snap
}

func snapshotOutputs(proj *graph.Project, t *graph.Transformer) (TransformerSnapshot, bool) {
	var ts TransformerSnapshot
	for _, oid := range t.Outputs {
		a := proj.Artifact(oid)
		info, err := os.Stat(a.Path)
		if err != nil {
			return TransformerSnapshot{}, false
		}
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return TransformerSnapshot{}, false
		}
		ts.OutputPaths = append(ts.OutputPaths, a.Path)
		ts.OutputModTimes = append(ts.OutputModTimes, info.ModTime())
		ts.OutputFingerprint = append(ts.OutputFingerprint, fingerprint.OfBytes(data))
	}
	return ts, true
}
