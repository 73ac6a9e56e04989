package persist

import (
	"sort"
	"strings"

	"github.com/gobuild/core/internal/graph"
)

// transformerKey computes a persisted-graph identity for a transformer
// that survives across runs, unlike its TransformerID (an arena index,
// only stable within one resolved graph). Two transformers in successive
// runs are "the same" transformer iff they were instantiated from the
// same rule with the same set of input paths (spec.md §4.2: a rule
// applied to the same concrete inputs is the same transformer across
// runs even if unrelated products were added or removed elsewhere in the
// project).
func transformerKey(proj *graph.Project, t *graph.Transformer) string {
	paths := make([]string, len(t.Inputs))
	for i, aid := range t.Inputs {
		paths[i] = proj.Artifact(aid).Path
	}
	sort.Strings(paths)
	var b strings.Builder
	b.WriteString(t.Rule.ID)
	b.WriteByte('\x00')
	b.WriteString(strings.Join(paths, "\x1f"))
	return b.String()
}
