// Package persist implements the persisted build graph (spec.md §4.4,
// §7): a versioned on-disk record of the previous build's artifacts and
// transformers, used to detect what changed since then without
// recomputing the whole project from scratch.
//
// The wire format is a flat, explicitly length-prefixed binary encoding
// in the spirit of execgraph's element table (opentofu's in-memory
// execution graph is serialized to a protobuf-defined element list built
// in topological order); here the element table is written by hand,
// field by field, using google.golang.org/protobuf/encoding/protowire's
// varint and length-delimited helpers directly rather than through a
// schema-generated .pb.go message, since this module has no protoc step
// available to regenerate one from a .proto file. See DESIGN.md for the
// reasoning.
package persist

import (
	"time"

	"github.com/gobuild/core/internal/fingerprint"
)

// FormatVersion is the current on-disk schema version, compared against
// a loaded snapshot's stamp with hashicorp/go-version so that a future
// incompatible format change can be detected and reported instead of
// silently misread (spec.md §7 "the persisted format is versioned; a
// version mismatch is reported, never silently reinterpreted").
const FormatVersion = "1.0.0"

// ArtifactSnapshot is the as-of-last-build record for one Source
// artifact. Only Source artifacts are snapshotted directly; Generated
// artifacts are reconstructed from their producing TransformerSnapshot
// instead, since their identity already depends on the rule graph
// (spec.md §4.4).
type ArtifactSnapshot struct {
	Path               string
	FileTags           []string
	ModTime            time.Time
	ContentFingerprint fingerprint.Fingerprint
}

// TransformerSnapshot is the as-of-last-build record for one
// transformer. Key is a stable identity computed from the rule and its
// sorted input paths (internal transformer IDs are arena-local and not
// stable across runs, so they cannot serve as the persisted key; see
// transformerKey).
type TransformerSnapshot struct {
	Key               string
	Fingerprint       fingerprint.Fingerprint
	OutputPaths       []string
	OutputModTimes    []time.Time
	OutputFingerprint []fingerprint.Fingerprint
}

// ProductSnapshot groups the artifacts and transformers belonging to one
// product, mirroring graph.Product's scoping.
type ProductSnapshot struct {
	Name         string
	Artifacts    []ArtifactSnapshot
	Transformers []TransformerSnapshot
}

// Snapshot is the full persisted graph for one project (spec.md §7).
type Snapshot struct {
	FormatVersion string
	ProjectName   string
	Products      []ProductSnapshot
}
