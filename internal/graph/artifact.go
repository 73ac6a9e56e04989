package graph

import (
	"time"

	"github.com/gobuild/core/internal/fingerprint"
	"github.com/gobuild/core/internal/resolvedproject"
)

// ArtifactKind distinguishes Source from Generated artifacts (spec.md §3).
type ArtifactKind int

const (
	Source ArtifactKind = iota
	Generated
)

func (k ArtifactKind) String() string {
	if k == Source {
		return "Source"
	}
	return "Generated"
}

// BuildState is the per-transformer (and, by extension, per-artifact)
// state machine from spec.md §4.3.
type BuildState int

const (
	Untouched BuildState = iota
	Buildable
	Building
	Built
	Failed
)

func (s BuildState) String() string {
	switch s {
	case Untouched:
		return "Untouched"
	case Buildable:
		return "Buildable"
	case Building:
		return "Building"
	case Built:
		return "Built"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Artifact is a file or file-like atom in the graph (spec.md §3).
type Artifact struct {
	ID   ArtifactID
	Path string // absolute

	// FileTags is represented as a sorted, deduplicated slice rather
	// than a map so that fingerprints and persisted output are
	// deterministic without a separate sort step at every use site.
	FileTags []string

	Kind       ArtifactKind
	Properties map[string]resolvedproject.PropertyValue

	State BuildState

	// ModTime and Fingerprint are the recorded, as-of-last-build values
	// used for change detection (spec.md §4.2, §4.4). ContentFingerprint
	// is only meaningful for Source artifacts; Generated artifacts are
	// compared via their producing Transformer's fingerprint instead.
	ModTime            time.Time
	ContentFingerprint fingerprint.Fingerprint

	// Producer is the single producing Transformer for a Generated
	// artifact, or NoTransformer for a Source artifact (spec.md §3
	// invariant: "every Generated artifact has exactly one producing
	// transformer; Source artifacts have none").
	Producer TransformerID

	// Parents are artifacts immediately downstream of this one: for
	// every transformer that consumes this artifact as an input, every
	// one of that transformer's outputs is added here (spec.md §4.1
	// step 1.5).
	Parents []ArtifactID
	// Children are artifacts immediately upstream of this one: for a
	// Generated artifact, the inputs of its producing Transformer.
	Children []ArtifactID

	Product ProductID
}

// HasTag reports whether the artifact carries the given file-tag, using
// exact string equality as mandated by spec.md §4.1 ("file-tag matching
// is exact string equality; no prefix or glob semantics").
func (a *Artifact) HasTag(tag string) bool {
	for _, t := range a.FileTags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasAnyTag reports whether the artifact carries any of the given tags.
func (a *Artifact) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if a.HasTag(t) {
			return true
		}
	}
	return false
}
