package graph

import (
	"path/filepath"
	"runtime"
)

// Project is the root of ownership for artifacts, transformers and
// products (spec.md §3). It is backed by arenas (plain slices) indexed
// by ArtifactID/TransformerID/ProductID rather than owning pointers, per
// spec.md §9's re-architecture guidance.
type Project struct {
	Name string

	artifacts    []Artifact
	transformers []Transformer
	products     []*Product

	// lookup maps an absolute path to every artifact at that path,
	// across the whole project, supporting spec.md §3's invariant check
	// ("for any two artifacts in the same project with the same path,
	// at most one is Generated") and cross-product dependency checks.
	//
	// Per spec.md §5 ("the artifact-lookup table is written only during
	// graph construction... and read-only during execution"), callers
	// must not mutate this after Resolve returns.
	lookup map[string][]ArtifactID

	// SourceArtifacts is the set enumerated during construction,
	// returned to the change tracker (spec.md §4.1 "Output: ... Returns
	// the set of Source artifacts it enumerated, for change-tracking").
	SourceArtifacts []ArtifactID
}

func newProject(name string) *Project {
	return &Project{
		Name:   name,
		lookup: make(map[string][]ArtifactID),
	}
}

// Artifact returns a pointer into the project's arena. The pointer is
// valid only until the next call that appends to the arena; callers
// within a single-threaded construction or single-threaded
// fingerprint-refresh pass (spec.md §5) may hold it across such calls as
// long as no new artifacts are appended in between.
func (p *Project) Artifact(id ArtifactID) *Artifact {
	return &p.artifacts[id]
}

func (p *Project) Transformer(id TransformerID) *Transformer {
	return &p.transformers[id]
}

func (p *Project) Product(id ProductID) *Product {
	return p.products[id]
}

func (p *Project) Products() []*Product {
	return p.products
}

func (p *Project) NumArtifacts() int {
	return len(p.artifacts)
}

func (p *Project) NumTransformers() int {
	return len(p.transformers)
}

// ArtifactsAtPath returns every artifact registered at the given
// absolute path, honoring the host filesystem's case-sensitivity policy
// via pathKey (spec.md §4.1 "Path comparison uses the host filesystem's
// case-sensitivity rule").
func (p *Project) ArtifactsAtPath(path string) []ArtifactID {
	return p.lookup[pathKey(path)]
}

func (p *Project) addArtifact(a Artifact) ArtifactID {
	id := ArtifactID(len(p.artifacts))
	a.ID = id
	p.artifacts = append(p.artifacts, a)
	p.lookup[pathKey(a.Path)] = append(p.lookup[pathKey(a.Path)], id)
	if a.Kind == Source {
		p.SourceArtifacts = append(p.SourceArtifacts, id)
	}
	return id
}

func (p *Project) addTransformer(t Transformer) TransformerID {
	id := TransformerID(len(p.transformers))
	t.ID = id
	p.transformers = append(p.transformers, t)
	return id
}

func (p *Project) addProduct(prod *Product) ProductID {
	id := ProductID(len(p.products))
	prod.ID = id
	p.products = append(p.products, prod)
	return id
}

// ProductByName looks up a product by name, returning (id, true) on
// success. Used to resolve resolvedproject.Product.DependsOn names into
// ProductIDs (spec.md §4.1 UnresolvedDependency).
func (p *Project) ProductByName(name string) (ProductID, bool) {
	for _, prod := range p.products {
		if prod.Name == name {
			return prod.ID, true
		}
	}
	return NoProduct, false
}

// pathKey normalizes a path for use as a lookup-table key, applying the
// host filesystem's case-sensitivity policy. On case-insensitive
// filesystems (notably Windows and default macOS), a package-level
// override can fold case; by default (Linux, the common CI and server
// target for a build-system core) paths are compared case-sensitively.
var caseInsensitivePaths = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

func pathKey(path string) string {
	clean := filepath.Clean(path)
	if caseInsensitivePaths {
		return toLowerASCII(clean)
	}
	return clean
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
