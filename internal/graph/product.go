package graph

import "github.com/gobuild/core/internal/resolvedproject"

// Product is a named group of source artifacts and transformers
// (spec.md §3).
type Product struct {
	ID   ProductID
	Name string

	TargetFileTags []string

	// DependsOn holds the ProductIDs of this product's declared
	// dependencies, resolved from resolvedproject.Product.DependsOn
	// names (spec.md §4.1 "UnresolvedDependency").
	DependsOn []ProductID

	Rules []*resolvedproject.Rule

	ArtifactIDs    []ArtifactID
	TransformerIDs []TransformerID

	// TargetArtifacts are the subset of ArtifactIDs that are this
	// product's build targets: those whose file-tags intersect
	// TargetFileTags AND are reachable from the rule graph's roots
	// (spec.md §4.1 step 2).
	TargetArtifacts []ArtifactID

	Properties map[string]resolvedproject.PropertyValue
}

// ExpandDependencyClosure returns the given product IDs plus every
// product transitively reachable through DependsOn edges, in
// leaves-first order (spec.md §4.3: "expanded to include the transitive
// dependency closure").
func (p *Project) ExpandDependencyClosure(ids []ProductID) []ProductID {
	return dependencyClosure(p.products, ids)
}

// dependencyClosure returns the set of ProductIDs reachable from the
// given starting set by following DependsOn edges, including the
// starting set itself. Used both by graph construction (leaves-first
// ordering) and by executor.Build (spec.md §4.3: "expanded to include
// the transitive dependency closure").
func dependencyClosure(products []*Product, start []ProductID) []ProductID {
	seen := make(map[ProductID]bool)
	var order []ProductID
	var visit func(id ProductID)
	visit = func(id ProductID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, dep := range products[id].DependsOn {
			visit(dep)
		}
		order = append(order, id)
	}
	for _, id := range start {
		visit(id)
	}
	return order
}
