package graph

import (
	"github.com/gobuild/core/internal/resolvedproject"
)

// ruleGraph is a DAG over a product's rules (spec.md §3 "Rule graph"),
// grounded on Qbs's RuleGraph (original_source/src/lib/buildgraph/rulegraph.{h,cpp}):
// rules are connected by shared output/input file-tags, roots are the
// rules whose outputs feed the product's target file-tags, and
// topSorted() produces application order.
type ruleGraph struct {
	rules    []*Rule
	children [][]int // children[i] = indices of rules that consume an output of rule i
	parents  [][]int // parents[i] = indices of rules that produce an input of rule i
	roots    []int
}

// buildRuleGraph mirrors RuleGraph::build: for every pair of rules
// (producer, consumer) where the producer's output tags intersect the
// consumer's input/auxiliary/extra-dependency tags, add an edge
// producer -> consumer. Root rules are those whose output tags
// intersect the product's target file-tags.
func buildRuleGraph(rules []*resolvedproject.Rule, targetFileTags []string) (*ruleGraph, error) {
	rg := &ruleGraph{}
	for i, r := range rules {
		gr := &Rule{Rule: r, GraphIndex: i}
		rg.rules = append(rg.rules, gr)
	}
	n := len(rg.rules)
	rg.children = make([][]int, n)
	rg.parents = make([][]int, n)

	consumerTagsOf := func(r *resolvedproject.Rule) []string {
		all := make([]string, 0, len(r.InputTags)+len(r.AuxiliaryInputTags)+len(r.ExtraDependencyTags))
		all = append(all, r.InputTags...)
		all = append(all, r.AuxiliaryInputTags...)
		all = append(all, r.ExtraDependencyTags...)
		return all
	}

	for i, producer := range rg.rules {
		for j, consumer := range rg.rules {
			if i == j {
				continue
			}
			if tagsIntersect(producer.OutputTags, consumerTagsOf(consumer.Rule)) {
				rg.children[i] = append(rg.children[i], j)
				rg.parents[j] = append(rg.parents[j], i)
			}
		}
	}

	for i, r := range rg.rules {
		if tagsIntersect(r.OutputTags, targetFileTags) {
			rg.roots = append(rg.roots, i)
		}
	}

	return rg, nil
}

func tagsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// topSorted returns rule application order: a topological sort reaching
// every rule connected (directly or transitively) to a root, in an order
// compatible with producer-before-consumer (spec.md §3 "Contract:
// topological_sort(roots) returns the order in which rules must be
// applied"). Cycles are reported as CyclicRuleGraph.
//
// Rules with no path to any root still matter for spec.md §4.1's
// algorithm (every rule whose inputs match an artifact fires, not only
// rules reachable from the roots) so, unlike Qbs's pruning RuleGraph,
// this implementation topologically sorts ALL rules and separately
// reports unreachable ones as warnings rather than discarding them.
func (rg *ruleGraph) topSorted() ([]*Rule, []error, error) {
	n := len(rg.rules)
	state := make([]int, n) // 0=unvisited, 1=visiting, 2=done
	order := make([]*Rule, 0, n)
	var cyclePath []int

	var visit func(i int) bool
	visit = func(i int) bool {
		switch state[i] {
		case 2:
			return true
		case 1:
			cyclePath = append(cyclePath, i)
			return false
		}
		state[i] = 1
		for _, p := range rg.parents[i] {
			if !visit(p) {
				if state[i] != 2 {
					cyclePath = append(cyclePath, i)
				}
				return false
			}
		}
		state[i] = 2
		order = append(order, rg.rules[i])
		return true
	}

	// Visit in declaration order for determinism (spec.md §8
	// Determinism): two builds of the same project produce the same
	// rule application order.
	for i := 0; i < n; i++ {
		if state[i] == 0 {
			if !visit(i) {
				return nil, nil, newConfigError(CyclicRuleGraph, "cycle detected involving rule %q", rg.rules[cyclePath[0]].ID)
			}
		}
	}

	var warnings []error
	reachable := rg.reachableFromRoots()
	for i, r := range rg.rules {
		if !reachable[i] {
			warnings = append(warnings, &UnreachableRuleWarning{RuleID: r.ID})
		}
	}

	return order, warnings, nil
}

func (rg *ruleGraph) reachableFromRoots() []bool {
	reached := make([]bool, len(rg.rules))
	var visit func(i int)
	visit = func(i int) {
		if reached[i] {
			return
		}
		reached[i] = true
		for _, p := range rg.parents[i] {
			visit(p)
		}
	}
	for _, r := range rg.roots {
		visit(r)
	}
	return reached
}
