package graph

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gobuild/core/internal/fingerprint"
	"github.com/gobuild/core/internal/resolvedproject"
)

// Resolve constructs the in-memory build graph for a resolved project
// (spec.md §4.1). It is the sole entry point of the build graph
// resolver.
func Resolve(rp *resolvedproject.Project) (*Project, error) {
	if len(rp.Products) == 0 {
		return nil, newConfigError(ProductWithoutProducts, "project %q declares zero products", rp.Name)
	}

	proj := newProject(rp.Name)

	nameToIndex := make(map[string]int, len(rp.Products))
	for i, rpp := range rp.Products {
		if _, dup := nameToIndex[rpp.Name]; dup {
			return nil, newConfigError(UnresolvedDependency, "duplicate product name %q", rpp.Name)
		}
		nameToIndex[rpp.Name] = i
	}

	// Create every Product up front (without artifacts/transformers yet)
	// so that DependsOn can be resolved to ProductIDs regardless of
	// declaration order, then processed leaves-first.
	products := make([]*Product, len(rp.Products))
	for i, rpp := range rp.Products {
		products[i] = &Product{
			Name:           rpp.Name,
			TargetFileTags: append([]string(nil), rpp.TargetFileTags...),
			Rules:          rpp.Rules,
			Properties:     rpp.Properties,
		}
	}
	for i, rpp := range rp.Products {
		for _, depName := range rpp.DependsOn {
			depIdx, ok := nameToIndex[depName]
			if !ok {
				return nil, newConfigError(UnresolvedDependency, "product %q depends on unknown product %q", rpp.Name, depName)
			}
			products[i].DependsOn = append(products[i].DependsOn, ProductID(depIdx))
		}
	}
	for _, prod := range products {
		proj.addProduct(prod)
	}

	order := dependencyClosure(products, allProductIDs(len(products)))

	for _, pid := range order {
		rpp := rp.Products[pid]
		if err := resolveProduct(proj, products[pid], rpp); err != nil {
			return nil, err
		}
	}

	return proj, nil
}

func allProductIDs(n int) []ProductID {
	ids := make([]ProductID, n)
	for i := range ids {
		ids[i] = ProductID(i)
	}
	return ids
}

// visibleArtifactIDs returns the artifacts a product's rules may match
// against: its own plus those of every product in its dependency
// closure (spec.md §3 Product invariant).
func visibleArtifactIDs(proj *Project, prod *Product) []ArtifactID {
	var ids []ArtifactID
	ids = append(ids, prod.ArtifactIDs...)
	for _, depID := range dependencyClosure(proj.products, prod.DependsOn) {
		if depID == prod.ID {
			continue
		}
		ids = append(ids, proj.Product(depID).ArtifactIDs...)
	}
	return ids
}

func resolveProduct(proj *Project, prod *Product, rpp *resolvedproject.Product) error {
	rg, err := buildRuleGraph(rpp.Rules, rpp.TargetFileTags)
	if err != nil {
		return err
	}
	order, _, err := rg.topSorted()
	if err != nil {
		return err
	}

	// Step 4.1.2: create Source artifacts for every declared source file.
	for _, group := range rpp.SourceGroups {
		for _, file := range group.Files {
			props := mergeProperties(rpp.Properties, group.Overlay)
			a := Artifact{
				Path:       file,
				FileTags:   sortedUnique(group.FileTags),
				Kind:       Source,
				Properties: props,
				Producer:   NoTransformer,
				Product:    prod.ID,
			}
			if info, err := os.Stat(file); err == nil {
				a.ModTime = info.ModTime()
			}
			if data, err := os.ReadFile(file); err == nil {
				a.ContentFingerprint = fingerprint.OfBytes(data)
			}
			id, err := registerArtifact(proj, a)
			if err != nil {
				return err
			}
			prod.ArtifactIDs = append(prod.ArtifactIDs, id)
		}
	}

	// Step 4.1.3-4.1.6: apply rules in topological order.
	for _, rule := range order {
		if err := applyRule(proj, prod, rule); err != nil {
			return err
		}
	}

	// Step 4.1 (2): collect target artifacts.
	rootRules := make(map[int]bool, len(rg.roots))
	for _, r := range rg.roots {
		rootRules[r] = true
	}
	for _, aid := range prod.ArtifactIDs {
		a := proj.Artifact(aid)
		if !a.HasAnyTag(prod.TargetFileTags) {
			continue
		}
		if a.Kind == Source {
			prod.TargetArtifacts = append(prod.TargetArtifacts, aid)
			continue
		}
		producer := proj.Transformer(a.Producer)
		if rootRules[producer.Rule.GraphIndex] {
			prod.TargetArtifacts = append(prod.TargetArtifacts, aid)
		}
	}

	return nil
}

// applyRule performs steps 4.1.3 through 4.1.6 for a single rule.
func applyRule(proj *Project, prod *Product, rule *Rule) error {
	visible := visibleArtifactIDs(proj, prod)

	var matches []ArtifactID
	for _, aid := range visible {
		if proj.Artifact(aid).HasAnyTag(rule.InputTags) {
			matches = append(matches, aid)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	var auxAndExtra []ArtifactID
	for _, aid := range visible {
		a := proj.Artifact(aid)
		if a.HasAnyTag(rule.AuxiliaryInputTags) || a.HasAnyTag(rule.ExtraDependencyTags) {
			auxAndExtra = append(auxAndExtra, aid)
		}
	}

	var invocations [][]ArtifactID
	if rule.Multiplex {
		invocations = [][]ArtifactID{matches}
	} else {
		for _, m := range matches {
			invocations = append(invocations, []ArtifactID{m})
		}
	}

	for _, consumed := range invocations {
		inputs := append(append([]ArtifactID(nil), consumed...), auxAndExtra...)
		if err := instantiateTransformer(proj, prod, rule, inputs, consumed); err != nil {
			return err
		}
	}
	return nil
}

func instantiateTransformer(proj *Project, prod *Product, rule *Rule, inputs, consumed []ArtifactID) error {
	inputPaths := make([]string, len(inputs))
	inputFingerprints := make([]fingerprint.Fingerprint, len(inputs))
	for i, aid := range inputs {
		a := proj.Artifact(aid)
		inputPaths[i] = a.Path
		inputFingerprints[i] = a.ContentFingerprint
	}

	props := mergeProperties(prod.Properties, nil)
	outputPaths := make([]string, 0, len(rule.Outputs))
	for _, spec := range rule.Outputs {
		outputPaths = append(outputPaths, evaluateOutputPath(spec.PathTemplate, inputPaths, props))
	}

	var commands []Command
	if rule.Commands != nil {
		built, err := rule.Commands(inputPaths, outputPaths, props)
		if err != nil {
			return fmt.Errorf("rule %q: building commands: %w", rule.ID, err)
		}
		commands = built
	}

	weight := rule.Weight
	if weight == 0 {
		weight = 1
	}
	allAlwaysRun := len(commands) > 0
	for _, c := range commands {
		if !c.AlwaysRun {
			allAlwaysRun = false
		}
	}

	ruleDigest := fingerprint.RuleIdentityDigest(rule.ID, rule.InputTags, rule.AuxiliaryInputTags, rule.ExtraDependencyTags, rule.OutputTags, rule.Multiplex)
	fb := fingerprint.NewBuilder().AddRuleIdentity(ruleDigest).AddInputFingerprints(inputFingerprints)
	for _, c := range commands {
		fb.AddCommand([]byte(commandDescriptor(c)))
	}
	for _, name := range sortedUnique(rule.InfluentialProperties) {
		if v, ok := props[name]; ok {
			fb.AddProperty(name, []byte(propertyDescriptor(v)))
		}
	}

	t := Transformer{
		Rule:      rule,
		Inputs:    inputs,
		Commands:  commands,
		Pools:     append([]string(nil), rule.Pools...),
		Weight:    weight,
		AlwaysRun: allAlwaysRun,
		State:     Untouched,
		Product:   prod.ID,
		Fingerprint: fb.Sum(),
	}
	tid := proj.addTransformer(t)
	prod.TransformerIDs = append(prod.TransformerIDs, tid)

	outputIDs := make([]ArtifactID, 0, len(rule.Outputs))
	for i, spec := range rule.Outputs {
		a := Artifact{
			Path:       outputPaths[i],
			FileTags:   sortedUnique(spec.FileTags),
			Kind:       Generated,
			Properties: props,
			Producer:   tid,
			Product:    prod.ID,
		}
		id, err := registerArtifact(proj, a)
		if err != nil {
			return err
		}
		outputIDs = append(outputIDs, id)
		prod.ArtifactIDs = append(prod.ArtifactIDs, id)
	}

	proj.Transformer(tid).Outputs = outputIDs

	// Step 4.1.5: wire parent/child edges.
	for _, oid := range outputIDs {
		out := proj.Artifact(oid)
		out.Children = append(out.Children, inputs...)
	}
	for _, iid := range inputs {
		in := proj.Artifact(iid)
		in.Parents = append(in.Parents, outputIDs...)
	}

	return nil
}

// registerArtifact inserts a into the project, enforcing spec.md §4.1's
// duplicate-path tie-breaking rules.
func registerArtifact(proj *Project, a Artifact) (ArtifactID, error) {
	if a.Kind == Generated {
		for _, eid := range proj.ArtifactsAtPath(a.Path) {
			existing := proj.Artifact(eid)
			if existing.Kind == Generated {
				return NoArtifact, newConfigError(DuplicateGeneratedArtifact, "path %q is produced by more than one transformer", a.Path)
			}
			// existing.Kind == Source
			if existing.Product == a.Product {
				return NoArtifact, newConfigError(DuplicateGeneratedArtifact, "path %q is both a source and a generated artifact in product %q", a.Path, proj.Product(a.Product).Name)
			}
			// Source in a different product: the Generated artifact
			// wins (spec.md §4.1 tie-breaking); no error.
		}
	}
	return proj.addArtifact(a), nil
}

func mergeProperties(base, overlay map[string]resolvedproject.PropertyValue) map[string]resolvedproject.PropertyValue {
	merged := make(map[string]resolvedproject.PropertyValue, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

func sortedUnique(in []string) []string {
	set := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !set[s] {
			set[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// evaluateOutputPath expands the minimal templating spec.md §9 describes
// Qbs's rule.Artifacts specifications as using: "%{base}" becomes the
// first input's path with its final extension stripped.
func evaluateOutputPath(template string, inputPaths []string, _ map[string]resolvedproject.PropertyValue) string {
	base := ""
	if len(inputPaths) > 0 {
		base = inputPaths[0]
		if idx := strings.LastIndexByte(base, '.'); idx > strings.LastIndexByte(base, '/') {
			base = base[:idx]
		}
	}
	out := strings.ReplaceAll(template, "%{base}", base)
	return out
}

func commandDescriptor(c Command) string {
	var b strings.Builder
	b.WriteString(c.Executable)
	for _, a := range c.Argv {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	if c.WorkingDir != "" {
		b.WriteString(";cwd=")
		b.WriteString(c.WorkingDir)
	}
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ";env:%s=%s", k, c.Env[k])
	}
	return b.String()
}

func propertyDescriptor(v resolvedproject.PropertyValue) string {
	switch v.Kind {
	case resolvedproject.PropertyString:
		return "s:" + v.Str
	case resolvedproject.PropertyNumber:
		return fmt.Sprintf("n:%v", v.Num)
	case resolvedproject.PropertyBool:
		return fmt.Sprintf("b:%v", v.Bool)
	case resolvedproject.PropertyList:
		var b strings.Builder
		b.WriteString("l:[")
		for i, e := range v.List {
			if i != 0 {
				b.WriteByte(',')
			}
			b.WriteString(propertyDescriptor(e))
		}
		b.WriteByte(']')
		return b.String()
	default:
		return ""
	}
}
