package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gobuild/core/internal/graph"
	"github.com/gobuild/core/internal/resolvedproject"
)

func simpleProject(t *testing.T, srcContent string) (*graph.Project, string) {
	t.Helper()
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.c")
	if err := os.WriteFile(srcPath, []byte(srcContent), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rp := &resolvedproject.Project{
		Name: "demo",
		Products: []*resolvedproject.Product{
			{
				Name:           "app",
				TargetFileTags: []string{"object"},
				SourceGroups: []*resolvedproject.SourceGroup{
					{FileTags: []string{"c"}, Files: []string{srcPath}},
				},
				Rules: []*resolvedproject.Rule{
					{
						ID:         "cpp.compiler",
						InputTags:  []string{"c"},
						OutputTags: []string{"object"},
						Outputs: []resolvedproject.OutputSpec{
							{FileTags: []string{"object"}, PathTemplate: "%{base}.o"},
						},
						Commands: func(inputs, outputs []string, props map[string]resolvedproject.PropertyValue) ([]resolvedproject.Command, error) {
							return []resolvedproject.Command{{
								Kind:       resolvedproject.ScriptCommandKind,
								ScriptHandle: func() error {
									return os.WriteFile(outputs[0], []byte("compiled:"+inputs[0]), 0o644)
								},
								Description: "compile " + inputs[0],
							}}, nil
						},
					},
				},
			},
		},
	}

	proj, err := graph.Resolve(rp)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return proj, dir
}

func runAllBuildable(proj *graph.Project) error {
	for i := 0; i < proj.NumTransformers(); i++ {
		t := proj.Transformer(graph.TransformerID(i))
		if t.State != graph.Buildable {
			continue
		}
		for _, cmd := range t.Commands {
			if err := cmd.ScriptHandle(); err != nil {
				return err
			}
		}
		t.State = graph.Built
	}
	return nil
}

func TestDetectChangesFirstBuildIsAllBuildable(t *testing.T) {
	proj, _ := simpleProject(t, "int main(){}")

	if err := DetectChanges(proj, nil); err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	for i := 0; i < proj.NumTransformers(); i++ {
		if got := proj.Transformer(graph.TransformerID(i)).State; got != graph.Buildable {
			t.Errorf("transformer %d state = %s, want Buildable", i, got)
		}
	}
}

func TestDetectChangesUnchangedSourceSkipsTransformer(t *testing.T) {
	proj, dir := simpleProject(t, "int main(){}")
	if err := DetectChanges(proj, nil); err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if err := runAllBuildable(proj); err != nil {
		t.Fatalf("runAllBuildable: %v", err)
	}
	snap := BuildSnapshot(proj)

	// Re-resolve an identical project, as a subsequent build() call would.
	proj2, _ := simpleProject2(t, dir, "int main(){}")
	if err := DetectChanges(proj2, snap); err != nil {
		t.Fatalf("DetectChanges (2nd): %v", err)
	}
	for i := 0; i < proj2.NumTransformers(); i++ {
		if got := proj2.Transformer(graph.TransformerID(i)).State; got != graph.Built {
			t.Errorf("transformer %d state = %s, want Built (unchanged source)", i, got)
		}
	}
}

func TestDetectChangesModifiedSourceReBuildsTransformer(t *testing.T) {
	proj, dir := simpleProject(t, "int main(){}")
	if err := DetectChanges(proj, nil); err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if err := runAllBuildable(proj); err != nil {
		t.Fatalf("runAllBuildable: %v", err)
	}
	snap := BuildSnapshot(proj)

	proj2, _ := simpleProject2(t, dir, "int main(){ return 1; }")
	if err := DetectChanges(proj2, snap); err != nil {
		t.Fatalf("DetectChanges (2nd): %v", err)
	}
	for i := 0; i < proj2.NumTransformers(); i++ {
		if got := proj2.Transformer(graph.TransformerID(i)).State; got != graph.Buildable {
			t.Errorf("transformer %d state = %s, want Buildable (source changed)", i, got)
		}
	}
}

func TestDetectChangesMissingOutputReBuildsTransformer(t *testing.T) {
	proj, dir := simpleProject(t, "int main(){}")
	if err := DetectChanges(proj, nil); err != nil {
		t.Fatalf("DetectChanges: %v", err)
	}
	if err := runAllBuildable(proj); err != nil {
		t.Fatalf("runAllBuildable: %v", err)
	}
	snap := BuildSnapshot(proj)

	if err := os.Remove(filepath.Join(dir, "main.o")); err != nil {
		t.Fatalf("removing output: %v", err)
	}

	proj2, _ := simpleProject2(t, dir, "int main(){}")
	if err := DetectChanges(proj2, snap); err != nil {
		t.Fatalf("DetectChanges (2nd): %v", err)
	}
	for i := 0; i < proj2.NumTransformers(); i++ {
		if got := proj2.Transformer(graph.TransformerID(i)).State; got != graph.Buildable {
			t.Errorf("transformer %d state = %s, want Buildable (output missing)", i, got)
		}
	}
}

// simpleProject2 re-resolves a project against an existing directory
// (and, optionally, an updated source file), as DetectChanges expects to
// run against a freshly Resolve()d graph each time rather than a reused
// one.
func simpleProject2(t *testing.T, dir, srcContent string) (*graph.Project, string) {
	t.Helper()
	srcPath := filepath.Join(dir, "main.c")
	if err := os.WriteFile(srcPath, []byte(srcContent), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rp := &resolvedproject.Project{
		Name: "demo",
		Products: []*resolvedproject.Product{
			{
				Name:           "app",
				TargetFileTags: []string{"object"},
				SourceGroups: []*resolvedproject.SourceGroup{
					{FileTags: []string{"c"}, Files: []string{srcPath}},
				},
				Rules: []*resolvedproject.Rule{
					{
						ID:         "cpp.compiler",
						InputTags:  []string{"c"},
						OutputTags: []string{"object"},
						Outputs: []resolvedproject.OutputSpec{
							{FileTags: []string{"object"}, PathTemplate: "%{base}.o"},
						},
						Commands: func(inputs, outputs []string, props map[string]resolvedproject.PropertyValue) ([]resolvedproject.Command, error) {
							return []resolvedproject.Command{{
								Kind: resolvedproject.ScriptCommandKind,
								ScriptHandle: func() error {
									return os.WriteFile(outputs[0], []byte("compiled:"+inputs[0]), 0o644)
								},
								Description: "compile " + inputs[0],
							}}, nil
						},
					},
				},
			},
		},
	}
	proj, err := graph.Resolve(rp)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return proj, dir
}
