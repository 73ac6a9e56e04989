package job

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gobuild/core/internal/executor"
	"github.com/gobuild/core/internal/graph"
	"github.com/gobuild/core/internal/resolvedproject"
)

func testProject(t *testing.T, srcDir string) *resolvedproject.Project {
	t.Helper()
	srcPath := filepath.Join(srcDir, "main.c")
	if err := os.WriteFile(srcPath, []byte("int main(){}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return &resolvedproject.Project{
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
									return os.WriteFile(outputs[0], []byte("object"), 0o644)
								},
								Description: "compile " + inputs[0],
							}}, nil
						},
					},
				},
			},
		},
	}
}

func TestJobBuildTwiceSkipsSecondRun(t *testing.T) {
	srcDir := t.TempDir()
	buildDir := t.TempDir()

	rp := testProject(t, srcDir)
	j, proj, err := New(rp, buildDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	opts := executor.DefaultOptions()
	result, err := j.Build(context.Background(), proj, []graph.ProductID{0}, opts, nil)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if len(result.Executed) != 1 {
		t.Fatalf("first Build Executed = %v, want 1 transformer", result.Executed)
	}

	rp2 := testProject(t, srcDir)
	j2, proj2, err := New(rp2, buildDir)
	if err != nil {
		t.Fatalf("New (2nd): %v", err)
	}
	result2, err := j2.Build(context.Background(), proj2, []graph.ProductID{0}, opts, nil)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if len(result2.Executed) != 0 {
		t.Fatalf("second Build Executed = %v, want none (nothing changed)", result2.Executed)
	}
}

func TestTextProgressWritesOnFailure(t *testing.T) {
	var buf bytes.Buffer
	p := NewTextProgress(&buf, true)
	p.TaskStarted("build", 3)
	p.ProcessResult(executor.ProcessResult{Success: false, ExitCode: 1, CommandLine: "false"})
	if buf.Len() == 0 {
		t.Fatal("expected output to be written")
	}
}
