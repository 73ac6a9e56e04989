package projectfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gobuild/core/internal/resolvedproject"
)

func compilerBuilder(inputs, outputs []string, props map[string]resolvedproject.PropertyValue) ([]resolvedproject.Command, error) {
	return []resolvedproject.Command{{
		Kind:        resolvedproject.ScriptCommandKind,
		Description: "compile " + inputs[0],
		ScriptHandle: func() error {
			return os.WriteFile(outputs[0], []byte("object"), 0o644)
		},
	}}, nil
}

func TestLoadBytesBuildsProject(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.c")
	if err := os.WriteFile(src, []byte("int main(){}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc := `
[project]
name = "demo"

[[products]]
name = "app"
target_file_tags = ["object"]
depends_on = []

[products.properties]
optimize = true
level = 2

[[products.source_groups]]
file_tags = ["c"]
files = ["` + filepath.ToSlash(src) + `"]

[[products.rules]]
id = "cpp.compiler"
input_tags = ["c"]
output_tags = ["object"]
influential_properties = ["optimize"]
pools = ["compile"]
weight = 2

[[products.rules.outputs]]
file_tags = ["object"]
path_template = "%{base}.o"
`

	registry := Registry{"cpp.compiler": compilerBuilder}
	proj, err := LoadBytes([]byte(doc), registry)
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	if proj.Name != "demo" {
		t.Fatalf("Name = %q, want demo", proj.Name)
	}
	if len(proj.Products) != 1 {
		t.Fatalf("Products = %d, want 1", len(proj.Products))
	}
	p := proj.Products[0]
	if p.Name != "app" {
		t.Fatalf("product name = %q, want app", p.Name)
	}
	if len(p.SourceGroups) != 1 || len(p.SourceGroups[0].Files) != 1 {
		t.Fatalf("unexpected source groups: %+v", p.SourceGroups)
	}
	if len(p.Rules) != 1 {
		t.Fatalf("Rules = %d, want 1", len(p.Rules))
	}
	r := p.Rules[0]
	if r.ID != "cpp.compiler" || r.Weight != 2 || len(r.Outputs) != 1 {
		t.Fatalf("unexpected rule: %+v", r)
	}
	if r.Commands == nil {
		t.Fatal("rule Commands builder not wired from registry")
	}

	optimize, ok := p.Properties["optimize"]
	if !ok || optimize.Kind != resolvedproject.PropertyBool || !optimize.Bool {
		t.Fatalf("optimize property = %+v", optimize)
	}
	level, ok := p.Properties["level"]
	if !ok || level.Kind != resolvedproject.PropertyNumber || level.Num != 2 {
		t.Fatalf("level property = %+v", level)
	}
}

func TestLoadBytesUnknownRuleIDFails(t *testing.T) {
	doc := `
[project]
name = "demo"

[[products]]
name = "app"

[[products.rules]]
id = "missing.rule"
`
	_, err := LoadBytes([]byte(doc), Registry{})
	if err == nil {
		t.Fatal("expected error for unregistered rule ID")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"), Registry{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
