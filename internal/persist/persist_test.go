package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gobuild/core/internal/fingerprint"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := PathIn(dir)

	want := &Snapshot{
		FormatVersion: FormatVersion,
		ProjectName:   "demo",
		Products: []ProductSnapshot{
			{
				Name: "app",
				Artifacts: []ArtifactSnapshot{
					{
						Path:               "/src/main.c",
						FileTags:           []string{"c"},
						ModTime:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
						ContentFingerprint: fingerprint.OfBytes([]byte("int main(){}")),
					},
				},
				Transformers: []TransformerSnapshot{
					{
						Key:               "cpp.compiler\x00/src/main.c",
						Fingerprint:       fingerprint.OfBytes([]byte("rule-digest")),
						OutputPaths:       []string{"/build/main.o"},
						OutputModTimes:    []time.Time{time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC)},
						OutputFingerprint: []fingerprint.Fingerprint{fingerprint.OfBytes([]byte("object code"))},
					},
				},
			},
		},
	}

	if err := Save(context.Background(), path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.ProjectName != want.ProjectName {
		t.Errorf("ProjectName = %q, want %q", got.ProjectName, want.ProjectName)
	}
	if len(got.Products) != 1 {
		t.Fatalf("len(Products) = %d, want 1", len(got.Products))
	}
	gp, wp := got.Products[0], want.Products[0]
	if gp.Name != wp.Name {
		t.Errorf("Product.Name = %q, want %q", gp.Name, wp.Name)
	}
	if len(gp.Artifacts) != 1 || gp.Artifacts[0].Path != wp.Artifacts[0].Path {
		t.Fatalf("Artifacts = %+v, want %+v", gp.Artifacts, wp.Artifacts)
	}
	if !gp.Artifacts[0].ModTime.Equal(wp.Artifacts[0].ModTime) {
		t.Errorf("ModTime = %v, want %v", gp.Artifacts[0].ModTime, wp.Artifacts[0].ModTime)
	}
	if gp.Artifacts[0].ContentFingerprint != wp.Artifacts[0].ContentFingerprint {
		t.Errorf("ContentFingerprint mismatch")
	}
	if len(gp.Transformers) != 1 || gp.Transformers[0].Key != wp.Transformers[0].Key {
		t.Fatalf("Transformers = %+v, want %+v", gp.Transformers, wp.Transformers)
	}
	if gp.Transformers[0].Fingerprint != wp.Transformers[0].Fingerprint {
		t.Errorf("Transformer Fingerprint mismatch")
	}
}

func TestLoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	got, err := Load(PathIn(dir))
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil snapshot for missing file, got %+v", got)
	}
}

func TestLoadRejectsForeignFile(t *testing.T) {
	dir := t.TempDir()
	path := PathIn(dir)
	if err := os.WriteFile(path, []byte("not a gobuild graph"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error loading a non-gobuild file")
	}
}

func TestLoadRejectsIncompatibleMajorVersion(t *testing.T) {
	dir := t.TempDir()
	path := PathIn(dir)
	snap := &Snapshot{FormatVersion: "99.0.0", ProjectName: "demo"}
	if err := Save(context.Background(), path, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an incompatible-format error")
	}
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := PathIn(dir)

	if err := Save(context.Background(), path, &Snapshot{ProjectName: "first"}); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := Save(context.Background(), path, &Snapshot{ProjectName: "second"}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file after Save: %s", e.Name())
		}
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ProjectName != "second" {
		t.Errorf("ProjectName = %q, want %q", got.ProjectName, "second")
	}
}
