package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gobuild/core/internal/persist/flock"
)

// magic identifies a gobuild persisted graph file, so that Load fails
// fast on an unrelated or truncated file instead of misreading one.
var magic = [8]byte{'g', 'o', 'b', 'u', 'i', 'l', 'd', '1'}

// ErrIncompatibleFormat is returned by Load when a persisted graph was
// written by a format version this build cannot read (spec.md §7).
var ErrIncompatibleFormat = errors.New("persist: incompatible persisted graph format")

// fileName is the conventional name of the persisted graph within a
// build directory.
const fileName = ".gobuild-graph"

// PathIn returns the conventional persisted-graph path for a build
// directory.
func PathIn(buildDir string) string {
	return filepath.Join(buildDir, fileName)
}

// Load reads and decodes the persisted graph at path. A missing file is
// not an error: it returns (nil, nil), meaning "no previous build to
// compare against" (spec.md §4.4 step 1).
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := flock.Lock(f); err == nil {
		defer flock.Unlock(f)
	}
	// A failed advisory lock here is not fatal: we only use it to avoid
	// reading a file mid-write by a concurrent process on the same host,
	// and a best-effort read is still better than refusing to build.

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("persist: reading %s: %w", path, err)
	}
	d := newDecoder(raw)

	hdr := d.bytesN(len(magic))
	if d.err != nil {
		return nil, fmt.Errorf("persist: reading magic: %w", d.err)
	}
	if !bytes.Equal(hdr, magic[:]) {
		return nil, fmt.Errorf("persist: %s is not a gobuild persisted graph", path)
	}

	snap := &Snapshot{}
	snap.FormatVersion = d.string()
	snap.ProjectName = d.string()

	if d.err != nil {
		return nil, d.err
	}

	stored, err := parseFormatVersion(snap.FormatVersion)
	if err != nil {
		return nil, err
	}
	current, err := parseFormatVersion(FormatVersion)
	if err != nil {
		return nil, err
	}
	if !stored.Equal(current) {
		return nil, fmt.Errorf("%w: file is format %s, this build understands %s", ErrIncompatibleFormat, stored, current)
	}

	numProducts := d.uint64()
	snap.Products = make([]ProductSnapshot, numProducts)
	for i := range snap.Products {
		p := &snap.Products[i]
		p.Name = d.string()

		numArtifacts := d.uint64()
		p.Artifacts = make([]ArtifactSnapshot, numArtifacts)
		for j := range p.Artifacts {
			a := &p.Artifacts[j]
			a.Path = d.string()
			a.FileTags = d.stringSlice()
			a.ModTime = d.time()
			a.ContentFingerprint = d.fingerprint()
		}

		numTransformers := d.uint64()
		p.Transformers = make([]TransformerSnapshot, numTransformers)
		for j := range p.Transformers {
			t := &p.Transformers[j]
			t.Key = d.string()
			t.Fingerprint = d.fingerprint()
			t.OutputPaths = d.stringSlice()
			t.OutputModTimes = d.timeSlice()
			t.OutputFingerprint = d.fingerprintSlice()
		}
	}

	if d.err != nil {
		return nil, fmt.Errorf("persist: decoding %s: %w", path, d.err)
	}
	return snap, nil
}

// Save writes snap to path atomically: it encodes to a temporary file in
// the same directory, then renames over the destination, so a build
// killed mid-write never leaves a half-written graph behind (spec.md §7
// "a build that is interrupted leaves either the previous persisted
// graph or a fully-written new one, never a partial write").
func Save(ctx context.Context, path string, snap *Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gobuild-graph-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if err := flock.LockBlocking(ctx, tmp); err != nil {
		return fmt.Errorf("persist: locking %s: %w", tmpPath, err)
	}

	e := newEncoder()
	e.bytesRaw(magic[:])
	version := snap.FormatVersion
	if version == "" {
		version = FormatVersion
	}
	e.string(version)
	e.string(snap.ProjectName)
	e.uint64(uint64(len(snap.Products)))
	for _, p := range snap.Products {
		e.string(p.Name)
		e.uint64(uint64(len(p.Artifacts)))
		for _, a := range p.Artifacts {
			e.string(a.Path)
			e.stringSlice(a.FileTags)
			e.time(a.ModTime)
			e.fingerprint(a.ContentFingerprint)
		}
		e.uint64(uint64(len(p.Transformers)))
		for _, t := range p.Transformers {
			e.string(t.Key)
			e.fingerprint(t.Fingerprint)
			e.stringSlice(t.OutputPaths)
			e.timeSlice(t.OutputModTimes)
			e.fingerprintSlice(t.OutputFingerprint)
		}
	}
	if err := e.finish(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
