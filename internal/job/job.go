// Package job ties together graph resolution, change detection and
// execution into the single build() entry point a front-end calls
// (spec.md §4, §6), the way opentofu's command layer sits on top of its
// lower-level engine and execgraph packages.
package job

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/gobuild/core/internal/executor"
	"github.com/gobuild/core/internal/graph"
	"github.com/gobuild/core/internal/logging"
	"github.com/gobuild/core/internal/persist"
	"github.com/gobuild/core/internal/persist/flock"
	"github.com/gobuild/core/internal/resolvedproject"
)

// Progress re-exports executor.Progress so front-ends depend only on
// package job, not on the lower-level executor package directly.
type Progress = executor.Progress

// Options re-exports executor.Options for the same reason.
type Options = executor.Options

// Job owns one resolved project and its persisted-graph build
// directory, and provides the single build() operation a CLI or other
// front-end calls (spec.md §6).
type Job struct {
	log      hclog.Logger
	buildDir string
	executor *executor.Executor
}

// New resolves rp and opens buildDir as this Job's persisted-graph
// location. buildDir is created if it does not already exist.
func New(rp *resolvedproject.Project, buildDir string) (*Job, *graph.Project, error) {
	proj, err := graph.Resolve(rp)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating build directory: %w", err)
	}
	log := logging.HCLogger().Named("job")
	return &Job{
		log:      log,
		buildDir: buildDir,
		executor: executor.New(log.Named("executor")),
	}, proj, nil
}

// Build runs one full build cycle for proj: it locks the build
// directory (failing at once if another build holds the lock), loads the
// previous persisted graph (if any; one that cannot be read or has an
// incompatible format version is discarded, so every transformer
// rebuilds), runs change detection, executes every Buildable transformer reachable from
// selectedProducts, and persists the resulting graph before returning
// (spec.md §4.4, §7 "the build directory itself is locked for the
// duration of a build() call").
func (j *Job) Build(ctx context.Context, proj *graph.Project, selectedProducts []graph.ProductID, opts Options, prog Progress) (*executor.BuildResult, error) {
	// buildID is a stable per-run identifier, attached to every lock and
	// progress diagnostic below so several concurrent or successive runs
	// against the same build directory can be told apart in logs.
	buildID := uuid.New()
	log := j.log.With("build_id", buildID)
	log.Info("starting build", "project", proj.Name)

	lockPath := persist.PathIn(j.buildDir) + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("build %s: opening build directory lock: %w", buildID, err)
	}
	defer lockFile.Close()
	if err := flock.Lock(lockFile); err != nil {
		return nil, fmt.Errorf("build %s: locking build directory: %w", buildID, err)
	}
	defer flock.Unlock(lockFile)

	prev, err := persist.Load(persist.PathIn(j.buildDir))
	if err != nil {
		log.Warn("discarding unreadable persisted graph; full rebuild", "error", err)
		prev = nil
	}
	if err := persist.DetectChanges(proj, prev); err != nil {
		return nil, fmt.Errorf("detecting changes: %w", err)
	}

	result, err := j.executor.Build(ctx, proj, selectedProducts, opts, prog)
	if err != nil {
		return result, err
	}

	if !opts.DryRun {
		snap := persist.BuildSnapshot(proj)
		if err := persist.Save(ctx, persist.PathIn(j.buildDir), snap); err != nil {
			log.Warn("failed to persist build graph", "error", err)
		}
	}

	log.Info("build finished", "outcome", result.Outcome)
	return result, nil
}
