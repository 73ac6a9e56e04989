package executor

import (
	"errors"
	"fmt"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/gobuild/core/internal/graph"
)

// Cause distinguishes why a transformer failed (spec.md §7).
type Cause int

const (
	CommandExited Cause = iota
	CommandCrashed
	CommandTimedOut
	OutputMissing
)

func (c Cause) String() string {
	switch c {
	case CommandExited:
		return "CommandExited"
	case CommandCrashed:
		return "CommandCrashed"
	case CommandTimedOut:
		return "CommandTimedOut"
	case OutputMissing:
		return "OutputMissing"
	default:
		return "Unknown"
	}
}

// TransformerError attaches a transformer execution error to the
// transformer that produced it (spec.md §7).
type TransformerError struct {
	Transformer graph.TransformerID
	Cause       Cause
	ExitCode    int // meaningful when Cause == CommandExited
	Signal      string
	Path        string // meaningful when Cause == OutputMissing
	Err         error
}

func (e *TransformerError) Error() string {
	switch e.Cause {
	case CommandExited:
		return fmt.Sprintf("transformer %d: command exited with code %d", e.Transformer, e.ExitCode)
	case CommandCrashed:
		return fmt.Sprintf("transformer %d: command crashed (%s)", e.Transformer, e.Signal)
	case CommandTimedOut:
		return fmt.Sprintf("transformer %d: command timed out", e.Transformer)
	case OutputMissing:
		return fmt.Sprintf("transformer %d: declared output missing: %s", e.Transformer, e.Path)
	default:
		return fmt.Sprintf("transformer %d: %v", e.Transformer, e.Err)
	}
}

func (e *TransformerError) Unwrap() error { return e.Err }

// ErrCancelled is returned (wrapped in BuildResult, not as a Go error
// from Build) when a build is cancelled before completion.
var ErrCancelled = errors.New("build cancelled")

// Outcome is the coarse-grained result of a Build call (spec.md §4.3
// "returns Cancelled, BuildFailure(...), or Success. Never raises.").
type Outcome int

const (
	Success Outcome = iota
	Cancelled
	BuildFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case Cancelled:
		return "Cancelled"
	case BuildFailure:
		return "BuildFailure"
	default:
		return "Unknown"
	}
}

// BuildResult is the outcome of one Build call. Build never returns a Go
// error for transformer-level failures; those are captured here instead
// (spec.md §4.3).
type BuildResult struct {
	Outcome Outcome

	// Executed lists transformers that were dispatched during this call
	// (i.e. transitioned Building -> Built or Building -> Failed). Under
	// DryRun no Command runs, yet dispatched transformers are still listed
	// here. Transformers that skipped straight from Untouched to Built are
	// not included, which is how spec.md §8's Incrementality property is
	// verified.
	Executed []graph.TransformerID

	// Skipped lists transformers that were direct or transitive
	// dependents of a failed transformer and were therefore never
	// dispatched (spec.md §7: "automatically marked skipped, never
	// failed").
	Skipped []graph.TransformerID

	// Failures aggregates one *TransformerError per failed transformer.
	Failures *multierror.Error
}

func newBuildResult() *BuildResult {
	return &BuildResult{Outcome: Success}
}

func (r *BuildResult) addFailure(err *TransformerError) {
	if r.Failures == nil {
		r.Failures = &multierror.Error{}
	}
	r.Failures = multierror.Append(r.Failures, err)
	r.Outcome = BuildFailure
}
