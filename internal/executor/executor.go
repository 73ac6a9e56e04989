// Package executor implements the concurrency engine that schedules
// transformer executions in topological order, honoring job limits,
// ordering constraints and failure policy (spec.md §4.3, §5).
package executor

import (
	"context"
	"runtime"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/semaphore"

	"github.com/gobuild/core/internal/graph"
)

// Executor drives transformers to completion in an order compatible with
// the DAG, with bounded parallelism and defined failure semantics
// (spec.md §4.3).
type Executor struct {
	log hclog.Logger
}

// New creates an Executor that logs through the given logger (typically
// logging.HCLogger().Named("executor")).
func New(log hclog.Logger) *Executor {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Executor{log: log}
}

// transformerNode is the executor's private view of one transformer:
// its dependency counts and the pools it belongs to, layered on top of
// the graph.Transformer it wraps.
type transformerNode struct {
	id         graph.TransformerID
	deps       []graph.TransformerID // producers of this transformer's inputs, restricted to the allowed set
	dependents []graph.TransformerID
	pending    int // number of deps not yet Built
}

// run holds all of the executor's mutable, mutex-guarded state for a
// single Build call (spec.md §5: "All transformer state transitions
// happen under a single executor-wide mutex; that mutex is never held
// across a Command execution").
type run struct {
	proj *graph.Project
	opts Options
	prog Progress
	log  hclog.Logger

	mu   sync.Mutex
	cond *sync.Cond

	nodes map[graph.TransformerID]*transformerNode
	ready []graph.TransformerID

	poolSem map[string]*semaphore.Weighted

	remaining    int // transformers still expected to reach a terminal state
	cancelled    bool
	stopDispatch bool // keep_going=false and a failure has occurred
	skipped      map[graph.TransformerID]bool

	result *BuildResult

	completedEffort int
	totalEffort     int
}

// Build executes every transformer reachable from selectedProducts'
// dependency closure that change detection marked Buildable, in an order
// compatible with the transformer DAG (spec.md §4.3).
//
// proj's artifact and transformer States must already reflect the
// outcome of change detection (package persist); Build only reads and
// advances those states, it does not itself stat the filesystem or
// compare fingerprints, keeping its contract purely about scheduling.
func (e *Executor) Build(ctx context.Context, proj *graph.Project, selectedProducts []graph.ProductID, opts Options, prog Progress) (*BuildResult, error) {
	if prog == nil {
		prog = NullProgress{}
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = runtime.NumCPU()
	}

	products := proj.ExpandDependencyClosure(selectedProducts)
	allowed := make(map[graph.TransformerID]bool)
	for _, pid := range products {
		for _, tid := range proj.Product(pid).TransformerIDs {
			allowed[tid] = true
		}
	}

	poolSem := make(map[string]*semaphore.Weighted, len(opts.JobLimits))
	for pool, limit := range opts.JobLimits {
		poolSem[pool] = semaphore.NewWeighted(int64(limit))
	}

	r := &run{
		proj:    proj,
		opts:    opts,
		prog:    prog,
		log:     e.log,
		nodes:   make(map[graph.TransformerID]*transformerNode, len(allowed)),
		poolSem: poolSem,
		result:  newBuildResult(),
		skipped: make(map[graph.TransformerID]bool),
	}
	r.cond = sync.NewCond(&r.mu)

	r.buildNodes(allowed)
	r.seedReadyQueue()

	prog.TaskStarted("build", r.totalEffort)

	if len(r.ready) == 0 && r.remaining == 0 {
		prog.TaskProgress(r.totalEffort)
		return r.result, nil
	}

	var wg sync.WaitGroup
	workers := opts.MaxJobs
	if workers > r.remaining && r.remaining > 0 {
		workers = r.remaining
	}
	if workers < 1 {
		workers = 1
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			r.workerLoop(ctx)
		}()
	}
	wg.Wait()

	r.mu.Lock()
	cancelled := r.cancelled
	r.mu.Unlock()
	if cancelled {
		r.result.Outcome = Cancelled
	}

	return r.result, nil
}

// buildNodes computes, for every allowed transformer, the set of
// dependency transformers (producers of its inputs, restricted to the
// allowed set) and the reverse (dependents) edges.
func (r *run) buildNodes(allowed map[graph.TransformerID]bool) {
	for tid := range allowed {
		t := r.proj.Transformer(tid)
		node := &transformerNode{id: tid}
		seen := make(map[graph.TransformerID]bool)
		for _, aid := range t.Inputs {
			a := r.proj.Artifact(aid)
			if a.Producer == graph.NoTransformer || !allowed[a.Producer] {
				continue
			}
			if !seen[a.Producer] {
				seen[a.Producer] = true
				node.deps = append(node.deps, a.Producer)
			}
		}
		r.nodes[tid] = node
	}
	for tid, node := range r.nodes {
		for _, dep := range node.deps {
			depNode := r.nodes[dep]
			depNode.dependents = append(depNode.dependents, tid)
		}
	}
}

// seedReadyQueue computes pending-dependency counts and populates the
// initial ready queue and total effort (spec.md §4.5 total_effort).
func (r *run) seedReadyQueue() {
	for tid, node := range r.nodes {
		t := r.proj.Transformer(tid)
		if t.State != graph.Buildable {
			continue
		}
		r.remaining++
		r.totalEffort += t.Weight
		pending := 0
		for _, dep := range node.deps {
			if r.proj.Transformer(dep).State != graph.Built {
				pending++
			}
		}
		node.pending = pending
		if pending == 0 {
			r.ready = append(r.ready, tid)
		}
	}
}

// workerLoop is run by each of the Options.MaxJobs worker goroutines. It
// blocks on the ready-queue condition variable when no transformer is
// currently dispatchable (spec.md §5).
func (r *run) workerLoop(ctx context.Context) {
	for {
		r.mu.Lock()
		for {
			if r.cancelled || r.remaining == 0 || (r.stopDispatch && !r.anyInFlightLocked()) {
				r.mu.Unlock()
				return
			}
			if r.prog.IsCancelled() {
				r.cancelled = true
				r.cond.Broadcast()
				r.mu.Unlock()
				return
			}
			if r.stopDispatch {
				// No new dispatch, but other workers may still be
				// in flight; wait for them to finish and re-check.
				r.cond.Wait()
				continue
			}
			tid, idx, ok := r.pickReadyLocked()
			if ok {
				r.ready = append(r.ready[:idx], r.ready[idx+1:]...)
				r.markDispatched(tid)
				r.mu.Unlock()
				r.runTransformer(ctx, tid)
				break
			}
			r.cond.Wait()
		}
	}
}

func (r *run) anyInFlightLocked() bool {
	for _, node := range r.nodes {
		t := r.proj.Transformer(node.id)
		if t.State == graph.Building {
			return true
		}
	}
	return false
}

// pickReadyLocked finds the first entry in the ready queue whose pools
// all have spare capacity, honoring FIFO order among otherwise-equal
// candidates (spec.md §5: "the scheduler picks in first-in-first-out
// order of becoming Buildable, subject to job-limit pool availability").
func (r *run) pickReadyLocked() (graph.TransformerID, int, bool) {
	for i, tid := range r.ready {
		t := r.proj.Transformer(tid)
		if r.acquirePoolsLocked(t.Pools) {
			return tid, i, true
		}
	}
	return 0, -1, false
}

// acquirePoolsLocked attempts to acquire one slot in every pool the
// transformer belongs to, all-or-nothing: if any pool is momentarily
// full it releases whatever it already acquired and reports failure, so
// the caller can try the next ready candidate instead (spec.md §4.3 "A
// worker may reject the head of the queue... re-queued and the worker
// tries the next item").
func (r *run) acquirePoolsLocked(pools []string) bool {
	acquired := make([]string, 0, len(pools))
	for _, p := range pools {
		sem, limited := r.poolSem[p]
		if !limited {
			continue
		}
		if !sem.TryAcquire(1) {
			for _, a := range acquired {
				r.poolSem[a].Release(1)
			}
			return false
		}
		acquired = append(acquired, p)
	}
	return true
}

func (r *run) releasePoolsLocked(pools []string) {
	for _, p := range pools {
		if sem, limited := r.poolSem[p]; limited {
			sem.Release(1)
		}
	}
}

func (r *run) markDispatched(tid graph.TransformerID) {
	t := r.proj.Transformer(tid)
	t.State = graph.Building
}

// runTransformer executes one transformer's commands (outside the
// executor mutex, per spec.md §5) and then records its outcome.
func (r *run) runTransformer(ctx context.Context, tid graph.TransformerID) {
	t := r.proj.Transformer(tid)

	var txErr *TransformerError
	if !r.opts.DryRun {
		for _, cmd := range t.Commands {
			highlight := "build"
			if cmd.Description != "" {
				highlight = cmd.Description
			}
			if !cmd.Silent && r.opts.EchoMode != EchoSilent {
				msg := cmd.Description
				if r.opts.EchoMode == EchoCommandLine {
					msg = commandLine(cmd.Executable, cmd.Argv)
				}
				r.prog.CommandDescription(highlight, msg)
			}

			r.mu.Lock()
			cancelled := r.cancelled
			r.mu.Unlock()
			if cancelled {
				txErr = &TransformerError{Transformer: tid, Cause: CommandCrashed, Err: ErrCancelled}
				break
			}

			res, cmdErr := runCommand(ctx, cmd)
			r.prog.ProcessResult(res)
			if cmdErr != nil {
				cmdErr.Transformer = tid
				txErr = cmdErr
				break
			}
		}
	}

	if txErr == nil && r.opts.CheckOutputs && !r.opts.DryRun {
		for _, oid := range t.Outputs {
			a := r.proj.Artifact(oid)
			if !fileExists(a.Path) {
				txErr = &TransformerError{Transformer: tid, Cause: OutputMissing, Path: a.Path}
				break
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.releasePoolsLocked(t.Pools)

	if txErr != nil {
		t.State = graph.Failed
		r.result.addFailure(txErr)
		r.result.Executed = append(r.result.Executed, tid)
		r.markDependentsSkippedLocked(tid)
		if !r.opts.KeepGoing {
			r.stopDispatch = true
		}
	} else {
		t.State = graph.Built
		r.result.Executed = append(r.result.Executed, tid)
	}

	r.remaining--
	r.completedEffort += t.Weight
	r.prog.TaskProgress(r.completedEffort)

	if txErr == nil {
		for _, depTID := range r.nodes[tid].dependents {
			depNode := r.nodes[depTID]
			depNode.pending--
			if depNode.pending == 0 && r.proj.Transformer(depTID).State == graph.Buildable {
				r.ready = append(r.ready, depTID)
			}
		}
	}

	r.cond.Broadcast()
}

// markDependentsSkippedLocked marks every direct and transitive
// dependent of a failed transformer as skipped, never failed (spec.md
// §7), and removes them from the remaining-work count so the build can
// terminate without waiting for transformers that will never run.
func (r *run) markDependentsSkippedLocked(failed graph.TransformerID) {
	var visit func(tid graph.TransformerID)
	visit = func(tid graph.TransformerID) {
		for _, depTID := range r.nodes[tid].dependents {
			if r.skipped[depTID] {
				continue
			}
			t := r.proj.Transformer(depTID)
			if t.State == graph.Buildable {
				r.skipped[depTID] = true
				r.result.Skipped = append(r.result.Skipped, depTID)
				r.remaining--
			}
			visit(depTID)
		}
	}
	visit(failed)
}
