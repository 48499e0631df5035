package graph

import (
	"context"
	"fmt"

	"github.com/harun/loom/internal/observability"
)

// Scheduler decides how fan-out branch tasks are dispatched. The zero-cost
// default runs each branch on its own goroutine; a pool bounds concurrency.
type Scheduler interface {
	Schedule(task func())
}

type goroutineScheduler struct{}

func (goroutineScheduler) Schedule(task func()) { go task() }

// DefaultScheduler dispatches every branch on a fresh goroutine.
func DefaultScheduler() Scheduler { return goroutineScheduler{} }

// PoolScheduler bounds the number of branch tasks running at once.
type PoolScheduler struct {
	slots chan struct{}
}

// NewPoolScheduler creates a scheduler allowing at most size concurrent
// tasks.
func NewPoolScheduler(size int) *PoolScheduler {
	if size <= 0 {
		size = 1
	}
	return &PoolScheduler{slots: make(chan struct{}, size)}
}

// Schedule dispatches the task, waiting for a free slot off the caller's
// goroutine so Schedule itself never blocks.
func (p *PoolScheduler) Schedule(task func()) {
	go func() {
		p.slots <- struct{}{}
		defer func() { <-p.slots }()
		task()
	}()
}

// AsyncResult pairs a branch's name and input with its not-yet-awaited
// computation. The corresponding fan-in resolves it.
type AsyncResult[I, O any] struct {
	name  string
	input I
	done  chan struct{}
	out   O
	ec    *ExecContext
	err   error
}

// Name returns the branch's name.
func (r *AsyncResult[I, O]) Name() string { return r.name }

// Input returns the input the branch was fanned out with.
func (r *AsyncResult[I, O]) Input() I { return r.input }

// Await blocks until the branch resolves or ctx is cancelled. A branch
// failure surfaces here, not at fan-out time.
func (r *AsyncResult[I, O]) Await(ctx context.Context) (O, *ExecContext, error) {
	select {
	case <-r.done:
		return r.out, r.ec, r.err
	case <-ctx.Done():
		var zero O
		return zero, nil, ctx.Err()
	}
}

// FanOut forks the context once per branch and schedules every branch as a
// concurrent task. It returns immediately with one pending handle per
// branch, in the declaration order of the branches.
func FanOut[I, O any](ctx context.Context, ec *ExecContext, sched Scheduler, in I, branches ...Runnable[I, O]) []*AsyncResult[I, O] {
	if sched == nil {
		sched = DefaultScheduler()
	}
	observability.SetActiveBranches(ec.GraphName(), len(branches))

	handles := make([]*AsyncResult[I, O], len(branches))
	for i, branch := range branches {
		fork := ec.Fork()
		handle := &AsyncResult[I, O]{
			name:  branch.Name,
			input: in,
			done:  make(chan struct{}),
			ec:    fork,
		}
		handles[i] = handle

		run := branch.Run
		sched.Schedule(func() {
			defer close(handle.done)
			handle.out, handle.err = run(ctx, fork, handle.input)
		})
	}
	return handles
}

// BranchResult is one resolved branch handed to the merge function.
type BranchResult[I, O any] struct {
	Name    string
	Input   I
	Output  O
	Context *ExecContext
}

// MergeFunc reduces every branch's result to exactly one output and the one
// context that continues the run.
type MergeFunc[I, O, R any] func(ctx context.Context, results []BranchResult[I, O]) (R, *ExecContext, error)

// FanIn awaits every handle and merges. Branch failure is supervisor-style:
// one branch failing never cancels its siblings, and every handle is still
// awaited before the first failure propagates. On success the merge
// function's chosen context is adopted; the other branches' mutations are
// discarded.
func FanIn[I, O, R any](ctx context.Context, ec *ExecContext, handles []*AsyncResult[I, O], merge MergeFunc[I, O, R]) (R, error) {
	var zero R
	defer observability.SetActiveBranches(ec.GraphName(), 0)

	results := make([]BranchResult[I, O], 0, len(handles))
	var branchErr error
	for _, h := range handles {
		out, branchEC, err := h.Await(ctx)
		if err != nil {
			if branchErr == nil {
				branchErr = fmt.Errorf("branch %q: %w", h.name, err)
			}
			continue
		}
		results = append(results, BranchResult[I, O]{
			Name:    h.name,
			Input:   h.input,
			Output:  out,
			Context: branchEC,
		})
	}
	if branchErr != nil {
		return zero, branchErr
	}

	out, chosen, err := merge(ctx, results)
	if err != nil {
		return zero, fmt.Errorf("merge: %w", err)
	}
	ec.Merge(chosen)
	return out, nil
}

// SelectBranch is a merge function adopting a single branch wholesale.
func SelectBranch[I, O any](index int) MergeFunc[I, O, O] {
	return func(ctx context.Context, results []BranchResult[I, O]) (O, *ExecContext, error) {
		if index < 0 || index >= len(results) {
			var zero O
			return zero, nil, fmt.Errorf("select branch %d of %d", index, len(results))
		}
		return results[index].Output, results[index].Context, nil
	}
}

// Remap derives a new pending handle whose output is transformed once the
// underlying branch resolves. It never blocks the caller.
func Remap[I, O, P any](ctx context.Context, r *AsyncResult[I, O], tr Transform[O, P]) *AsyncResult[I, P] {
	mapped := &AsyncResult[I, P]{
		name:  r.name,
		input: r.input,
		done:  make(chan struct{}),
	}
	go func() {
		defer close(mapped.done)
		out, ec, err := r.Await(ctx)
		mapped.ec = ec
		if err != nil {
			mapped.err = err
			return
		}
		mapped.out, mapped.err = tr(ctx, ec, out)
	}()
	return mapped
}
