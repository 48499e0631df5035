package graph

import (
	"context"
	"fmt"

	"github.com/harun/loom/internal/observability"
)

// RetryOutcome is what a retry wrapper resolves to: the last attempt's
// output, whether the condition was ever satisfied, and how many attempts
// ran.
type RetryOutcome[O any] struct {
	Output     O
	Success    bool
	RetryCount int
}

// WithRetry wraps an action in a subgraph that re-runs it until condition
// holds or maxRetries attempts were made. Every attempt receives the
// originally stored input against a restored context snapshot, never the
// previous attempt's leftovers. The wrapper keeps its bookkeeping under
// storage keys prefixed with its own name and clears them on exit.
func WithRetry[I, O any](action Runnable[I, O], condition func(O) bool, maxRetries int) (*Graph[I, RetryOutcome[O]], error) {
	if maxRetries < 1 {
		return nil, &ConfigError{Graph: action.Name, Reason: "maxRetries must be at least 1"}
	}
	if condition == nil {
		return nil, &ConfigError{Graph: action.Name, Reason: "retry condition must not be nil"}
	}

	name := action.Name + "_retry"
	prefix := "retry:" + name + ":"
	inputKey := NewKey[I](prefix + "input")
	snapshotKey := NewKey[*ExecContext](prefix + "snapshot")
	attemptKey := NewKey[int](prefix + "attempts")

	before := NewNode("before_action", func(ctx context.Context, ec *ExecContext, in I) (I, error) {
		attempts, seen := Get(ec, attemptKey)
		if !seen {
			Set(ec, inputKey, in)
			snapshot := ec.Fork()
			Set(ec, snapshotKey, snapshot)
			Set(ec, attemptKey, 1)
			return in, nil
		}

		snapshot, ok := Get(ec, snapshotKey)
		if !ok {
			return in, fmt.Errorf("retry %q: context snapshot missing on attempt %d", name, attempts+1)
		}
		// Merge a fork of the snapshot so the stored snapshot stays
		// pristine for the attempts after this one.
		ec.Merge(snapshot.Fork())
		Set(ec, snapshotKey, snapshot)
		Set(ec, attemptKey, attempts+1)

		original, ok := Get(ec, inputKey)
		if !ok {
			return in, fmt.Errorf("retry %q: stored input missing on attempt %d", name, attempts+1)
		}
		return original, nil
	})

	act := action.Node()

	decide := NewNode("decide", func(ctx context.Context, ec *ExecContext, out O) (RetryOutcome[O], error) {
		attempts, _ := Get(ec, attemptKey)
		success := condition(out)
		observability.RecordRetryAttempt(name, success)
		logger := ec.Logger()
		logger.Debug().
			Str("wrapper", name).
			Int("attempt", attempts).
			Bool("success", success).
			Msg("retry attempt decided")
		return RetryOutcome[O]{Output: out, Success: success, RetryCount: attempts}, nil
	})

	cleanup := NewNode("cleanup", func(ctx context.Context, ec *ExecContext, outcome RetryOutcome[O]) (RetryOutcome[O], error) {
		Remove(ec, inputKey)
		Remove(ec, snapshotKey)
		Remove(ec, attemptKey)
		return outcome, nil
	})

	b := NewBuilder[I, RetryOutcome[O]](name)
	b.Add(before, act, decide, cleanup)

	Then(b.Start(), before)
	Then(before, act)
	Then(act, decide)
	WhenMap(decide, before,
		func(ctx context.Context, ec *ExecContext, o RetryOutcome[O]) bool {
			return !o.Success && o.RetryCount < maxRetries
		},
		func(ctx context.Context, ec *ExecContext, o RetryOutcome[O]) (I, error) {
			original, ok := Get(ec, inputKey)
			if !ok {
				var zero I
				return zero, fmt.Errorf("retry %q: stored input missing", name)
			}
			return original, nil
		})
	When(decide, cleanup, func(ctx context.Context, ec *ExecContext, o RetryOutcome[O]) bool {
		return o.Success || o.RetryCount >= maxRetries
	})
	Then(cleanup, b.Finish())

	return b.Build()
}

// WithRetryStrict is WithRetry with the outcome unwrapped: exhausting the
// attempts without success is a fatal RetriesExhaustedError instead of a
// reportable outcome.
func WithRetryStrict[I, O any](action Runnable[I, O], condition func(O) bool, maxRetries int) (*Graph[I, O], error) {
	inner, err := WithRetry(action, condition, maxRetries)
	if err != nil {
		return nil, err
	}
	name := action.Name + "_retry_strict"

	unwrap := NewNode("unwrap", func(ctx context.Context, ec *ExecContext, outcome RetryOutcome[O]) (O, error) {
		if !outcome.Success {
			var zero O
			return zero, &RetriesExhaustedError{Wrapper: inner.Name(), Attempts: outcome.RetryCount}
		}
		return outcome.Output, nil
	})

	b := NewBuilder[I, O](name)
	innerNode := inner.Node()
	b.Add(innerNode, unwrap)
	Then(b.Start(), innerNode)
	Then(innerNode, unwrap)
	Then(unwrap, b.Finish())
	return b.Build()
}
