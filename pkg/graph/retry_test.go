package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingAction(calls *int, succeedOn int) Runnable[string, string] {
	return Runnable[string, string]{
		Name: "flaky",
		Run: func(ctx context.Context, ec *ExecContext, in string) (string, error) {
			*calls++
			if *calls >= succeedOn {
				return "good:" + in, nil
			}
			return "bad:" + in, nil
		},
	}
}

func TestRetryConvergesOnAttemptK(t *testing.T) {
	calls := 0
	succeeds := func(out string) bool { return out == "good:payload" }

	g, err := WithRetry(countingAction(&calls, 3), succeeds, 5)
	require.NoError(t, err)

	outcome, err := Run(context.Background(), g, "payload")
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, 3, outcome.RetryCount)
	assert.Equal(t, 3, calls, "no attempts after the condition holds")
	assert.Equal(t, "good:payload", outcome.Output)
}

func TestRetryStopsAtMaxRetries(t *testing.T) {
	calls := 0
	never := func(out string) bool { return false }

	g, err := WithRetry(countingAction(&calls, 100), never, 3)
	require.NoError(t, err)

	outcome, err := Run(context.Background(), g, "payload")
	require.NoError(t, err)

	assert.False(t, outcome.Success)
	assert.Equal(t, 3, outcome.RetryCount)
	assert.Equal(t, 3, calls, "the action runs at most maxRetries times")
}

func TestRetryFeedsOriginalInputEveryAttempt(t *testing.T) {
	var inputs []string
	action := Runnable[string, string]{
		Name: "recorder",
		Run: func(ctx context.Context, ec *ExecContext, in string) (string, error) {
			inputs = append(inputs, in)
			return in + "-mutated", nil
		},
	}

	g, err := WithRetry(action, func(out string) bool { return false }, 3)
	require.NoError(t, err)

	_, err = Run(context.Background(), g, "original")
	require.NoError(t, err)

	require.Len(t, inputs, 3)
	for _, in := range inputs {
		assert.Equal(t, "original", in, "attempts never see a previous attempt's output")
	}
}

func TestRetryRestoresContextBetweenAttempts(t *testing.T) {
	dirty := NewKey[int]("dirty")
	var sawDirty []bool

	action := Runnable[string, string]{
		Name: "smudger",
		Run: func(ctx context.Context, ec *ExecContext, in string) (string, error) {
			_, present := Get(ec, dirty)
			sawDirty = append(sawDirty, present)
			Set(ec, dirty, len(sawDirty))
			return in, nil
		},
	}

	g, err := WithRetry(action, func(out string) bool { return false }, 3)
	require.NoError(t, err)

	_, err = Run(context.Background(), g, "x")
	require.NoError(t, err)

	assert.Equal(t, []bool{false, false, false}, sawDirty,
		"each attempt starts from the pre-action snapshot")
}

func TestRetryClearsItsStorageKeys(t *testing.T) {
	calls := 0
	g, err := WithRetry(countingAction(&calls, 1), func(out string) bool { return true }, 2)
	require.NoError(t, err)

	ec := NewExecContext()
	outcome, err := RunWith(context.Background(), g, ec, "payload")
	require.NoError(t, err)
	require.True(t, outcome.Success)

	assert.Zero(t, ec.storage.Len(), "cleanup removes the wrapper's bookkeeping keys")
}

func TestRetryRejectsBadConfiguration(t *testing.T) {
	calls := 0
	_, err := WithRetry(countingAction(&calls, 1), func(out string) bool { return true }, 0)
	require.Error(t, err)

	_, err = WithRetry(countingAction(&calls, 1), nil, 3)
	require.Error(t, err)
}

func TestRetryStrictUnwrapsSuccess(t *testing.T) {
	calls := 0
	g, err := WithRetryStrict(countingAction(&calls, 2), func(out string) bool { return out == "good:in" }, 3)
	require.NoError(t, err)

	out, err := Run(context.Background(), g, "in")
	require.NoError(t, err)
	assert.Equal(t, "good:in", out)
	assert.Equal(t, 2, calls)
}

func TestRetryStrictFailsWhenExhausted(t *testing.T) {
	calls := 0
	g, err := WithRetryStrict(countingAction(&calls, 100), func(out string) bool { return false }, 2)
	require.NoError(t, err)

	_, err = Run(context.Background(), g, "in")
	require.Error(t, err)

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.Equal(t, 2, calls)
}
