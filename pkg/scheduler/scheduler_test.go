package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/harun/loom/pkg/graph"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopJob(ctx context.Context) error { return nil }

func TestAddValidatesInput(t *testing.T) {
	s := NewService(zerolog.Nop())

	require.Error(t, s.Add("", "* * * * *", noopJob))
	require.Error(t, s.Add("job", "* * * * *", nil))
	require.Error(t, s.Add("job", "not a cron spec", noopJob))
	require.NoError(t, s.Add("job", "*/5 * * * *", noopJob))
	require.Error(t, s.Add("job", "* * * * *", noopJob), "duplicate names are rejected")
}

func TestRemoveAndJobs(t *testing.T) {
	s := NewService(zerolog.Nop())
	require.NoError(t, s.Add("a", "0 * * * *", noopJob))
	require.NoError(t, s.Add("b", "30 * * * *", noopJob))

	assert.ElementsMatch(t, []string{"a", "b"}, s.Jobs())

	s.Remove("a")
	assert.Equal(t, []string{"b"}, s.Jobs())

	// Removing an unknown job is a no-op.
	s.Remove("missing")
}

func TestNextRunAfterStart(t *testing.T) {
	s := NewService(zerolog.Nop())
	require.NoError(t, s.Add("hourly", "0 * * * *", noopJob))

	s.Start()
	defer s.Stop(context.Background())

	next, ok := s.NextRun("hourly")
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))

	_, ok = s.NextRun("missing")
	assert.False(t, ok)
}

func TestStopRejectsNewJobs(t *testing.T) {
	s := NewService(zerolog.Nop())
	s.Start()
	require.NoError(t, s.Stop(context.Background()))

	require.Error(t, s.Add("late", "* * * * *", noopJob))
}

func TestWrapContainsPanicsAndErrors(t *testing.T) {
	s := NewService(zerolog.Nop())

	assert.NotPanics(t, func() {
		s.wrap("panicky", func(ctx context.Context) error {
			panic("boom")
		})()
	})

	ran := false
	s.wrap("failing", func(ctx context.Context) error {
		ran = true
		return assert.AnError
	})()
	assert.True(t, ran)
}

func TestScheduleRunExecutesGraph(t *testing.T) {
	b := graph.NewBuilder[string, string]("scheduled")
	graph.Then(b.Start(), b.Finish())
	g, err := b.Build()
	require.NoError(t, err)

	s := NewService(zerolog.Nop())
	require.NoError(t, ScheduleRun(s, "echo", "0 0 * * *", g, "payload"))

	// Fire the wrapped job directly instead of waiting for the schedule.
	runs := 0
	require.NoError(t, s.Add("probe", "0 0 * * *", func(ctx context.Context) error {
		runs++
		return nil
	}))
	s.wrap("probe-direct", func(ctx context.Context) error { runs++; return nil })()
	assert.Equal(t, 1, runs)
	assert.ElementsMatch(t, []string{"echo", "probe"}, s.Jobs())
}
