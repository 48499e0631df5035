// Package scheduler triggers workflow runs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/loom/pkg/graph"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a scheduled unit of work.
type Job func(ctx context.Context) error

// Service runs registered jobs on standard five-field cron schedules.
type Service struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID
	stopped bool
}

// NewService creates a stopped scheduler. Call Start to begin firing jobs.
func NewService(logger zerolog.Logger) *Service {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Service{
		cron:    cron.New(cron.WithParser(parser)),
		logger:  logger.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers a named job. The name must be unique and the spec a valid
// five-field cron expression.
func (s *Service) Add(name, spec string, job Job) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if job == nil {
		return fmt.Errorf("job %q: function is required", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	id, err := s.cron.AddFunc(spec, s.wrap(name, job))
	if err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", name, spec, err)
	}
	s.entries[name] = id
	s.logger.Info().Str("job", name).Str("spec", spec).Msg("job scheduled")
	return nil
}

// wrap gives every firing a fresh context, structured logs and panic
// containment so one bad job cannot kill the scheduler.
func (s *Service) wrap(name string, job Job) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Str("job", name).Interface("panic", r).Msg("job panicked")
			}
		}()

		startedAt := time.Now()
		if err := job(context.Background()); err != nil {
			s.logger.Error().Err(err).Str("job", name).Dur("elapsed", time.Since(startedAt)).Msg("job failed")
			return
		}
		s.logger.Info().Str("job", name).Dur("elapsed", time.Since(startedAt)).Msg("job finished")
	}
}

// Remove unregisters a job by name.
func (s *Service) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, exists := s.entries[name]; exists {
		s.cron.Remove(id)
		delete(s.entries, name)
		s.logger.Info().Str("job", name).Msg("job removed")
	}
}

// Jobs returns the names of registered jobs.
func (s *Service) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// NextRun reports when a job fires next. Only meaningful after Start.
func (s *Service) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	id, exists := s.entries[name]
	s.mu.Unlock()
	if !exists {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start begins firing jobs on their schedules.
func (s *Service) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.entries)).Msg("scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleRun registers a job that executes a graph with a fixed input.
// Each firing is an independent run with a fresh execution context.
func ScheduleRun[I, O any](s *Service, name, spec string, g *graph.Graph[I, O], input I, opts ...graph.Option) error {
	return s.Add(name, spec, func(ctx context.Context) error {
		_, err := graph.Run(ctx, g, input, opts...)
		return err
	})
}
