// Package scheduler triggers periodic rebuilds of every registered project.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/forgebuild/internal/pipeline"
)

// Rebuilder is implemented by pipeline.Orchestrator.
type Rebuilder interface {
	RebuildAll(ctx context.Context) (pipeline.RebuildSummary, error)
}

// Scheduler wraps gocron scheduler for managing periodic tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
	rebuilder Rebuilder
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(rebuilder Rebuilder) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, rebuilder: rebuilder}, nil
}

// SchedulePeriodicRebuild rebuilds all projects every interval. A run that is
// still in progress when the next one is due delays it rather than overlapping.
// Returns the job ID for later management.
func (s *Scheduler) SchedulePeriodicRebuild(ctx context.Context, interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("rebuild interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { s.executeRebuild(ctx) }),
		gocron.WithName("rebuild-all"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic rebuild job: %w", err)
	}
	slog.Info("Scheduled periodic rebuild", slog.Duration("interval", interval), slog.String("job_id", job.ID().String()))
	return job.ID().String(), nil
}

// executeRebuild is called by gocron to execute a scheduled rebuild.
func (s *Scheduler) executeRebuild(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	slog.Info("Executing scheduled rebuild")
	if _, err := s.rebuilder.RebuildAll(ctx); err != nil {
		slog.Error("Scheduled rebuild failed", "error", err)
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
