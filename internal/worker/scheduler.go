package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals until its context ends.
type Scheduler struct {
	sched gocron.Scheduler
}

func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{sched: s}, nil
}

// Add registers job. A run that is still going when the next tick fires is
// not started twice.
func (s *Scheduler) Add(ctx context.Context, job Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	_, err := s.sched.NewJob(
		gocron.DurationJob(job.Interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				return
			}
			if err := job.Run(ctx); err != nil {
				slog.ErrorContext(ctx, "Scheduled job failed", "job", job.Name, "error", err)
			}
		}),
		gocron.WithName(job.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	slog.InfoContext(ctx, "Scheduled job", "job", job.Name, "interval", job.Interval)
	return nil
}

// Run starts the scheduler and blocks until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.sched.Start()
	<-ctx.Done()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.sched.Jobs())
}
