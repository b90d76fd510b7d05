package worker

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/caption-studio/internal/logging"
)

// Scheduler enqueues the credit reset on a cron schedule
type Scheduler struct {
	scheduler *asynq.Scheduler
	schedule  string
	loc       *time.Location
	logger    *logging.Logger
	entryID   string
}

// NewScheduler registers the reset task at schedule, a five field cron
// expression evaluated in loc.
func NewScheduler(redis asynq.RedisConnOpt, schedule string, loc *time.Location, logger *logging.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("component", "scheduler")

	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		Location: loc,
		LogLevel: asynq.InfoLevel,
		Logger:   &asynqLogger{logger: logger},
	})

	task, err := NewResetCreditsTask("schedule")
	if err != nil {
		return nil, err
	}
	entryID, err := scheduler.Register(schedule, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register credit reset schedule %q: %w", schedule, err)
	}

	return &Scheduler{
		scheduler: scheduler,
		schedule:  schedule,
		loc:       loc,
		logger:    logger,
		entryID:   entryID,
	}, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() error {
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	s.logger.WithFields(map[string]interface{}{
		"schedule": s.schedule,
		"timezone": s.loc.String(),
		"entryId":  s.entryID,
	}).Info("Scheduler started")
	return nil
}

// Shutdown stops the scheduler.
func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}

// EntryID identifies the registered reset entry
func (s *Scheduler) EntryID() string {
	return s.entryID
}
