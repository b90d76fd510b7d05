// Package worker runs background jobs on asynq: the scheduler that enqueues
// the daily credit reset and the server that executes it.
package worker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskResetCredits = "credits:reset"
)

// Queue names. The reset is small and runs alone on the default queue.
const (
	QueueDefault = "default"
)

// ResetCreditsPayload is the body of a credit reset task
type ResetCreditsPayload struct {
	// Trigger is "schedule" for cron runs and "manual" for operator runs
	Trigger string `json:"trigger"`
}

// NewResetCreditsTask builds a credit reset task. Unique keeps a doubled
// scheduler from enqueuing the same day twice.
func NewResetCreditsTask(trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(ResetCreditsPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskResetCredits,
		payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(23*time.Hour),
	), nil
}
