package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/service"
)

// CreditResetter restores the daily quota of free users
type CreditResetter interface {
	Run(ctx context.Context, now time.Time) (*service.ResetResult, error)
}

// CreditResetWorker executes credit reset tasks pulled from asynq
type CreditResetWorker struct {
	resetter CreditResetter
	server   *asynq.Server
	logger   *logging.Logger
	now      func() time.Time
}

// CreditResetWorkerConfig holds configuration for the worker
type CreditResetWorkerConfig struct {
	Redis           asynq.RedisConnOpt
	Resetter        CreditResetter
	Logger          *logging.Logger
	Concurrency     int
	ShutdownTimeout time.Duration
}

// NewCreditResetWorker creates a worker. Nothing connects until Start.
func NewCreditResetWorker(cfg *CreditResetWorkerConfig) (*CreditResetWorker, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis connection cannot be nil")
	}
	if cfg.Resetter == nil {
		return nil, fmt.Errorf("credit resetter cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithField("component", "credit_reset_worker")

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	w := &CreditResetWorker{
		resetter: cfg.Resetter,
		logger:   logger,
		now:      time.Now,
	}
	w.server = asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency:     concurrency,
		ShutdownTimeout: shutdownTimeout,
		Queues:          map[string]int{QueueDefault: 1},
		ErrorHandler:    asynq.ErrorHandlerFunc(w.handleError),
		Logger:          &asynqLogger{logger: logger},
	})
	return w, nil
}

// Mux routes task types to handlers.
func (w *CreditResetWorker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskResetCredits, w.HandleResetCredits)
	return mux
}

// Start begins processing in the background.
func (w *CreditResetWorker) Start() error {
	if err := w.server.Start(w.Mux()); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.logger.Info("Credit reset worker started")
	return nil
}

// Shutdown waits for the running task and stops.
func (w *CreditResetWorker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("Credit reset worker stopped")
}

// HandleResetCredits runs one reset. A malformed payload is not retried,
// a store failure is.
func (w *CreditResetWorker) HandleResetCredits(ctx context.Context, task *asynq.Task) error {
	var payload ResetCreditsPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}
	}

	logger := w.logger.WithField("trigger", payload.Trigger)
	if taskID, ok := asynq.GetTaskID(ctx); ok {
		logger = logger.WithField("taskId", taskID)
	}
	ctx = logging.WithLogger(ctx, logger)

	result, err := w.resetter.Run(ctx, w.now())
	if err != nil {
		return fmt.Errorf("credit reset failed: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"updated": result.Updated,
	}).Info(result.Message)
	return nil
}

func (w *CreditResetWorker) handleError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logger := w.logger.WithError(err).WithFields(map[string]interface{}{
		"taskType":   task.Type(),
		"retryCount": retried,
		"maxRetry":   maxRetry,
	})
	if retried >= maxRetry {
		logger.Error("Task failed, retries exhausted")
		return
	}
	logger.Warn("Task failed, will retry")
}
