// Package main provides the background worker entry point. It schedules the
// daily credit reset and executes it.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/caption-studio/internal/config"
	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/service"
	"github.com/caption-studio/internal/storage"
	"github.com/caption-studio/internal/worker"
)

func main() {
	runNow := flag.Bool("run-now", false, "Enqueue one credit reset immediately and keep running")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	ctx := logging.WithLogger(context.Background(), logger)

	if !cfg.Database.Redis.Enabled() {
		logger.Fatal("REDIS_HOST is required by the worker")
	}

	postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	userRepo := storage.NewUserRepository(postgres)
	loc := cfg.Credits.Location()
	resetService := service.NewCreditResetService(userRepo, cfg.Credits.DailyQuota, loc)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Database.Redis.Addr(),
		Password: cfg.Database.Redis.Password,
		DB:       cfg.Database.Redis.DB,
		PoolSize: cfg.Database.Redis.MaxConnections,
	}

	resetWorker, err := worker.NewCreditResetWorker(&worker.CreditResetWorkerConfig{
		Redis:    redisOpt,
		Resetter: resetService,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create worker")
	}
	if err := resetWorker.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start worker")
	}
	defer resetWorker.Shutdown()

	scheduler, err := worker.NewScheduler(redisOpt, cfg.Credits.ResetSchedule, loc, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scheduler")
	}
	if err := scheduler.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}
	defer scheduler.Shutdown()

	if *runNow {
		enqueueNow(redisOpt, logger)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
}

func enqueueNow(redisOpt asynq.RedisConnOpt, logger *logging.Logger) {
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	task, err := worker.NewResetCreditsTask("manual")
	if err != nil {
		logger.WithError(err).Error("Failed to build credit reset task")
		return
	}
	info, err := client.Enqueue(task)
	if err != nil {
		logger.WithError(err).Error("Failed to enqueue credit reset")
		return
	}
	logger.WithField("taskId", info.ID).Info("Credit reset enqueued")
}
