// Package main provides the API server entry point for the caption studio service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caption-studio/internal/adapter"
	"github.com/caption-studio/internal/api"
	"github.com/caption-studio/internal/auth"
	"github.com/caption-studio/internal/circuitbreaker"
	"github.com/caption-studio/internal/config"
	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/ratelimit"
	"github.com/caption-studio/internal/retry"
	"github.com/caption-studio/internal/service"
	"github.com/caption-studio/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logger := logging.InitGlobalLogger(logLevel, logFormat)
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx := logging.WithLogger(context.Background(), logger)
	loc := cfg.Credits.Location()

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// ClickHouse only backs the usage event log
	var clickhouse *storage.ClickHouseDB
	if cfg.Database.ClickHouse.Enabled() {
		clickhouse, err = storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, usage events disabled")
			clickhouse = nil
		} else {
			defer clickhouse.Close()
		}
	}

	// Redis backs the rate limiters and optionally the scrape cache
	var redis *storage.RedisCache
	if cfg.Database.Redis.Enabled() {
		redis, err = storage.NewRedisCache(ctx, &cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, rate limiting disabled")
			redis = nil
		} else {
			defer redis.Close()
		}
	}

	logger.Info("Database connections established")

	// Repositories
	userRepo := storage.NewUserRepository(postgres)
	generationRepo := storage.NewGenerationRepository(postgres)
	usageRepo := storage.NewUsageEventRepository(clickhouse)

	var scrapeCache service.ScrapeCache = storage.NewScrapeCacheRepository(postgres)
	if cfg.Scrape.UseRedisCache && redis != nil {
		scrapeCache = storage.NewRedisScrapeCache(redis.Client())
		logger.Info("Scrape cache backed by Redis")
	}

	gate := newGate(cfg, redis, logger)

	// Upstream clients
	firecrawl := adapter.NewFirecrawlClient(adapter.FirecrawlConfig{
		APIKey:  cfg.Scrape.APIKey,
		BaseURL: cfg.Scrape.BaseURL,
		Timeout: cfg.Scrape.Timeout,
		Pacer:   ratelimit.NewPacer(cfg.Scrape.RequestsPerSec, 1),
	})
	github := adapter.NewGitHubClient(adapter.GitHubConfig{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
		Timeout: cfg.GitHub.Timeout,
		Pacer:   ratelimit.NewPacer(cfg.GitHub.RequestsPerSec, 2),
	})

	genaiClient, err := adapter.NewGeminiClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create model client")
	}
	models := adapter.NewGeminiModels(genaiClient, cfg.Gemini.Models)

	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		ConsecutiveFailures: 5,
		OpenTimeout:         60 * time.Second,
		HalfOpenMaxCalls:    1,
	})

	// Services
	logger.Info("Initializing services...")

	scrapeRetry := retry.New(retryPolicy(cfg.Scrape.MaxAttempts, cfg.Scrape.InitialBackoff), nil)
	fetchRetry := retry.New(retryPolicy(cfg.GitHub.MaxAttempts, cfg.GitHub.InitialBackoff), nil)

	resolver := service.NewUserResolver(userRepo, cfg.Credits.DailyQuota)
	acquirer := service.NewContentAcquirer(service.AcquirerConfig{
		Scraper:      firecrawl,
		Repositories: github,
		Cache:        scrapeCache,
		Usage:        usageRepo,
		ScrapeRetry:  scrapeRetry,
		FetchRetry:   fetchRetry,
		CacheTTL:     cfg.Scrape.CacheTTL,
		ScrapeCost:   cfg.Scrape.CostPerScrape,
	})
	engine := service.NewGenerationEngine(service.EngineConfig{
		Models:       models,
		Breakers:     breakers,
		Timeout:      cfg.Gemini.Timeout,
		CostPerToken: cfg.Gemini.CostPerToken,
	})
	ledger := service.NewLedger(userRepo, generationRepo, cfg.Credits.AtomicDebit)
	monitor := service.NewPipelineMonitor(1000)

	generationService := service.NewGenerationService(gate, resolver, acquirer, engine, ledger, usageRepo, monitor)
	historyService := service.NewHistoryService(userRepo, generationRepo)
	profileService := service.NewProfileService(resolver, generationRepo)
	creditResetService := service.NewCreditResetService(userRepo, cfg.Credits.DailyQuota, loc)
	identityService := service.NewIdentitySyncService(userRepo, cfg.Credits.DailyQuota)
	adminService := service.NewAdminStatsService(userRepo, generationRepo, usageRepo, monitor, engine, loc)

	// Identity
	var tokens auth.TokenVerifier
	if cfg.Auth.Issuer != "" {
		verifier, err := auth.NewVerifier(auth.VerifierConfig{
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
			JWKSURL:  cfg.Auth.JWKSURL,
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to create token verifier")
		}
		tokens = verifier
	} else {
		logger.Warn("AUTH_ISSUER not set, authenticated routes will reject every request")
	}

	webhooks, err := newWebhookVerifier(cfg.Auth.WebhookSecret)
	if err != nil {
		logger.WithError(err).Fatal("Invalid IDENTITY_WEBHOOK_SECRET")
	}
	if webhooks == nil {
		logger.Warn("IDENTITY_WEBHOOK_SECRET not set, identity webhooks will be rejected")
	}

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    writeTimeout(cfg, len(models), scrapeRetry, fetchRetry),
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		AllowedOrigin:   cfg.Server.AllowedOrigin,
		CronSecret:      cfg.Auth.CronSecret,
		DailyQuota:      cfg.Credits.DailyQuota,
	}

	server := api.NewServer(serverConfig, api.Services{
		Generations: generationService,
		History:     historyService,
		Profiles:    profileService,
		Credits:     creditResetService,
		Identity:    identityService,
		Admin:       adminService,
		Tokens:      tokens,
		Webhooks:    webhooks,
		Gate:        gate,
	}, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// newGate builds the sliding window limiters. Without Redis the gate admits
// everything.
func newGate(cfg *config.Config, redis *storage.RedisCache, logger *logging.Logger) *ratelimit.Gate {
	if redis == nil {
		return nil
	}

	global, err := ratelimit.NewSlidingWindowLimiter(&ratelimit.SlidingWindowConfig{
		Redis:  redis.Client(),
		Prefix: ratelimit.PrefixGlobal,
		Limit:  cfg.RateLimit.GlobalLimit,
		Window: cfg.RateLimit.GlobalWindow,
	})
	if err != nil {
		logger.WithError(err).Fatal("Invalid global rate limit")
	}
	generation, err := ratelimit.NewSlidingWindowLimiter(&ratelimit.SlidingWindowConfig{
		Redis:  redis.Client(),
		Prefix: ratelimit.PrefixGeneration,
		Limit:  cfg.RateLimit.GenerationLimit,
		Window: cfg.RateLimit.GenerationWindow,
	})
	if err != nil {
		logger.WithError(err).Fatal("Invalid generation rate limit")
	}

	logger.WithFields(map[string]interface{}{
		"globalLimit":     cfg.RateLimit.GlobalLimit,
		"generationLimit": cfg.RateLimit.GenerationLimit,
	}).Info("Rate limiting enabled")
	return ratelimit.NewGate(global, generation)
}

// newWebhookVerifier returns a nil interface when no secret is configured so
// the server's missing-verifier check applies.
func newWebhookVerifier(secret string) (api.WebhookVerifier, error) {
	if secret == "" {
		return nil, nil
	}
	verifier, err := auth.NewWebhookVerifier(secret)
	if err != nil {
		return nil, err
	}
	return verifier, nil
}

// writeTimeout covers the slowest complete request: every upstream retry spent
// on acquisition, then every model in the chain running to its timeout.
func writeTimeout(cfg *config.Config, models int, scrape, fetch *retry.Retrier) time.Duration {
	acquire := scrape.Budget(cfg.Scrape.Timeout)
	if repo := fetch.Budget(cfg.GitHub.Timeout); repo > acquire {
		acquire = repo
	}
	return acquire + cfg.Gemini.Timeout*time.Duration(models) + 30*time.Second
}

func retryPolicy(attempts int, initial time.Duration) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = attempts
	policy.InitialDelay = initial
	return policy
}
