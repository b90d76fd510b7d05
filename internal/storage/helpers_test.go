package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/caption-studio/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           envOr("TEST_POSTGRES_HOST", "localhost"),
		Port:           envOr("TEST_POSTGRES_PORT", "5432"),
		Database:       envOr("TEST_POSTGRES_DB", "caption_studio_test"),
		User:           envOr("TEST_POSTGRES_USER", "studio"),
		Password:       envOr("TEST_POSTGRES_PASSWORD", "studio_dev_password"),
		SSLMode:        "disable",
		MaxConnections: 5,
	}
}

// setupPostgres connects to the test database, applies migrations and
// empties every table. The test is skipped when Postgres is unreachable.
func setupPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(testContext(t), cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.URL(), "../../migrations/postgres"); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	if _, err := db.Pool().Exec(testContext(t), `TRUNCATE generations, users, scraped_cache`); err != nil {
		t.Fatalf("truncate error = %v", err)
	}
	return db
}
