package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Set some test environment variables
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("SCRAPE_CACHE_TTL", "30s"); err != nil {
		t.Fatalf("Failed to set SCRAPE_CACHE_TTL: %v", err)
	}
	if err := os.Setenv("GEMINI_MODELS", "model-a, model-b,,model-c"); err != nil {
		t.Fatalf("Failed to set GEMINI_MODELS: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("SCRAPE_CACHE_TTL")
		_ = os.Unsetenv("GEMINI_MODELS")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}

	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}

	if cfg.Scrape.CacheTTL != 30*time.Second {
		t.Errorf("Scrape.CacheTTL = %v, want %v", cfg.Scrape.CacheTTL, 30*time.Second)
	}

	if len(cfg.Gemini.Models) != 3 || cfg.Gemini.Models[1] != "model-b" {
		t.Errorf("Gemini.Models = %v, want [model-a model-b model-c]", cfg.Gemini.Models)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.RateLimit.GlobalLimit != 100 || cfg.RateLimit.GlobalWindow != 15*time.Minute {
		t.Errorf("global limit = %d/%v, want 100/15m", cfg.RateLimit.GlobalLimit, cfg.RateLimit.GlobalWindow)
	}
	if cfg.RateLimit.GenerationLimit != 10 || cfg.RateLimit.GenerationWindow != time.Hour {
		t.Errorf("generation limit = %d/%v, want 10/1h", cfg.RateLimit.GenerationLimit, cfg.RateLimit.GenerationWindow)
	}
	if cfg.Scrape.Timeout != 60*time.Second {
		t.Errorf("Scrape.Timeout = %v, want 60s", cfg.Scrape.Timeout)
	}
	if cfg.GitHub.Timeout != 30*time.Second {
		t.Errorf("GitHub.Timeout = %v, want 30s", cfg.GitHub.Timeout)
	}
	if cfg.Credits.DailyQuota != 5 {
		t.Errorf("Credits.DailyQuota = %d, want 5", cfg.Credits.DailyQuota)
	}
	if cfg.Credits.Location().String() != "Asia/Kolkata" {
		t.Errorf("Credits.Location() = %v, want Asia/Kolkata", cfg.Credits.Location())
	}
	if cfg.Server.MaxBodyBytes != 1<<20 {
		t.Errorf("Server.MaxBodyBytes = %d, want %d", cfg.Server.MaxBodyBytes, 1<<20)
	}
	if cfg.Database.Redis.Enabled() {
		t.Errorf("Redis should be disabled without REDIS_HOST")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero scrape attempts", mutate: func(c *Config) { c.Scrape.MaxAttempts = 0 }, wantErr: true},
		{name: "zero github attempts", mutate: func(c *Config) { c.GitHub.MaxAttempts = 0 }, wantErr: true},
		{name: "no models", mutate: func(c *Config) { c.Gemini.Models = nil }, wantErr: true},
		{name: "unknown timezone", mutate: func(c *Config) { c.Credits.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "negative quota", mutate: func(c *Config) { c.Credits.DailyQuota = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Scrape:    ScrapeConfig{MaxAttempts: 3},
				GitHub:    GitHubConfig{MaxAttempts: 3},
				Gemini:    GeminiConfig{Models: []string{"a", "b", "c"}},
				Credits:   CreditsConfig{DailyQuota: 5, Timezone: "Asia/Kolkata"},
				RateLimit: RateLimitConfig{GlobalLimit: 100, GenerationLimit: 10},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	if err := os.Setenv("TEST_LIST", " a ,b,, c "); err != nil {
		t.Fatalf("Failed to set env var: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("TEST_LIST")
	}()

	got := getEnvAsList("TEST_LIST", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("getEnvAsList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("getEnvAsList()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if got := getEnvAsList("TEST_LIST_NOTSET", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Errorf("getEnvAsList() default = %v, want [x]", got)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns integer when valid",
			key:          "TEST_INT",
			defaultValue: 100,
			envValue:     "200",
			want:         200,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_INT_INVALID",
			defaultValue: 100,
			envValue:     "invalid",
			want:         100,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOTSET",
			defaultValue: 100,
			envValue:     "",
			want:         100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "returns duration when valid",
			key:          "TEST_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "30s",
			want:         30 * time.Second,
		},
		{
			name:         "returns default when invalid",
			key:          "TEST_DURATION_INVALID",
			defaultValue: 10 * time.Second,
			envValue:     "invalid",
			want:         10 * time.Second,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_DURATION_NOTSET",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				if err := os.Setenv(tt.key, tt.envValue); err != nil {
					t.Fatalf("Failed to set env var: %v", err)
				}
				defer func() {
					_ = os.Unsetenv(tt.key)
				}()
			}

			got := getEnvAsDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
