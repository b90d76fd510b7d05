// Package config provides configuration management for the caption studio service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Scrape    ScrapeConfig
	GitHub    GitHubConfig
	Gemini    GeminiConfig
	Credits   CreditsConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	AllowedOrigin   string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
}

// URL returns the postgres:// form used by the migration runner.
func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%s", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// ClickHouseConfig holds ClickHouse configuration.
// An empty Host disables the usage event log.
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// Enabled reports whether a ClickHouse host is configured.
func (c ClickHouseConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig holds Redis configuration.
// An empty Host disables rate limiting and the credit reset scheduler.
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// Enabled reports whether a Redis host is configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// AuthConfig holds identity provider settings
type AuthConfig struct {
	Issuer        string
	Audience      string
	JWKSURL       string
	WebhookSecret string
	CronSecret    string
}

// RateLimitConfig holds the sliding window limits
type RateLimitConfig struct {
	GlobalLimit      int
	GlobalWindow     time.Duration
	GenerationLimit  int
	GenerationWindow time.Duration
}

// ScrapeConfig holds the web scraping API settings
type ScrapeConfig struct {
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	CacheTTL       time.Duration
	RequestsPerSec float64
	UseRedisCache  bool
	CostPerScrape  float64
}

// GitHubConfig holds the repository API settings
type GitHubConfig struct {
	Token          string
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	RequestsPerSec float64
}

// GeminiConfig holds the generative model settings.
// Models is ordered: primary, secondary, tertiary.
type GeminiConfig struct {
	APIKey       string
	Models       []string
	Timeout      time.Duration
	CostPerToken float64
}

// CreditsConfig holds the daily credit quota settings
type CreditsConfig struct {
	DailyQuota    int
	Timezone      string
	ResetSchedule string
	AtomicDebit   bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MaxBodyBytes:    int64(getEnvAsInt("SERVER_MAX_BODY_BYTES", 1<<20)),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigin:   getEnv("SERVER_ALLOWED_ORIGIN", "*"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "caption_studio"),
				User:           getEnv("POSTGRES_USER", "studio"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				SSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 25),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", ""),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "caption_studio"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", ""),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Auth: AuthConfig{
			Issuer:        getEnv("AUTH_ISSUER", ""),
			Audience:      getEnv("AUTH_AUDIENCE", ""),
			JWKSURL:       getEnv("AUTH_JWKS_URL", ""),
			WebhookSecret: getEnv("IDENTITY_WEBHOOK_SECRET", ""),
			CronSecret:    getEnv("CRON_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			GlobalLimit:      getEnvAsInt("RATE_LIMIT_GLOBAL", 100),
			GlobalWindow:     getEnvAsDuration("RATE_LIMIT_GLOBAL_WINDOW", 15*time.Minute),
			GenerationLimit:  getEnvAsInt("RATE_LIMIT_GENERATION", 10),
			GenerationWindow: getEnvAsDuration("RATE_LIMIT_GENERATION_WINDOW", time.Hour),
		},
		Scrape: ScrapeConfig{
			APIKey:         getEnv("FIRECRAWL_API_KEY", ""),
			BaseURL:        getEnv("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),
			Timeout:        getEnvAsDuration("SCRAPE_TIMEOUT", 60*time.Second),
			MaxAttempts:    getEnvAsInt("SCRAPE_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvAsDuration("SCRAPE_INITIAL_BACKOFF", 2*time.Second),
			CacheTTL:       getEnvAsDuration("SCRAPE_CACHE_TTL", 24*time.Hour),
			RequestsPerSec: getEnvAsFloat("SCRAPE_REQUESTS_PER_SEC", 5),
			UseRedisCache:  getEnvAsBool("SCRAPE_CACHE_REDIS", false),
			CostPerScrape:  getEnvAsFloat("SCRAPE_COST_PER_REQUEST", 0.001),
		},
		GitHub: GitHubConfig{
			Token:          getEnv("GITHUB_TOKEN", ""),
			BaseURL:        getEnv("GITHUB_API_URL", "https://api.github.com"),
			Timeout:        getEnvAsDuration("GITHUB_TIMEOUT", 30*time.Second),
			MaxAttempts:    getEnvAsInt("GITHUB_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvAsDuration("GITHUB_INITIAL_BACKOFF", 2*time.Second),
			RequestsPerSec: getEnvAsFloat("GITHUB_REQUESTS_PER_SEC", 10),
		},
		Gemini: GeminiConfig{
			APIKey:       getEnv("GEMINI_API_KEY", ""),
			Models:       getEnvAsList("GEMINI_MODELS", []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-flash-latest"}),
			Timeout:      getEnvAsDuration("GEMINI_TIMEOUT", 90*time.Second),
			CostPerToken: getEnvAsFloat("GEMINI_COST_PER_TOKEN", 0.000001),
		},
		Credits: CreditsConfig{
			DailyQuota:    getEnvAsInt("CREDITS_DAILY_QUOTA", 5),
			Timezone:      getEnv("CREDITS_TIMEZONE", "Asia/Kolkata"),
			ResetSchedule: getEnv("CREDITS_RESET_SCHEDULE", "0 0 * * *"),
			AtomicDebit:   getEnvAsBool("CREDITS_ATOMIC_DEBIT", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.Scrape.MaxAttempts < 1 {
		return fmt.Errorf("SCRAPE_MAX_ATTEMPTS must be at least 1, got %d", c.Scrape.MaxAttempts)
	}
	if c.GitHub.MaxAttempts < 1 {
		return fmt.Errorf("GITHUB_MAX_ATTEMPTS must be at least 1, got %d", c.GitHub.MaxAttempts)
	}
	if len(c.Gemini.Models) == 0 {
		return fmt.Errorf("GEMINI_MODELS must name at least one model")
	}
	if c.Credits.DailyQuota < 0 {
		return fmt.Errorf("CREDITS_DAILY_QUOTA must not be negative, got %d", c.Credits.DailyQuota)
	}
	if _, err := time.LoadLocation(c.Credits.Timezone); err != nil {
		return fmt.Errorf("invalid CREDITS_TIMEZONE %q: %w", c.Credits.Timezone, err)
	}
	if c.RateLimit.GlobalLimit < 1 || c.RateLimit.GenerationLimit < 1 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// Location returns the timezone used for the credit day boundary
func (c CreditsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
