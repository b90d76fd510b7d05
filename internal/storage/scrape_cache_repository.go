package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/caption-studio/internal/models"
)

// ScrapeCacheRepository stores scrape results in Postgres keyed by URL.
// Expired rows are never deleted, they are just ignored on read.
type ScrapeCacheRepository struct {
	db *PostgresDB
}

// NewScrapeCacheRepository creates a new Postgres scrape cache
func NewScrapeCacheRepository(db *PostgresDB) *ScrapeCacheRepository {
	return &ScrapeCacheRepository{db: db}
}

// Get returns the entry for url if it is live at now, or nil
func (r *ScrapeCacheRepository) Get(ctx context.Context, url string, now time.Time) (*models.ScrapedCacheEntry, error) {
	query := `SELECT url, content, cached_at, expires_at FROM scraped_cache WHERE url = $1`

	var entry models.ScrapedCacheEntry
	err := r.db.Pool().QueryRow(ctx, query, url).Scan(&entry.URL, &entry.Content, &entry.CachedAt, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scrape cache: %w", err)
	}
	if !entry.Live(now) {
		return nil, nil
	}
	return &entry, nil
}

// Upsert writes the entry, replacing any existing one for the URL
func (r *ScrapeCacheRepository) Upsert(ctx context.Context, entry *models.ScrapedCacheEntry) error {
	query := `
		INSERT INTO scraped_cache (url, content, cached_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE
		SET content = EXCLUDED.content, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.Pool().Exec(ctx, query, entry.URL, entry.Content, entry.CachedAt, entry.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert scrape cache: %w", err)
	}
	return nil
}

const scrapeCacheKeyPrefix = "scrape:"

// RedisScrapeCache keeps scrape results in Redis with the same contract as
// ScrapeCacheRepository. The key TTL tracks ExpiresAt and reads still check
// expiry explicitly.
type RedisScrapeCache struct {
	client *redis.Client
}

// NewRedisScrapeCache creates a Redis backed scrape cache
func NewRedisScrapeCache(client *redis.Client) *RedisScrapeCache {
	return &RedisScrapeCache{client: client}
}

// Get returns the entry for url if it is live at now, or nil
func (c *RedisScrapeCache) Get(ctx context.Context, url string, now time.Time) (*models.ScrapedCacheEntry, error) {
	data, err := c.client.Get(ctx, scrapeCacheKeyPrefix+url).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read scrape cache: %w", err)
	}

	var entry models.ScrapedCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode scrape cache entry: %w", err)
	}
	if !entry.Live(now) {
		return nil, nil
	}
	return &entry, nil
}

// Upsert writes the entry, replacing any existing one for the URL
func (c *RedisScrapeCache) Upsert(ctx context.Context, entry *models.ScrapedCacheEntry) error {
	ttl := entry.ExpiresAt.Sub(entry.CachedAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode scrape cache entry: %w", err)
	}
	if err := c.client.Set(ctx, scrapeCacheKeyPrefix+entry.URL, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write scrape cache: %w", err)
	}
	return nil
}
