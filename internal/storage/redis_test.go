package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-studio/internal/config"
	"github.com/caption-studio/internal/models"
)

func setupRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := NewRedisCache(context.Background(), &config.RedisConfig{
		Host:           mr.Host(),
		Port:           mr.Port(),
		MaxConnections: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestNewRedisCache(t *testing.T) {
	cache, _ := setupRedis(t)
	assert.NoError(t, cache.Ping(testContext(t)))
	assert.NotNil(t, cache.Client())

	_, err := NewRedisCache(context.Background(), &config.RedisConfig{Host: "127.0.0.1", Port: "1"})
	assert.Error(t, err)
}

func TestRedisScrapeCache(t *testing.T) {
	cache, mr := setupRedis(t)
	ctx := testContext(t)
	store := NewRedisScrapeCache(cache.Client())

	cachedAt := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	entry := &models.ScrapedCacheEntry{
		URL:       "https://blog.example/post",
		Content:   "# Post",
		CachedAt:  cachedAt,
		ExpiresAt: cachedAt.Add(24 * time.Hour),
	}
	require.NoError(t, store.Upsert(ctx, entry))
	assert.Equal(t, 24*time.Hour, mr.TTL(scrapeCacheKeyPrefix+entry.URL))

	got, err := store.Get(ctx, entry.URL, cachedAt.Add(23*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "# Post", got.Content)

	// Reads honour ExpiresAt even while the key is still present.
	got, err = store.Get(ctx, entry.URL, entry.ExpiresAt)
	require.NoError(t, err)
	assert.Nil(t, got)

	mr.FastForward(25 * time.Hour)
	got, err = store.Get(ctx, entry.URL, cachedAt)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisScrapeCacheUpsertOverwrites(t *testing.T) {
	cache, _ := setupRedis(t)
	ctx := testContext(t)
	store := NewRedisScrapeCache(cache.Client())

	now := time.Now()
	first := &models.ScrapedCacheEntry{URL: "u", Content: "one", CachedAt: now, ExpiresAt: now.Add(time.Hour)}
	second := &models.ScrapedCacheEntry{URL: "u", Content: "two", CachedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.Upsert(ctx, first))
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.Get(ctx, "u", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "two", got.Content)

	expired := &models.ScrapedCacheEntry{URL: "old", Content: "x", CachedAt: now, ExpiresAt: now}
	require.NoError(t, store.Upsert(ctx, expired))
	got, err = store.Get(ctx, "old", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got)
}
