// Package ratelimit provides Redis backed sliding window limits for inbound
// requests and in-process pacing for outbound API calls.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key prefixes used by the two inbound limiters.
const (
	PrefixGlobal     = "ratelimit:global"
	PrefixGeneration = "ratelimit:generation"
)

// slidingWindowScript keeps one sorted set member per admitted request, scored
// by its admission time in milliseconds. Trimming, counting and admitting run
// atomically so concurrent callers never exceed the limit.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)

	if count >= limit then
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local reset = now + window
		if oldest[2] then
			reset = tonumber(oldest[2]) + window
		end
		return {0, count, reset}
	end

	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window)

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	return {1, count + 1, tonumber(oldest[2]) + window}
`)

// Decision is the outcome of a limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window admits another request
func (d Decision) RetryAfter(now time.Time) int {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return int(d.ResetAt.Sub(now).Seconds() + 0.999)
}

// SlidingWindowConfig holds configuration for a sliding window limiter.
type SlidingWindowConfig struct {
	// Redis is the backing store. Required.
	Redis redis.Cmdable

	// Prefix namespaces the keys of this limiter, e.g. "ratelimit:global".
	Prefix string

	// Limit is the number of requests admitted per window.
	Limit int

	// Window is the sliding window length.
	Window time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Validate checks if the configuration is valid.
func (c *SlidingWindowConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Prefix == "" {
		return errors.New("key prefix is required")
	}
	if c.Limit < 1 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.Window < time.Millisecond {
		return fmt.Errorf("window must be at least 1ms, got %v", c.Window)
	}
	return nil
}

// SlidingWindowLimiter admits at most Limit requests per identifier in any
// Window-long interval.
type SlidingWindowLimiter struct {
	redis  redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a limiter. Returns an error if the
// configuration is invalid.
func NewSlidingWindowLimiter(cfg *SlidingWindowConfig) (*SlidingWindowLimiter, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &SlidingWindowLimiter{
		redis:  cfg.Redis,
		prefix: cfg.Prefix,
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    now,
	}, nil
}

func (l *SlidingWindowLimiter) key(identifier string) string {
	return l.prefix + ":" + identifier
}

// Allow records a request for identifier if the window has room.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, identifier string) (Decision, error) {
	nowMs := l.now().UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := slidingWindowScript.Run(ctx, l.redis, []string{l.key(identifier)},
		nowMs, l.window.Milliseconds(), l.limit, member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("sliding window check failed: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("sliding window script returned %d values", len(res))
	}

	remaining := l.limit - int(res[1])
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   res[0] == 1,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(res[2]),
	}, nil
}

// Limit returns the configured request limit.
func (l *SlidingWindowLimiter) Limit() int {
	return l.limit
}

// Window returns the configured window length.
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}
