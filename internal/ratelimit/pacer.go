package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound calls per key (usually an upstream host) with a
// token bucket, so a burst of requests does not trip upstream rate limits.
type Pacer struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit rate.Limit
	burst int
}

// NewPacer creates a pacer allowing rps calls per second per key with the
// given burst. A non-positive rps disables pacing.
func NewPacer(rps float64, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (p *Pacer) limiter(key string) *rate.Limiter {
	p.mu.RLock()
	limiter, exists := p.limiters[key]
	p.mu.RUnlock()

	if exists {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := p.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(p.limit, p.burst)
	p.limiters[key] = limiter
	return limiter
}

// Wait blocks until a call for key may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	if p == nil {
		return nil
	}
	return p.limiter(key).Wait(ctx)
}
