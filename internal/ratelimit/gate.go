package ratelimit

import (
	"context"
	"net/http"
	"strings"

	"github.com/caption-studio/internal/logging"
)

// Limiter checks and records one request for an identifier
type Limiter interface {
	Allow(ctx context.Context, identifier string) (Decision, error)
}

// Gate holds the optional global and per-user generation limiters.
// A missing limiter admits everything, and a limiter that errors is logged
// and treated as an admit so a store outage never blocks traffic.
type Gate struct {
	global     Limiter
	generation Limiter
}

// NewGate creates a gate. Either limiter may be nil.
func NewGate(global, generation Limiter) *Gate {
	return &Gate{global: global, generation: generation}
}

// AllowGlobal checks the per-IP limiter guarding every endpoint.
func (g *Gate) AllowGlobal(ctx context.Context, ip string) Decision {
	if g == nil {
		return Decision{Allowed: true}
	}
	return check(ctx, g.global, "global", ip)
}

// AllowGeneration checks the per-user limiter guarding generation endpoints.
func (g *Gate) AllowGeneration(ctx context.Context, externalID string) Decision {
	if g == nil {
		return Decision{Allowed: true}
	}
	return check(ctx, g.generation, "generation", externalID)
}

// Enabled reports whether any limiter is configured.
func (g *Gate) Enabled() bool {
	return g != nil && (g.global != nil || g.generation != nil)
}

func check(ctx context.Context, limiter Limiter, scope, identifier string) Decision {
	if limiter == nil {
		return Decision{Allowed: true}
	}

	decision, err := limiter.Allow(ctx, identifier)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("scope", scope).Warn("Rate limiter unavailable, allowing request")
		return Decision{Allowed: true}
	}

	if !decision.Allowed {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"scope": scope,
			"limit": decision.Limit,
		}).Info("Rate limit exceeded")
	}
	return decision
}

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return "unknown"
}
