// Package auth authenticates callers: bearer tokens from the identity
// provider, signed identity webhooks and the scheduler's shared secret.
package auth

import (
	"context"
	"time"
)

type ctxKey int

const claimsKey ctxKey = iota

// Claims are the verified token details the handlers rely on
type Claims struct {
	Subject   string // external identity id
	Email     string
	Issuer    string
	ExpiresAt time.Time
}

// WithClaims stores claims in ctx
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims stored by the middleware
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}
