package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/caption-studio/internal/logging"
)

// TokenVerifier validates a bearer token
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Middleware rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.FromContext(r.Context()).WithField("path", r.URL.Path)

			if verifier == nil {
				logger.Error("Auth verifier not configured")
				respondUnauthorized(w)
				return
			}

			token, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				logger.Debug("Missing or malformed Authorization header")
				respondUnauthorized(w)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.WithError(err).Info("Token rejected")
				respondUnauthorized(w)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithField("externalId", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CronAuthorized reports whether r carries "Bearer <secret>". An empty
// secret authorizes nothing.
func CronAuthorized(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	token, ok := extractBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

// CronMiddleware guards scheduler endpoints with the shared secret
func CronMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !CronAuthorized(r, secret) {
				logging.FromContext(r.Context()).WithField("path", r.URL.Path).Warn("Rejected scheduler call")
				respondUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "Unauthorized",
	})
}
