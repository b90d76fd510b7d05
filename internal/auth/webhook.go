package auth

import (
	"net/http"

	svix "github.com/svix/svix-webhooks/go"

	apperrors "github.com/caption-studio/internal/errors"
)

// Signature headers sent with every identity webhook
const (
	HeaderWebhookID        = "svix-id"
	HeaderWebhookTimestamp = "svix-timestamp"
	HeaderWebhookSignature = "svix-signature"
)

// WebhookVerifier checks the signature of identity provider webhooks
type WebhookVerifier struct {
	wh *svix.Webhook
}

// NewWebhookVerifier creates a verifier for a "whsec_" signing secret
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, err
	}
	return &WebhookVerifier{wh: wh}, nil
}

// Verify checks payload against the signature headers. Missing headers are a
// 400, a bad or stale signature a 401. A nil verifier means no secret is
// configured and rejects everything with a 500.
func (v *WebhookVerifier) Verify(payload []byte, headers http.Header) error {
	if v == nil {
		return apperrors.NewInternalError("webhook secret not configured", nil)
	}
	if headers.Get(HeaderWebhookID) == "" || headers.Get(HeaderWebhookTimestamp) == "" || headers.Get(HeaderWebhookSignature) == "" {
		return apperrors.NewInvalidInputError("Missing webhook signature headers")
	}
	if err := v.wh.Verify(payload, headers); err != nil {
		return &apperrors.CategorizedError{
			Category:   apperrors.CategoryAuthorization,
			StatusCode: http.StatusUnauthorized,
			Code:       "INVALID_SIGNATURE",
			Message:    "Invalid webhook signature",
			Cause:      err,
		}
	}
	return nil
}
