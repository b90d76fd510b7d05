package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/caption-studio/internal/auth"
	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/service"
)

type resetResponse struct {
	Success bool   `json:"success"`
	Updated int    `json:"updated"`
	Message string `json:"message"`
}

// handleResetCredits handles GET|POST /api/cron/reset-credits. The cron
// secret is checked by middleware.
func (s *Server) handleResetCredits(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Credits.Run(r.Context(), s.now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resetResponse{
		Success: true,
		Updated: result.Updated,
		Message: result.Message,
	})
}

// handleIdentityWebhook handles POST /api/webhooks/identity. The raw body is
// verified before it is decoded.
func (s *Server) handleIdentityWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, r, apperrors.NewPayloadTooLargeError(maxBytes.Limit))
			return
		}
		respondError(w, r, apperrors.NewInvalidInputError("Invalid request body"))
		return
	}

	if s.services.Webhooks == nil {
		respondError(w, r, apperrors.NewInternalError("webhook secret not configured", nil))
		return
	}
	if err := s.services.Webhooks.Verify(payload, r.Header); err != nil {
		respondError(w, r, err)
		return
	}

	var event service.IdentityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		respondError(w, r, apperrors.NewInvalidInputError("Invalid request body"))
		return
	}

	ctx := logging.WithLogger(r.Context(), logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"eventType":  event.Type,
		"externalId": event.Data.ID,
		"webhookId":  r.Header.Get(auth.HeaderWebhookID),
	}))
	result, err := s.services.Identity.Handle(ctx, &event)
	if err != nil {
		respondError(w, r.WithContext(ctx), err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleAdminStats handles GET /api/admin/stats
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, r, apperrors.NewUnauthorizedError("Unauthorized"))
		return
	}
	stats, err := s.services.Admin.Get(r.Context(), claims.Subject, s.now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: stats})
}
