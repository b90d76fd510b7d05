package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/logging"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondError writes a sanitized error body. Server side failures are
// logged with their cause and reported with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	logger := logging.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"status":   catErr.StatusCode,
		"category": string(catErr.Category),
	})
	if catErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Info("Request rejected")
	}

	if retryAfter, ok := catErr.Details["retryAfter"].(int); ok && retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	respondJSON(w, catErr.StatusCode, ErrorResponse{
		Success: false,
		Error:   apperrors.PublicMessage(catErr),
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody decodes the request body into v. Oversized bodies map to
// 413 and anything else malformed to 400.
func parseJSONBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return apperrors.NewPayloadTooLargeError(maxBytes.Limit)
		}
		return apperrors.NewInvalidInputError("Invalid request body")
	}
	return nil
}
