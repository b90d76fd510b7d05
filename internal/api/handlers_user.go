package api

import (
	"net/http"
	"strconv"

	"github.com/caption-studio/internal/auth"
	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/service"
)

// dataResponse wraps a payload as {success, data}
type dataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// usageResponse is the quota summary shown next to the generate form
type usageResponse struct {
	Success          bool   `json:"success"`
	Allowed          bool   `json:"allowed"`
	Remaining        int    `json:"remaining"`
	DailyLimit       int    `json:"daily_limit"`
	PlanType         string `json:"plan_type"`
	TotalGenerations int    `json:"total_generations"`
}

// handleListGenerations handles GET /api/user/generations. The body is a bare
// array, newest first.
func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, r, apperrors.NewUnauthorizedError("Unauthorized"))
		return
	}

	limit := queryInt(r, "limit", service.DefaultHistoryLimit)
	offset := queryInt(r, "offset", 0)

	summaries, err := s.services.History.List(r.Context(), claims.Subject, limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []service.GenerationSummary{}
	}

	respondJSON(w, http.StatusOK, summaries)
}

// handleMe handles GET /api/user/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.profile(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, dataResponse{Success: true, Data: profile})
}

// handleUsage handles GET /api/user/usage
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.profile(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, usageResponse{
		Success:          true,
		Allowed:          profile.RequestsRemaining > 0,
		Remaining:        profile.RequestsRemaining,
		DailyLimit:       s.config.DailyQuota,
		PlanType:         string(profile.Plan),
		TotalGenerations: profile.TotalGenerations,
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) (*service.Profile, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, r, apperrors.NewUnauthorizedError("Unauthorized"))
		return nil, false
	}
	profile, err := s.services.Profiles.Me(r.Context(), claims.Subject, claims.Email)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return profile, true
}

// queryInt parses an integer query parameter, falling back to def when it
// is absent or malformed. Range clamping happens in the service.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
