package api

import (
	"net/http"
	"strings"

	"github.com/caption-studio/internal/auth"
	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/service"
	"github.com/caption-studio/internal/types"
)

type generateRequest struct {
	URL      string `json:"url"`
	Workflow string `json:"workflow"`
}

type repurposeRequest struct {
	URL     string `json:"url"`
	BlogURL string `json:"blogUrl"`
}

// generateResponse flattens the result next to the success flag
type generateResponse struct {
	Success bool `json:"success"`
	*service.SubmitResult
}

// handleGenerateCaptions handles POST /api/generate-captions
func (s *Server) handleGenerateCaptions(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Workflow) == "" {
		respondError(w, r, apperrors.NewInvalidParameterError("workflow", "is required"))
		return
	}
	s.submit(w, r, req.URL, req.Workflow)
}

// handleRepurpose handles POST /api/repurpose. It is the article workflow
// under its own path and accepts the URL as either url or blogUrl.
func (s *Server) handleRepurpose(w http.ResponseWriter, r *http.Request) {
	var req repurposeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	url := req.URL
	if strings.TrimSpace(url) == "" {
		url = req.BlogURL
	}
	s.submit(w, r, url, string(types.WorkflowRepurpose))
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, url, workflow string) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, r, apperrors.NewUnauthorizedError("Unauthorized"))
		return
	}

	result, err := s.services.Generations.Submit(r.Context(), service.SubmitInput{
		ExternalID: claims.Subject,
		Email:      claims.Email,
		URL:        url,
		Workflow:   workflow,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, generateResponse{Success: true, SubmitResult: result})
}
