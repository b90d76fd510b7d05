package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/storage"
	"github.com/caption-studio/internal/types"
)

// History pagination bounds
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 50
)

// GenerationSummary is one entry of a user's history
type GenerationSummary struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"created_at"`
	UserID    string            `json:"user_id"`
	Workflow  types.Workflow    `json:"workflow"`
	Output    json.RawMessage   `json:"output"`
	Captions  map[string]string `json:"captions"`
	Metadata  SummaryMetadata   `json:"metadata"`
}

// SummaryMetadata carries derived counters of a summary
type SummaryMetadata struct {
	TotalCaptions int `json:"total_captions"`
}

// HistoryService lists a user's past generations
type HistoryService struct {
	users       UserRepository
	generations GenerationRepository
}

// NewHistoryService creates a history service
func NewHistoryService(users UserRepository, generations GenerationRepository) *HistoryService {
	return &HistoryService{users: users, generations: generations}
}

// ClampPagination applies the history defaults: a non-positive limit becomes
// the default, limits above the maximum are capped and negative offsets become 0.
func ClampPagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns the newest generations first. An identity with no user row
// has no history.
func (s *HistoryService) List(ctx context.Context, externalID string, limit, offset int) ([]GenerationSummary, error) {
	limit, offset = ClampPagination(limit, offset)

	user, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return []GenerationSummary{}, nil
		}
		return nil, apperrors.NewDatabaseError("get user", err)
	}

	gens, err := s.generations.ListByUser(ctx, user.ID, limit, offset)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list generations", err)
	}

	summaries := make([]GenerationSummary, 0, len(gens))
	for _, g := range gens {
		title := g.Title
		if title == "" {
			title = "Untitled"
		}
		workflow := g.Workflow
		if workflow == "" {
			workflow = types.WorkflowSocialMedia
		}
		output := g.Output
		if len(output) == 0 {
			output = json.RawMessage("null")
		}
		summaries = append(summaries, GenerationSummary{
			ID:        g.ID,
			URL:       g.SourceURL,
			Title:     title,
			CreatedAt: g.CreatedAt,
			UserID:    g.UserID,
			Workflow:  workflow,
			Output:    output,
			Captions: map[string]string{
				"instagram":  g.Captions.Instagram,
				"twitter":    g.Captions.Twitter,
				"linkedin":   g.Captions.LinkedIn,
				"facebook":   g.Captions.Facebook,
				"newsletter": g.Captions.Newsletter,
				"blog":       g.Captions.Blog,
			},
			Metadata: SummaryMetadata{TotalCaptions: g.Captions.Count()},
		})
	}
	return summaries, nil
}
