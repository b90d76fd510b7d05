package service

import (
	"context"

	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/types"
)

// Profile is the caller's account summary
type Profile struct {
	Email             string     `json:"email"`
	Plan              types.Plan `json:"plan"`
	CreditsRemaining  int        `json:"credits_remaining"`
	RequestsRemaining int        `json:"requests_remaining"`
	IsAdmin           bool       `json:"is_admin"`
	TotalGenerations  int        `json:"total_generations"`
}

// ProfileService reads the caller's account, creating it on first sight
type ProfileService struct {
	resolver    *UserResolver
	generations GenerationRepository
}

// NewProfileService creates a profile service
func NewProfileService(resolver *UserResolver, generations GenerationRepository) *ProfileService {
	return &ProfileService{resolver: resolver, generations: generations}
}

// Me returns the profile of the identity
func (s *ProfileService) Me(ctx context.Context, externalID, email string) (*Profile, error) {
	user, err := s.resolver.Resolve(ctx, externalID, email)
	if err != nil {
		return nil, apperrors.NewDatabaseError("resolve user", err)
	}

	total, err := s.generations.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count generations", err)
	}

	return &Profile{
		Email:             user.Email,
		Plan:              user.Plan,
		CreditsRemaining:  user.CreditsRemaining,
		RequestsRemaining: user.RequestsRemaining(),
		IsAdmin:           user.IsAdmin,
		TotalGenerations:  total,
	}, nil
}
