package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/storage"
	"github.com/caption-studio/internal/types"
)

// UserRepository is the subset of user persistence the services need
type UserRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateEmail(ctx context.Context, externalID, email string) error
	DeleteByExternalID(ctx context.Context, externalID string) error
	SetCredits(ctx context.Context, userID string, credits int, activityAt time.Time) error
	DecrementCredit(ctx context.Context, userID string, activityAt time.Time) (int, error)
	TouchActivity(ctx context.Context, userID string, at time.Time) error
	ListByPlan(ctx context.Context, plan types.Plan) ([]*models.User, error)
	ResetCredits(ctx context.Context, userIDs []string, quota int, at time.Time) (int, error)
	CountUsers(ctx context.Context, since time.Time) (total, created int, err error)
}

// UserResolver maps an external identity onto a local user, creating the
// row the first time the identity is seen.
type UserResolver struct {
	users        UserRepository
	initialQuota int
}

// NewUserResolver creates a resolver. New users start with initialQuota credits.
func NewUserResolver(users UserRepository, initialQuota int) *UserResolver {
	return &UserResolver{users: users, initialQuota: initialQuota}
}

// Resolve returns the user for externalID. A concurrent insert of the same
// identity surfaces as ErrUserExists and is answered by reading the winner's row.
func (r *UserResolver) Resolve(ctx context.Context, externalID, email string) (*models.User, error) {
	logger := logging.FromContext(ctx).WithField("stage", "resolve_user")

	user, err := r.users.GetByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &models.User{
		ExternalID:       externalID,
		Email:            email,
		Plan:             types.PlanFree,
		CreditsRemaining: r.initialQuota,
	}
	err = r.users.Create(ctx, user)
	switch {
	case err == nil:
		logger.WithField("userId", user.ID).Info("Created user on first request")
		return user, nil
	case errors.Is(err, storage.ErrUserExists):
		logger.Debug("User created concurrently, re-reading")
		existing, readErr := r.users.GetByExternalID(ctx, externalID)
		if readErr != nil {
			return nil, fmt.Errorf("failed to re-read user after duplicate insert: %w", readErr)
		}
		return existing, nil
	default:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
}
