package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/storage"
	"github.com/caption-studio/internal/types"
)

// Identity event types
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// IdentityEvent is a verified notification from the identity provider
type IdentityEvent struct {
	Type string            `json:"type"`
	Data IdentityEventData `json:"data"`
}

// IdentityEventData is the user payload of an identity event
type IdentityEventData struct {
	ID             string                 `json:"id"`
	EmailAddresses []IdentityEmailAddress `json:"email_addresses"`
}

// IdentityEmailAddress is one address of an identity
type IdentityEmailAddress struct {
	EmailAddress string `json:"email_address"`
}

// PrimaryEmail returns the first email address, or ""
func (d IdentityEventData) PrimaryEmail() string {
	if len(d.EmailAddresses) == 0 {
		return ""
	}
	return d.EmailAddresses[0].EmailAddress
}

// SyncResult is the acknowledgement returned to the identity provider
type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// IdentitySyncService mirrors identity provider events onto user rows
type IdentitySyncService struct {
	users        UserRepository
	initialQuota int
}

// NewIdentitySyncService creates a sync service
func NewIdentitySyncService(users UserRepository, initialQuota int) *IdentitySyncService {
	return &IdentitySyncService{users: users, initialQuota: initialQuota}
}

// Handle applies event. Duplicate creates are acknowledged, and update or
// delete of an unknown identity is logged and acknowledged.
func (s *IdentitySyncService) Handle(ctx context.Context, event *IdentityEvent) (*SyncResult, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"stage":      "identity_sync",
		"event":      event.Type,
		"externalId": event.Data.ID,
	})

	switch event.Type {
	case EventUserCreated:
		email := event.Data.PrimaryEmail()
		if email == "" {
			return nil, apperrors.NewInvalidInputError("No email in webhook")
		}
		err := s.users.Create(ctx, &models.User{
			ExternalID:       event.Data.ID,
			Email:            email,
			Plan:             types.PlanFree,
			CreditsRemaining: s.initialQuota,
		})
		if errors.Is(err, storage.ErrUserExists) {
			logger.Info("User already exists")
			return &SyncResult{Success: true, Message: "User already exists"}, nil
		}
		if err != nil {
			return nil, apperrors.NewDatabaseError("create user", err)
		}
		logger.Info("User created from identity event")
		return &SyncResult{Success: true, Message: "User created", UserID: event.Data.ID}, nil

	case EventUserUpdated:
		email := event.Data.PrimaryEmail()
		if event.Data.ID != "" && email != "" {
			if err := s.users.UpdateEmail(ctx, event.Data.ID, email); err != nil {
				logger.WithError(err).Warn("Failed to update user email")
			}
		}

	case EventUserDeleted:
		if event.Data.ID != "" {
			if err := s.users.DeleteByExternalID(ctx, event.Data.ID); err != nil {
				logger.WithError(err).Warn("Failed to delete user")
			}
		}
	}

	return &SyncResult{Success: true, Message: fmt.Sprintf("Event %s processed", event.Type)}, nil
}
