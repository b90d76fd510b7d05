package service

import (
	"context"
	"time"

	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/types"
)

// Credit reset messages
const (
	ResetUpToDateMessage = "All users up to date in IST"
	ResetDoneMessage     = "Credits reset successfully for IST day"
)

// ResetResult summarizes one credit reset run
type ResetResult struct {
	Updated int    `json:"updated"`
	Message string `json:"message"`
}

// CreditResetService restores the daily quota of free users once per
// calendar day in the configured timezone.
type CreditResetService struct {
	users UserRepository
	quota int
	loc   *time.Location
}

// NewCreditResetService creates a reset service. A nil loc means UTC.
func NewCreditResetService(users UserRepository, quota int, loc *time.Location) *CreditResetService {
	if loc == nil {
		loc = time.UTC
	}
	return &CreditResetService{users: users, quota: quota, loc: loc}
}

// Run resets every free user not yet reset on now's calendar day. Running it
// again the same day updates nobody.
func (s *CreditResetService) Run(ctx context.Context, now time.Time) (*ResetResult, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"stage": "credit_reset",
		"day":   models.CalendarDay(now, s.loc),
	})

	users, err := s.users.ListByPlan(ctx, types.PlanFree)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list free users", err)
	}

	var due []string
	for _, u := range users {
		if u.NeedsCreditReset(now, s.loc) {
			due = append(due, u.ID)
		}
	}

	if len(due) == 0 {
		logger.Info("No users due for credit reset")
		return &ResetResult{Updated: 0, Message: ResetUpToDateMessage}, nil
	}

	updated, err := s.users.ResetCredits(ctx, due, s.quota, now)
	if err != nil {
		return nil, apperrors.NewDatabaseError("reset credits", err)
	}

	logger.WithFields(map[string]interface{}{
		"updated": updated,
		"quota":   s.quota,
	}).Info("Credits reset")
	return &ResetResult{Updated: updated, Message: ResetDoneMessage}, nil
}
