package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/types"
)

func mustIST(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func TestCreditReset_ResetsOncePerDay(t *testing.T) {
	ist := mustIST(t)
	// 2026-05-10 00:30 IST
	now := time.Date(2026, 5, 9, 19, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	today := now.Add(-10 * time.Minute)

	users := newMockUserRepository(
		&models.User{ID: "a", ExternalID: "ext_a", Plan: types.PlanFree, CreditsRemaining: 0, LastCreditReset: &yesterday},
		&models.User{ID: "b", ExternalID: "ext_b", Plan: types.PlanFree, CreditsRemaining: 1},
		&models.User{ID: "c", ExternalID: "ext_c", Plan: types.PlanFree, CreditsRemaining: 2, LastCreditReset: &today},
		&models.User{ID: "d", ExternalID: "ext_d", Plan: types.PlanPro},
	)
	svc := NewCreditResetService(users, 5, ist)

	first, err := svc.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Updated)
	assert.Equal(t, ResetDoneMessage, first.Message)
	assert.Equal(t, 5, users.get("ext_a").CreditsRemaining)
	assert.Equal(t, 5, users.get("ext_b").CreditsRemaining)
	assert.Equal(t, 2, users.get("ext_c").CreditsRemaining)
	assert.Equal(t, 0, users.get("ext_d").CreditsRemaining)

	second, err := svc.Run(context.Background(), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, ResetUpToDateMessage, second.Message)
	assert.Len(t, users.resets, 1)
}

func TestCreditReset_UsesConfiguredTimezone(t *testing.T) {
	ist := mustIST(t)
	// 23:00 UTC on May 9 is already May 10 in IST
	lastReset := time.Date(2026, 5, 9, 1, 0, 0, 0, time.UTC)
	now := time.Date(2026, 5, 9, 23, 0, 0, 0, time.UTC)
	users := newMockUserRepository(&models.User{ID: "a", ExternalID: "ext_a", Plan: types.PlanFree, LastCreditReset: &lastReset})

	result, err := NewCreditResetService(users, 5, ist).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	users = newMockUserRepository(&models.User{ID: "a", ExternalID: "ext_a", Plan: types.PlanFree, LastCreditReset: &lastReset})
	result, err = NewCreditResetService(users, 5, time.UTC).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)
}

func TestCreditReset_ListFailure(t *testing.T) {
	users := newMockUserRepository()
	users.listErr = errors.New("db down")

	_, err := NewCreditResetService(users, 5, nil).Run(context.Background(), time.Now())
	assert.Error(t, err)
}
