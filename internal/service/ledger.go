package service

import (
	"context"
	"errors"
	"time"

	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/storage"
	"github.com/caption-studio/internal/types"
)

// GenerationRepository is the subset of generation persistence the services need
type GenerationRepository interface {
	Create(ctx context.Context, gen *models.Generation) (string, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Generation, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// LedgerOutcome reports what the ledger managed to persist. Content is
// delivered to the caller whatever the bookkeeping outcome.
type LedgerOutcome struct {
	Delivered         bool
	GenerationID      *string
	GenerationWritten bool
	CreditsUpdated    bool
	// CreditsRemaining is the caller's balance after the debit, or the
	// balance read at resolve time when the debit did not happen.
	CreditsRemaining int
}

// Ledger persists a generation and then charges its credit. Each step is
// best effort: failures are logged and reflected in the outcome.
type Ledger struct {
	users       UserRepository
	generations GenerationRepository
	atomicDebit bool
	now         func() time.Time
}

// NewLedger creates a ledger. With atomicDebit the credit is taken by a
// conditional decrement; otherwise the balance read at resolve time minus one
// is written back, which can lose updates under concurrent requests.
func NewLedger(users UserRepository, generations GenerationRepository, atomicDebit bool) *Ledger {
	return &Ledger{
		users:       users,
		generations: generations,
		atomicDebit: atomicDebit,
		now:         time.Now,
	}
}

// Record writes gen for user and debits one credit when the user is metered
func (l *Ledger) Record(ctx context.Context, user *models.User, gen *models.Generation) LedgerOutcome {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"stage":  "ledger",
		"userId": user.ID,
	})

	outcome := LedgerOutcome{
		Delivered:        true,
		CreditsRemaining: user.CreditsRemaining,
	}

	now := l.now()
	gen.UserID = user.ID
	if gen.CreditsUsed == 0 {
		gen.CreditsUsed = types.CreditsPerGeneration
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = now
	}

	id, err := l.generations.Create(ctx, gen)
	if err != nil {
		logger.WithError(err).Error("Failed to save generation, skipping credit update")
		return outcome
	}
	outcome.GenerationID = &id
	outcome.GenerationWritten = true

	if !user.Metered() {
		if err := l.users.TouchActivity(ctx, user.ID, now); err != nil {
			logger.WithError(err).Warn("Failed to update last activity")
			return outcome
		}
		outcome.CreditsUpdated = true
		return outcome
	}

	if l.atomicDebit {
		remaining, err := l.users.DecrementCredit(ctx, user.ID, now)
		switch {
		case err == nil:
			outcome.CreditsUpdated = true
			outcome.CreditsRemaining = remaining
		case errors.Is(err, storage.ErrNoCreditsRemaining):
			// A concurrent request spent the last credit after our check passed.
			logger.Warn("Credit already exhausted at debit time")
			outcome.CreditsRemaining = 0
		default:
			logger.WithError(err).Error("Failed to debit credit")
		}
		return outcome
	}

	remaining := user.CreditsRemaining - types.CreditsPerGeneration
	if err := l.users.SetCredits(ctx, user.ID, remaining, now); err != nil {
		logger.WithError(err).Error("Failed to update credits")
		return outcome
	}
	outcome.CreditsUpdated = true
	outcome.CreditsRemaining = remaining
	return outcome
}
