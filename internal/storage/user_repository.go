package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/types"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the external id is already registered
	ErrUserExists = errors.New("user already exists")
	// ErrNoCreditsRemaining is returned by the conditional decrement when the counter is already zero
	ErrNoCreditsRemaining = errors.New("no credits remaining")
)

const userColumns = `id, external_id, email, plan, credits_remaining, is_admin,
	last_activity_at, last_credit_reset, created_at, updated_at`

// UserRepository handles user data persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var plan string
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Email,
		&plan,
		&user.CreditsRemaining,
		&user.IsAdmin,
		&user.LastActivityAt,
		&user.LastCreditReset,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Plan = types.Plan(plan)
	return &user, nil
}

// GetByExternalID retrieves a user by identity provider id
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`

	user, err := scanUser(r.db.Pool().QueryRow(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Create inserts a new user. A duplicate external id yields ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Plan == "" {
		user.Plan = types.PlanFree
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, external_id, email, plan, credits_remaining, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		string(user.Plan),
		user.CreditsRemaining,
		user.IsAdmin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateEmail changes the email of the user with the given external id
func (r *UserRepository) UpdateEmail(ctx context.Context, externalID, email string) error {
	query := `UPDATE users SET email = $2, updated_at = $3 WHERE external_id = $1`

	result, err := r.db.Pool().Exec(ctx, query, externalID, email, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update user email: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteByExternalID removes a user and, by cascade, their generations
func (r *UserRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM users WHERE external_id = $1`, externalID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetCredits writes an already computed credit value and the activity time.
// This is the unguarded read-then-write form of the debit.
func (r *UserRepository) SetCredits(ctx context.Context, userID string, credits int, activityAt time.Time) error {
	query := `
		UPDATE users
		SET credits_remaining = $2, last_activity_at = $3, updated_at = $3
		WHERE id = $1
	`
	result, err := r.db.Pool().Exec(ctx, query, userID, credits, activityAt)
	if err != nil {
		return fmt.Errorf("failed to update credits: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DecrementCredit atomically takes one credit if any remain and returns the
// new balance. When the balance is already zero only the activity time is
// stamped and ErrNoCreditsRemaining is returned.
func (r *UserRepository) DecrementCredit(ctx context.Context, userID string, activityAt time.Time) (int, error) {
	query := `
		UPDATE users
		SET credits_remaining = credits_remaining - 1, last_activity_at = $2, updated_at = $2
		WHERE id = $1 AND credits_remaining > 0
		RETURNING credits_remaining
	`

	var remaining int
	err := r.db.Pool().QueryRow(ctx, query, userID, activityAt).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to decrement credits: %w", err)
	}

	if err := r.TouchActivity(ctx, userID, activityAt); err != nil {
		return 0, err
	}
	return 0, ErrNoCreditsRemaining
}

// TouchActivity stamps last_activity_at without changing credits
func (r *UserRepository) TouchActivity(ctx context.Context, userID string, at time.Time) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE users SET last_activity_at = $2, updated_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListByPlan returns every user on the given plan
func (r *UserRepository) ListByPlan(ctx context.Context, plan types.Plan) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE plan = $1 ORDER BY created_at`

	rows, err := r.db.Pool().Query(ctx, query, string(plan))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// ResetCredits sets credits to quota and stamps the reset time for the given users
func (r *UserRepository) ResetCredits(ctx context.Context, userIDs []string, quota int, at time.Time) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE users
		SET credits_remaining = $2, last_credit_reset = $3, updated_at = $3
		WHERE id = ANY($1::uuid[])
	`
	result, err := r.db.Pool().Exec(ctx, query, userIDs, quota, at)
	if err != nil {
		return 0, fmt.Errorf("failed to reset credits: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// CountUsers returns the total number of users and how many were created at or after since
func (r *UserRepository) CountUsers(ctx context.Context, since time.Time) (total, created int, err error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1) FROM users`
	if err := r.db.Pool().QueryRow(ctx, query, since).Scan(&total, &created); err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, created, nil
}
