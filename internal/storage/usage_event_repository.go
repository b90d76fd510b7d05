package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/types"
)

// UsageEventRepository appends pipeline usage events to ClickHouse.
// A nil repository is valid and drops every event.
type UsageEventRepository struct {
	db *ClickHouseDB
}

// NewUsageEventRepository creates a usage event repository. db may be nil.
func NewUsageEventRepository(db *ClickHouseDB) *UsageEventRepository {
	if db == nil {
		return nil
	}
	return &UsageEventRepository{db: db}
}

// Record inserts one event
func (r *UsageEventRepository) Record(ctx context.Context, event *models.UsageEvent) error {
	if r == nil || r.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `INSERT INTO usage_events
		(id, user_id, action, workflow, success, error_message, duration_ms, created_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare usage event batch: %w", err)
	}

	if err := batch.Append(
		event.ID,
		event.UserID,
		string(event.Action),
		string(event.Workflow),
		event.Success,
		event.ErrorMessage,
		event.DurationMs,
		event.CreatedAt,
	); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("failed to append usage event: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send usage event: %w", err)
	}
	return nil
}

// ActionCount is the number of events of one action in a window
type ActionCount struct {
	Action   types.UsageAction `json:"action"`
	Total    uint64            `json:"total"`
	Failures uint64            `json:"failures"`
}

// CountByAction summarizes events since the given time, per action
func (r *UsageEventRepository) CountByAction(ctx context.Context, since time.Time) ([]ActionCount, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}

	rows, err := r.db.Conn().Query(ctx, `
		SELECT action, count() AS total, countIf(NOT success) AS failures
		FROM usage_events
		WHERE created_at >= ?
		GROUP BY action
		ORDER BY action`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()

	var counts []ActionCount
	for rows.Next() {
		var action string
		var c ActionCount
		if err := rows.Scan(&action, &c.Total, &c.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan usage count: %w", err)
		}
		c.Action = types.UsageAction(action)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
