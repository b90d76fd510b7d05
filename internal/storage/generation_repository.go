package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/types"
)

// GenerationRepository handles generation persistence. Rows are insert-only.
type GenerationRepository struct {
	db *PostgresDB
}

// NewGenerationRepository creates a new generation repository
func NewGenerationRepository(db *PostgresDB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Create inserts a generation and returns its id
func (r *GenerationRepository) Create(ctx context.Context, gen *models.Generation) (string, error) {
	if gen.ID == "" {
		gen.ID = uuid.New().String()
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO generations (
			id, user_id, source_url, title, workflow, output,
			instagram_caption, twitter_caption, linkedin_caption,
			facebook_caption, newsletter_caption, blog_caption,
			credits_used, model, tokens_used, scrape_cost_usd, model_cost_usd, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	var output []byte
	if len(gen.Output) > 0 {
		output = gen.Output
	}

	_, err := r.db.Pool().Exec(ctx, query,
		gen.ID,
		gen.UserID,
		gen.SourceURL,
		gen.Title,
		string(gen.Workflow),
		output,
		gen.Captions.Instagram,
		gen.Captions.Twitter,
		gen.Captions.LinkedIn,
		gen.Captions.Facebook,
		gen.Captions.Newsletter,
		gen.Captions.Blog,
		gen.CreditsUsed,
		gen.Model,
		gen.TokensUsed,
		gen.ScrapeCostUSD,
		gen.ModelCostUSD,
		gen.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create generation: %w", err)
	}
	return gen.ID, nil
}

// ListByUser returns a user's generations, newest first
func (r *GenerationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Generation, error) {
	query := `
		SELECT id, user_id, source_url, title, workflow, output,
			instagram_caption, twitter_caption, linkedin_caption,
			facebook_caption, newsletter_caption, blog_caption,
			credits_used, model, tokens_used, scrape_cost_usd, model_cost_usd, created_at
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	generations := make([]*models.Generation, 0, limit)
	for rows.Next() {
		var gen models.Generation
		var workflow string
		var output []byte
		err := rows.Scan(
			&gen.ID,
			&gen.UserID,
			&gen.SourceURL,
			&gen.Title,
			&workflow,
			&output,
			&gen.Captions.Instagram,
			&gen.Captions.Twitter,
			&gen.Captions.LinkedIn,
			&gen.Captions.Facebook,
			&gen.Captions.Newsletter,
			&gen.Captions.Blog,
			&gen.CreditsUsed,
			&gen.Model,
			&gen.TokensUsed,
			&gen.ScrapeCostUSD,
			&gen.ModelCostUSD,
			&gen.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gen.Workflow = types.Workflow(workflow)
		gen.Output = output
		generations = append(generations, &gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generations: %w", err)
	}
	return generations, nil
}

// CountByUser returns the number of generations a user has
func (r *GenerationRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM generations WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return count, nil
}

// GenerationStats aggregates generations overall and since a cut-off
type GenerationStats struct {
	Total            int     `json:"total"`
	Since            int     `json:"since"`
	CreditsSince     int     `json:"creditsSince"`
	ActiveUsersSince int     `json:"activeUsersSince"`
	ScrapeCostUSD    float64 `json:"scrapeCostUsd"`
	ModelCostUSD     float64 `json:"modelCostUsd"`
	ScrapeCostSince  float64 `json:"scrapeCostSince"`
	ModelCostSince   float64 `json:"modelCostSince"`
}

// WorkflowCost is the generation count and total spend of one workflow
type WorkflowCost struct {
	Workflow types.Workflow `json:"workflow"`
	Count    int            `json:"count"`
	CostUSD  float64        `json:"costUsd"`
}

// Stats returns aggregate counters, with the "since" fields limited to rows created at or after since
func (r *GenerationRepository) Stats(ctx context.Context, since time.Time) (*GenerationStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COALESCE(SUM(credits_used) FILTER (WHERE created_at >= $1), 0),
			COUNT(DISTINCT user_id) FILTER (WHERE created_at >= $1),
			COALESCE(SUM(scrape_cost_usd), 0),
			COALESCE(SUM(model_cost_usd), 0),
			COALESCE(SUM(scrape_cost_usd) FILTER (WHERE created_at >= $1), 0),
			COALESCE(SUM(model_cost_usd) FILTER (WHERE created_at >= $1), 0)
		FROM generations
	`

	var s GenerationStats
	err := r.db.Pool().QueryRow(ctx, query, since).Scan(
		&s.Total,
		&s.Since,
		&s.CreditsSince,
		&s.ActiveUsersSince,
		&s.ScrapeCostUSD,
		&s.ModelCostUSD,
		&s.ScrapeCostSince,
		&s.ModelCostSince,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute generation stats: %w", err)
	}
	return &s, nil
}

// CostByWorkflow returns spend per workflow, most expensive first
func (r *GenerationRepository) CostByWorkflow(ctx context.Context) ([]WorkflowCost, error) {
	query := `
		SELECT workflow, COUNT(*), COALESCE(SUM(scrape_cost_usd + model_cost_usd), 0) AS cost
		FROM generations
		GROUP BY workflow
		ORDER BY cost DESC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow costs: %w", err)
	}
	defer rows.Close()

	var costs []WorkflowCost
	for rows.Next() {
		var c WorkflowCost
		var workflow string
		if err := rows.Scan(&workflow, &c.Count, &c.CostUSD); err != nil {
			return nil, fmt.Errorf("failed to scan workflow cost: %w", err)
		}
		c.Workflow = types.Workflow(workflow)
		costs = append(costs, c)
	}
	return costs, rows.Err()
}
