package models

import (
	"encoding/json"
	"time"

	"github.com/caption-studio/internal/types"
)

// Captions holds the per-platform caption columns of a generation
type Captions struct {
	Instagram  string `json:"instagram"`
	Twitter    string `json:"twitter"`
	LinkedIn   string `json:"linkedin"`
	Facebook   string `json:"facebook"`
	Newsletter string `json:"newsletter"`
	Blog       string `json:"blog"`
}

// Count returns the number of non-empty captions
func (c Captions) Count() int {
	n := 0
	for _, s := range []string{c.Instagram, c.Twitter, c.LinkedIn, c.Facebook, c.Newsletter, c.Blog} {
		if s != "" {
			n++
		}
	}
	return n
}

// Generation is one completed content generation. Rows are never updated.
type Generation struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"userId" db:"user_id"`
	SourceURL     string          `json:"url" db:"source_url"`
	Title         string          `json:"title" db:"title"`
	Workflow      types.Workflow  `json:"workflow" db:"workflow"`
	Output        json.RawMessage `json:"output" db:"output"`
	Captions      Captions        `json:"captions"`
	CreditsUsed   int             `json:"creditsUsed" db:"credits_used"`
	Model         string          `json:"model" db:"model"`
	TokensUsed    int             `json:"tokensUsed" db:"tokens_used"`
	ScrapeCostUSD float64         `json:"scrapeCostUsd" db:"scrape_cost_usd"`
	ModelCostUSD  float64         `json:"modelCostUsd" db:"model_cost_usd"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}
