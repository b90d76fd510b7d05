package models

import (
	"time"

	"github.com/caption-studio/internal/types"
)

// UsageEvent records one pipeline action for analytics
type UsageEvent struct {
	ID           string            `json:"id" ch:"id"`
	UserID       string            `json:"userId" ch:"user_id"`
	Action       types.UsageAction `json:"action" ch:"action"`
	Workflow     types.Workflow    `json:"workflow" ch:"workflow"`
	Success      bool              `json:"success" ch:"success"`
	ErrorMessage string            `json:"errorMessage,omitempty" ch:"error_message"`
	DurationMs   int64             `json:"durationMs" ch:"duration_ms"`
	CreatedAt    time.Time         `json:"createdAt" ch:"created_at"`
}
