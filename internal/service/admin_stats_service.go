package service

import (
	"context"
	"time"

	"github.com/caption-studio/internal/circuitbreaker"
	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/storage"
)

// StatsRepository is the aggregate read side used by the admin stats
type StatsRepository interface {
	Stats(ctx context.Context, since time.Time) (*storage.GenerationStats, error)
	CostByWorkflow(ctx context.Context) ([]storage.WorkflowCost, error)
}

// UsageStatsReader summarizes usage events. A nil reader yields no counts.
type UsageStatsReader interface {
	CountByAction(ctx context.Context, since time.Time) ([]storage.ActionCount, error)
}

// AdminStats is the operator dashboard payload
type AdminStats struct {
	Since         time.Time                       `json:"since"`
	TotalUsers    int                             `json:"totalUsers"`
	NewUsersToday int                             `json:"newUsersToday"`
	Generations   *storage.GenerationStats        `json:"generations"`
	WorkflowCosts []storage.WorkflowCost          `json:"workflowCosts"`
	UsageToday    []storage.ActionCount           `json:"usageToday"`
	Pipeline      PipelineStats                   `json:"pipeline"`
	ModelBreakers map[string]circuitbreaker.Stats `json:"modelBreakers,omitempty"`
}

// AdminStatsService aggregates operator statistics. Only admins may read them.
type AdminStatsService struct {
	users   UserRepository
	stats   StatsRepository
	usage   UsageStatsReader
	monitor *PipelineMonitor
	engine  *GenerationEngine
	loc     *time.Location
}

// NewAdminStatsService creates the stats service. usage, monitor and engine may be nil.
func NewAdminStatsService(users UserRepository, stats StatsRepository, usage UsageStatsReader, monitor *PipelineMonitor, engine *GenerationEngine, loc *time.Location) *AdminStatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminStatsService{
		users:   users,
		stats:   stats,
		usage:   usage,
		monitor: monitor,
		engine:  engine,
		loc:     loc,
	}
}

// StartOfDay returns midnight of now's calendar day in loc
func StartOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Get returns the statistics since the start of the current day, or a
// forbidden error when the caller is not an admin.
func (s *AdminStatsService) Get(ctx context.Context, externalID string, now time.Time) (*AdminStats, error) {
	caller, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil || !caller.IsAdmin {
		return nil, apperrors.NewForbiddenError("Forbidden")
	}

	since := StartOfDay(now, s.loc)
	out := &AdminStats{Since: since, Pipeline: s.monitor.Stats()}

	if out.TotalUsers, out.NewUsersToday, err = s.users.CountUsers(ctx, since); err != nil {
		return nil, apperrors.NewDatabaseError("count users", err)
	}
	if out.Generations, err = s.stats.Stats(ctx, since); err != nil {
		return nil, apperrors.NewDatabaseError("generation stats", err)
	}
	if out.WorkflowCosts, err = s.stats.CostByWorkflow(ctx); err != nil {
		return nil, apperrors.NewDatabaseError("workflow costs", err)
	}
	if s.usage != nil {
		if out.UsageToday, err = s.usage.CountByAction(ctx, since); err != nil {
			return nil, apperrors.NewDatabaseError("usage counts", err)
		}
	}
	if s.engine != nil {
		out.ModelBreakers = s.engine.BreakerStats()
	}
	return out, nil
}
