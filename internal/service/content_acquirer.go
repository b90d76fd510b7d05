package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/caption-studio/internal/adapter"
	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/retry"
	"github.com/caption-studio/internal/types"
)

const (
	maxTitleLength = 255
	untitledPost   = "Untitled Post"
)

// Scraper fetches the readable content of a web page in one attempt
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) (string, error)
}

// RepositoryFetcher fetches repository metadata and README in one attempt
type RepositoryFetcher interface {
	FetchRepository(ctx context.Context, owner, repo string) (*adapter.RepositoryData, error)
}

// ScrapeCache memoizes scrape results by URL
type ScrapeCache interface {
	Get(ctx context.Context, url string, now time.Time) (*models.ScrapedCacheEntry, error)
	Upsert(ctx context.Context, entry *models.ScrapedCacheEntry) error
}

// UsageRecorder appends analytics events. Implementations must be safe to
// call when analytics are disabled.
type UsageRecorder interface {
	Record(ctx context.Context, event *models.UsageEvent) error
}

// AcquiredContent is the raw material for a prompt
type AcquiredContent struct {
	Text       string
	Repository *adapter.RepositoryData
	Title      string
	CacheHit   bool
	Scraped    bool
	CostUSD    float64 // upstream spend incurred to obtain Text
}

// AcquirerConfig holds the collaborators and policies of a ContentAcquirer
type AcquirerConfig struct {
	Scraper      Scraper
	Repositories RepositoryFetcher
	Cache        ScrapeCache
	Usage        UsageRecorder
	ScrapeRetry  *retry.Retrier
	FetchRetry   *retry.Retrier
	CacheTTL     time.Duration
	ScrapeCost   float64 // USD per successful scrape
	Now          func() time.Time
}

// ContentAcquirer obtains source text through the cache, the scraping API
// or the repository API, depending on the workflow.
type ContentAcquirer struct {
	scraper     Scraper
	repos       RepositoryFetcher
	cache       ScrapeCache
	usage       UsageRecorder
	scrapeRetry *retry.Retrier
	fetchRetry  *retry.Retrier
	cacheTTL    time.Duration
	scrapeCost  float64
	now         func() time.Time
}

// NewContentAcquirer creates an acquirer. Missing retriers use the default
// policy and a missing TTL defaults to 24 hours.
func NewContentAcquirer(cfg AcquirerConfig) *ContentAcquirer {
	a := &ContentAcquirer{
		scraper:     cfg.Scraper,
		repos:       cfg.Repositories,
		cache:       cfg.Cache,
		usage:       cfg.Usage,
		scrapeRetry: cfg.ScrapeRetry,
		fetchRetry:  cfg.FetchRetry,
		cacheTTL:    cfg.CacheTTL,
		scrapeCost:  cfg.ScrapeCost,
		now:         cfg.Now,
	}
	if a.scrapeRetry == nil {
		a.scrapeRetry = retry.New(retry.DefaultPolicy(), nil)
	}
	if a.fetchRetry == nil {
		a.fetchRetry = retry.New(retry.DefaultPolicy(), nil)
	}
	if a.cacheTTL <= 0 {
		a.cacheTTL = 24 * time.Hour
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Acquire returns the content for sourceURL along the workflow's path
func (a *ContentAcquirer) Acquire(ctx context.Context, userID string, workflow types.Workflow, sourceURL string) (*AcquiredContent, error) {
	switch workflow.Source() {
	case types.SourceRepository:
		return a.fetchRepository(ctx, userID, workflow, sourceURL)
	default:
		return a.scrapePage(ctx, userID, workflow, sourceURL)
	}
}

func (a *ContentAcquirer) fetchRepository(ctx context.Context, userID string, workflow types.Workflow, sourceURL string) (*AcquiredContent, error) {
	logger := logging.FromContext(ctx).WithField("stage", "repo_fetch")

	owner, repo, err := adapter.ParseRepositoryURL(sourceURL)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(adapter.ErrInvalidRepositoryURL.Error())
	}

	start := a.now()
	var data *adapter.RepositoryData
	result := a.fetchRetry.Do(ctx, func(ctx context.Context, attempt int) error {
		d, err := a.repos.FetchRepository(ctx, owner, repo)
		if err != nil {
			return err
		}
		data = d
		return nil
	})

	a.record(ctx, userID, types.ActionFetch, workflow, start, result.LastError)
	if !result.Success {
		logger.WithError(result.LastError).WithField("attempts", result.Attempts).Error("Repository fetch failed")
		if errors.Is(result.LastError, adapter.ErrRepositoryNotFound) {
			return nil, apperrors.NewNotFoundError("repository", owner+"/"+repo)
		}
		return nil, apperrors.NewUpstreamError("github", result.Err())
	}

	logger.WithFields(map[string]interface{}{
		"repository": owner + "/" + repo,
		"attempts":   result.Attempts,
	}).Info("Repository fetched")

	return &AcquiredContent{
		Text:       data.Readme,
		Repository: data,
		Title:      data.Name,
	}, nil
}

func (a *ContentAcquirer) scrapePage(ctx context.Context, userID string, workflow types.Workflow, sourceURL string) (*AcquiredContent, error) {
	logger := logging.FromContext(ctx).WithField("stage", "scrape")

	start := a.now()
	entry, err := a.cache.Get(ctx, sourceURL, start)
	if err != nil {
		logger.WithError(err).Warn("Scrape cache lookup failed, scraping")
	} else if entry != nil {
		a.record(ctx, userID, types.ActionCacheHit, workflow, start, nil)
		logger.Debug("Scrape cache hit")
		return &AcquiredContent{
			Text:     entry.Content,
			Title:    ExtractTitle(entry.Content),
			CacheHit: true,
		}, nil
	}

	var content string
	result := a.scrapeRetry.Do(ctx, func(ctx context.Context, attempt int) error {
		c, err := a.scraper.Scrape(ctx, sourceURL)
		if err != nil {
			return err
		}
		content = c
		return nil
	})

	a.record(ctx, userID, types.ActionScrape, workflow, start, result.LastError)
	if !result.Success {
		logger.WithError(result.LastError).WithField("attempts", result.Attempts).Error("Scrape failed")
		return nil, apperrors.NewUpstreamError("firecrawl", result.Err())
	}

	cachedAt := a.now()
	upsertErr := a.cache.Upsert(ctx, &models.ScrapedCacheEntry{
		URL:       sourceURL,
		Content:   content,
		CachedAt:  cachedAt,
		ExpiresAt: cachedAt.Add(a.cacheTTL),
	})
	if upsertErr != nil {
		logger.WithError(upsertErr).Warn("Failed to update scrape cache")
	}

	logger.WithFields(map[string]interface{}{
		"attempts": result.Attempts,
		"length":   len(content),
	}).Info("Content scraped")

	return &AcquiredContent{
		Text:    content,
		Title:   ExtractTitle(content),
		Scraped: true,
		CostUSD: a.scrapeCost,
	}, nil
}

func (a *ContentAcquirer) record(ctx context.Context, userID string, action types.UsageAction, workflow types.Workflow, start time.Time, failure error) {
	if a.usage == nil {
		return
	}
	event := &models.UsageEvent{
		UserID:     userID,
		Action:     action,
		Workflow:   workflow,
		Success:    failure == nil,
		DurationMs: a.now().Sub(start).Milliseconds(),
	}
	if failure != nil {
		event.ErrorMessage = failure.Error()
	}
	if err := a.usage.Record(ctx, event); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to record usage event")
	}
}

// ExtractTitle derives a title from the first line of scraped markdown
func ExtractTitle(content string) string {
	first, _, _ := strings.Cut(content, "\n")
	title := strings.TrimSpace(strings.NewReplacer("#", "", "*", "").Replace(first))
	title = truncate(title, maxTitleLength)
	if title == "" {
		return untitledPost
	}
	return title
}
