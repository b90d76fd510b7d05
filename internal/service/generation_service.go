package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/caption-studio/internal/errors"
	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/ratelimit"
	"github.com/caption-studio/internal/types"
)

// MaxSourceURLLength bounds the submitted URL
const MaxSourceURLLength = 2048

// SubmitInput is one generation request from an authenticated caller
type SubmitInput struct {
	ExternalID string
	Email      string
	URL        string
	Workflow   string
}

// SubmitResult is returned to the caller after a successful generation
type SubmitResult struct {
	GenerationID      *string        `json:"generation_id"`
	Workflow          types.Workflow `json:"workflow"`
	Title             string         `json:"title"`
	Output            interface{}    `json:"output"`
	RequestsRemaining int            `json:"requests_remaining"`
	CacheHit          bool           `json:"cache_hit"`
	Model             string         `json:"model"`
	Ledger            LedgerOutcome  `json:"-"`
}

// GenerationService runs the generation pipeline: limiter, user resolution,
// credit check, content acquisition, model call, normalization and ledger.
type GenerationService struct {
	gate     *ratelimit.Gate
	resolver *UserResolver
	acquirer *ContentAcquirer
	engine   *GenerationEngine
	ledger   *Ledger
	usage    UsageRecorder
	monitor  *PipelineMonitor
	now      func() time.Time
}

// NewGenerationService creates a generation service. gate, usage and monitor may be nil.
func NewGenerationService(
	gate *ratelimit.Gate,
	resolver *UserResolver,
	acquirer *ContentAcquirer,
	engine *GenerationEngine,
	ledger *Ledger,
	usage UsageRecorder,
	monitor *PipelineMonitor,
) *GenerationService {
	return &GenerationService{
		gate:     gate,
		resolver: resolver,
		acquirer: acquirer,
		engine:   engine,
		ledger:   ledger,
		usage:    usage,
		monitor:  monitor,
		now:      time.Now,
	}
}

// ValidateSourceURL checks that raw is an absolute http(s) URL within the length limit
func ValidateSourceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperrors.NewInvalidParameterError("url", "is required")
	}
	if len(raw) > MaxSourceURLLength {
		return apperrors.NewInvalidParameterError("url", "must be at most 2048 characters")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperrors.NewInvalidParameterError("url", "must be a valid http or https URL")
	}
	return nil
}

// Submit runs one generation. Input, rate limit and credit errors stop the
// pipeline before any upstream call. Ledger failures never fail the request.
func (s *GenerationService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	workflow, err := types.ParseWorkflow(in.Workflow)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("workflow", err.Error())
	}
	sourceURL := strings.TrimSpace(in.URL)
	if err := ValidateSourceURL(sourceURL); err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"workflow":   string(workflow),
		"externalId": in.ExternalID,
	})
	ctx = logging.WithLogger(ctx, logger)

	if decision := s.gate.AllowGeneration(ctx, in.ExternalID); !decision.Allowed {
		return nil, apperrors.NewRateLimitError("generation", decision.RetryAfter(s.now()))
	}

	user, err := s.resolver.Resolve(ctx, in.ExternalID, in.Email)
	if err != nil {
		return nil, apperrors.NewDatabaseError("resolve user", err)
	}
	logger = logger.WithField("userId", user.ID)
	ctx = logging.WithLogger(ctx, logger)

	if !user.HasCredits() {
		logger.Info("Credits exhausted, rejecting generation")
		return nil, apperrors.NewCreditsExhaustedError(user.CreditsRemaining)
	}

	pipelineStart := s.now()
	content, err := s.acquirer.Acquire(ctx, user.ID, workflow, sourceURL)
	if err != nil {
		s.monitor.RecordFailure()
		s.recordAPIError(ctx, user.ID, workflow, err)
		return nil, err
	}

	prompt, err := BuildPrompt(workflow, content)
	if err != nil {
		s.recordAPIError(ctx, user.ID, workflow, err)
		return nil, apperrors.NewInternalError("failed to build prompt", err)
	}

	start := s.now()
	out, err := s.engine.Generate(ctx, prompt)
	s.recordUsage(ctx, &models.UsageEvent{
		UserID:     user.ID,
		Action:     types.ActionGenerate,
		Workflow:   workflow,
		Success:    err == nil,
		DurationMs: s.now().Sub(start).Milliseconds(),
	}, err)
	if err != nil {
		s.monitor.RecordFailure()
		s.recordAPIError(ctx, user.ID, workflow, err)
		return nil, apperrors.NewUpstreamError("gemini", err)
	}

	output := Normalize(workflow, out.Text)
	payload, err := json.Marshal(output)
	if err != nil {
		logger.WithError(err).Warn("Failed to encode normalized output, storing raw text")
		output = TextOutput{Text: out.Text}
		payload, _ = json.Marshal(output)
	}

	outcome := s.ledger.Record(ctx, user, &models.Generation{
		SourceURL:     sourceURL,
		Title:         content.Title,
		Workflow:      workflow,
		Output:        payload,
		Captions:      ExtractCaptions(workflow, output),
		Model:         out.Model,
		TokensUsed:    out.Tokens,
		ScrapeCostUSD: content.CostUSD,
		ModelCostUSD:  out.CostUSD,
	})
	if !outcome.GenerationWritten || !outcome.CreditsUpdated {
		logger.WithFields(map[string]interface{}{
			"generationWritten": outcome.GenerationWritten,
			"creditsUpdated":    outcome.CreditsUpdated,
		}).Warn("Generation delivered with incomplete bookkeeping")
	}

	s.monitor.RecordGeneration(s.now().Sub(pipelineStart), content.CacheHit)

	remaining := types.UnlimitedRemaining
	if user.Metered() {
		remaining = outcome.CreditsRemaining
	}

	return &SubmitResult{
		GenerationID:      outcome.GenerationID,
		Workflow:          workflow,
		Title:             content.Title,
		Output:            output,
		RequestsRemaining: remaining,
		CacheHit:          content.CacheHit,
		Model:             out.Model,
		Ledger:            outcome,
	}, nil
}

func (s *GenerationService) recordAPIError(ctx context.Context, userID string, workflow types.Workflow, cause error) {
	s.recordUsage(ctx, &models.UsageEvent{
		UserID:   userID,
		Action:   types.ActionAPIError,
		Workflow: workflow,
	}, cause)
}

func (s *GenerationService) recordUsage(ctx context.Context, event *models.UsageEvent, cause error) {
	if s.usage == nil {
		return
	}
	if cause != nil {
		event.Success = false
		event.ErrorMessage = cause.Error()
	}
	if err := s.usage.Record(ctx, event); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to record usage event")
	}
}
