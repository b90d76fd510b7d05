package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caption-studio/internal/adapter"
	"github.com/caption-studio/internal/circuitbreaker"
	"github.com/caption-studio/internal/logging"
)

// ErrNoModels is returned when the engine has no model to call
var ErrNoModels = errors.New("no generative models configured")

// EngineOutput is the result of a successful generation
type EngineOutput struct {
	Text     string
	Tokens   int
	Model    string
	CostUSD  float64
	Attempts int
}

// EngineConfig configures the generation engine
type EngineConfig struct {
	// Models is the fallback chain, tried in order with no delay between stages.
	Models       []adapter.Model
	Breakers     *circuitbreaker.Registry
	Timeout      time.Duration // per model call
	CostPerToken float64
}

// GenerationEngine invokes the model chain until one stage produces text
type GenerationEngine struct {
	models       []adapter.Model
	breakers     *circuitbreaker.Registry
	timeout      time.Duration
	costPerToken float64
}

// NewGenerationEngine creates an engine
func NewGenerationEngine(cfg EngineConfig) *GenerationEngine {
	return &GenerationEngine{
		models:       cfg.Models,
		breakers:     cfg.Breakers,
		timeout:      cfg.Timeout,
		costPerToken: cfg.CostPerToken,
	}
}

// Generate sends prompt to each model in turn and returns the first success.
// Every stage receives the identical prompt; the last stage's error is final.
func (e *GenerationEngine) Generate(ctx context.Context, prompt string) (*EngineOutput, error) {
	if len(e.models) == 0 {
		return nil, ErrNoModels
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt is empty")
	}

	logger := logging.FromContext(ctx).WithField("stage", "generate")

	var lastErr error
	for i, model := range e.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := e.call(ctx, model, prompt)
		if err == nil {
			logger.WithFields(map[string]interface{}{
				"model":      out.Model,
				"tokenCount": out.Tokens,
				"attempt":    i + 1,
			}).Info("Generation succeeded")

			return &EngineOutput{
				Text:     out.Text,
				Tokens:   out.Tokens,
				Model:    out.Model,
				CostUSD:  float64(out.Tokens) * e.costPerToken,
				Attempts: i + 1,
			}, nil
		}

		lastErr = err
		if i < len(e.models)-1 {
			logger.WithError(err).WithFields(map[string]interface{}{
				"model": model.Name(),
				"next":  e.models[i+1].Name(),
			}).Warn("Model failed, falling back")
		}
	}

	logger.WithError(lastErr).WithField("attempts", len(e.models)).Error("All models failed")
	return nil, fmt.Errorf("generation failed after %d models: %w", len(e.models), lastErr)
}

// call runs one stage. The per-call deadline is created inside the breaker so
// a model that hangs past it counts as a failure; only the caller's own
// cancellation is left uncounted.
func (e *GenerationEngine) call(ctx context.Context, model adapter.Model, prompt string) (*adapter.ModelOutput, error) {
	var out *adapter.ModelOutput
	run := func(ctx context.Context) error {
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		o, err := model.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		if o == nil || strings.TrimSpace(o.Text) == "" {
			return fmt.Errorf("%s: %w", model.Name(), adapter.ErrEmptyOutput)
		}
		out = o
		return nil
	}

	var err error
	if e.breakers == nil {
		err = run(ctx)
	} else {
		err = e.breakers.Get(model.Name()).Execute(ctx, run)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BreakerStats reports the state of every model breaker
func (e *GenerationEngine) BreakerStats() map[string]circuitbreaker.Stats {
	if e.breakers == nil {
		return nil
	}
	return e.breakers.Stats()
}
