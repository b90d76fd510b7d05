package adapter

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ModelOutput is the raw text and token usage of one model call
type ModelOutput struct {
	Text   string
	Tokens int
	Model  string
}

// Model is one stage of the generation fallback chain
type Model interface {
	Name() string
	Generate(ctx context.Context, prompt string) (*ModelOutput, error)
}

// contentGenerator is the subset of the genai models service used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiModel calls a single named Gemini model
type GeminiModel struct {
	models contentGenerator
	name   string
}

// NewGeminiClient creates a Gemini API client
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiModels returns one Model per name, in order
func NewGeminiModels(client *genai.Client, names []string) []Model {
	models := make([]Model, 0, len(names))
	for _, name := range names {
		models = append(models, &GeminiModel{models: client.Models, name: name})
	}
	return models
}

// Name returns the model identifier
func (m *GeminiModel) Name() string {
	return m.name
}

// Generate sends prompt as a single user turn
func (m *GeminiModel) Generate(ctx context.Context, prompt string) (*ModelOutput, error) {
	resp, err := m.models.GenerateContent(ctx, m.name, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.name, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", m.name, ErrEmptyOutput)
	}

	out := &ModelOutput{Text: text, Model: m.name}
	if resp.UsageMetadata != nil {
		out.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}
