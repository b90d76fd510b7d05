package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/caption-studio/internal/logging"
	"github.com/caption-studio/internal/ratelimit"
	"github.com/caption-studio/internal/retry"
)

// FirecrawlConfig configures the scraping API client
type FirecrawlConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration // per attempt
	HTTPClient *http.Client
	Pacer      *ratelimit.Pacer
}

// FirecrawlClient turns a public page into markdown through the Firecrawl API
type FirecrawlClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	pacer   *ratelimit.Pacer
	host    string
}

// NewFirecrawlClient creates a new Firecrawl client
func NewFirecrawlClient(cfg FirecrawlConfig) *FirecrawlClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &FirecrawlClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		timeout: timeout,
		client:  client,
		pacer:   cfg.Pacer,
		host:    host,
	}
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Content  string `json:"content"`
	} `json:"data"`
}

// Scrape performs one scrape attempt bounded by the configured timeout.
// Empty content is returned as a permanent error; everything else may be retried.
func (c *FirecrawlClient) Scrape(ctx context.Context, pageURL string) (string, error) {
	if err := c.pacer.Wait(ctx, c.host); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(firecrawlRequest{URL: pageURL, Formats: []string{"markdown"}})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to encode scrape request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("firecrawl request failed: %w", err)
	}
	defer resp.Body.Close()

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"provider":   "firecrawl",
		"status":     resp.StatusCode,
		"durationMs": time.Since(start).Milliseconds(),
	}).Debug("Scrape response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newStatusError("firecrawl", resp)
	}

	var result firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode firecrawl response: %w", err)
	}

	content := result.Data.Markdown
	if content == "" {
		content = result.Data.Content
	}
	if content == "" {
		return "", retry.Permanent(ErrEmptyContent)
	}
	return content, nil
}
