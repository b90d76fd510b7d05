package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/caption-studio/internal/ratelimit"
	"github.com/caption-studio/internal/retry"
)

const (
	defaultDescription = "No description provided"
	defaultLanguage    = "Not specified"
	defaultReadme      = "No README found"

	githubAPIVersion = "2022-11-28"
)

var repositoryURLPattern = regexp.MustCompile(`github\.com/([^/?#]+)/([^/?#]+)`)

// RepositoryData is the repository metadata used to build prompts
type RepositoryData struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Stars       int      `json:"stars"`
	Forks       int      `json:"forks"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Readme      string   `json:"readme"`
	Owner       string   `json:"owner"`
	URL         string   `json:"url"`
}

// ParseRepositoryURL extracts owner and repository name from a GitHub URL.
func ParseRepositoryURL(raw string) (owner, repo string, err error) {
	match := repositoryURLPattern.FindStringSubmatch(raw)
	if match == nil {
		return "", "", ErrInvalidRepositoryURL
	}
	owner = match[1]
	repo = strings.TrimSuffix(match[2], ".git")
	if owner == "" || repo == "" {
		return "", "", ErrInvalidRepositoryURL
	}
	return owner, repo, nil
}

// GitHubConfig configures the repository API client
type GitHubConfig struct {
	Token      string
	BaseURL    string
	Timeout    time.Duration // per attempt, covering both calls
	HTTPClient *http.Client
	Pacer      *ratelimit.Pacer
}

// GitHubClient reads public repository metadata and README content
type GitHubClient struct {
	token   string
	baseURL string
	timeout time.Duration
	client  *http.Client
	pacer   *ratelimit.Pacer
	host    string
}

// NewGitHubClient creates a new GitHub REST client
func NewGitHubClient(cfg GitHubConfig) *GitHubClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &GitHubClient{
		token:   cfg.Token,
		baseURL: baseURL,
		timeout: timeout,
		client:  client,
		pacer:   cfg.Pacer,
		host:    host,
	}
}

type githubRepository struct {
	Name            string   `json:"name"`
	Description     *string  `json:"description"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	Language        *string  `json:"language"`
	Topics          []string `json:"topics"`
	HTMLURL         string   `json:"html_url"`
	Owner           struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// FetchRepository performs one attempt at reading repository metadata and
// its README. A missing repository is a permanent error.
func (c *GitHubClient) FetchRepository(ctx context.Context, owner, repo string) (*RepositoryData, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))

	resp, err := c.get(ctx, path, "application/vnd.github+json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, retry.Permanent(ErrRepositoryNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError("github", resp)
	}

	var raw githubRepository
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode repository: %w", err)
	}

	readme, err := c.fetchReadme(ctx, path)
	if err != nil {
		return nil, err
	}

	data := &RepositoryData{
		Name:        raw.Name,
		Description: defaultDescription,
		Stars:       raw.StargazersCount,
		Forks:       raw.ForksCount,
		Language:    defaultLanguage,
		Topics:      raw.Topics,
		Readme:      readme,
		Owner:       raw.Owner.Login,
		URL:         raw.HTMLURL,
	}
	if raw.Description != nil && *raw.Description != "" {
		data.Description = *raw.Description
	}
	if raw.Language != nil && *raw.Language != "" {
		data.Language = *raw.Language
	}
	if data.Topics == nil {
		data.Topics = []string{}
	}
	return data, nil
}

// fetchReadme returns the raw README, or a placeholder when the repository has none.
func (c *GitHubClient) fetchReadme(ctx context.Context, repoPath string) (string, error) {
	resp, err := c.get(ctx, repoPath+"/readme", "application/vnd.github.raw")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return defaultReadme, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read README: %w", err)
	}
	return string(body), nil
}

func (c *GitHubClient) get(ctx context.Context, path, accept string) (*http.Response, error) {
	if err := c.pacer.Wait(ctx, c.host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request failed: %w", err)
	}
	return resp, nil
}
