package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/caption-studio/internal/retry"
)

func TestFirecrawlScrape(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      string
		wantErr   error
		permanent bool
	}{
		{"markdown", 200, `{"success":true,"data":{"markdown":"# Post","content":"plain"}}`, "# Post", nil, false},
		{"content fallback", 200, `{"success":true,"data":{"content":"plain"}}`, "plain", nil, false},
		{"empty", 200, `{"success":true,"data":{}}`, "", ErrEmptyContent, true},
		{"server error", 502, `bad gateway`, "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got firecrawlRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/scrape", r.URL.Path)
				assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewFirecrawlClient(FirecrawlConfig{APIKey: "fc-key", BaseURL: srv.URL})
			content, err := client.Scrape(context.Background(), "https://blog.example/post")

			assert.Equal(t, "https://blog.example/post", got.URL)
			assert.Equal(t, []string{"markdown"}, got.Formats)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.permanent, retry.IsPermanent(err))
			case tt.status >= 300:
				require.Error(t, err)
				assert.Equal(t, tt.status, StatusCode(err))
				assert.False(t, retry.IsPermanent(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, content)
			}
		})
	}
}

func TestFirecrawlTimeoutPerAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewFirecrawlClient(FirecrawlConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Scrape(context.Background(), "https://blog.example/post")
	require.Error(t, err)
	assert.False(t, retry.IsPermanent(err))
}

func TestParseRepositoryURL(t *testing.T) {
	tests := []struct {
		raw   string
		owner string
		repo  string
		err   bool
	}{
		{"https://github.com/golang/go", "golang", "go", false},
		{"https://github.com/hibiken/asynq.git", "hibiken", "asynq", false},
		{"github.com/a/b/tree/main", "a", "b", false},
		{"https://github.com/golang/go?tab=readme-ov-file", "golang", "go", false},
		{"https://github.com/golang/go#readme", "golang", "go", false},
		{"https://github.com/hibiken/asynq.git?ref=main", "hibiken", "asynq", false},
		{"https://github.com/owner?tab=repositories", "", "", true},
		{"https://github.com/onlyowner", "", "", true},
		{"https://gitlab.com/a/b", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			owner, repo, err := ParseRepositoryURL(tt.raw)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidRepositoryURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestGitHubFetchRepository(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, githubAPIVersion, r.Header.Get("X-GitHub-Api-Version"))
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/repos/octo/widget":
			assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
			w.Write([]byte(`{"name":"widget","description":null,"stargazers_count":42,"forks_count":7,
				"language":"Go","topics":["cli"],"html_url":"https://github.com/octo/widget","owner":{"login":"octo"}}`))
		case "/repos/octo/widget/readme":
			assert.Equal(t, "application/vnd.github.raw", r.Header.Get("Accept"))
			w.Write([]byte("# Widget"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewGitHubClient(GitHubConfig{Token: "gh-token", BaseURL: srv.URL})
	data, err := client.FetchRepository(context.Background(), "octo", "widget")
	require.NoError(t, err)

	assert.Equal(t, &RepositoryData{
		Name:        "widget",
		Description: defaultDescription,
		Stars:       42,
		Forks:       7,
		Language:    "Go",
		Topics:      []string{"cli"},
		Readme:      "# Widget",
		Owner:       "octo",
		URL:         "https://github.com/octo/widget",
	}, data)
}

func TestGitHubMissingReadmeAndDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/octo/bare" {
			w.Write([]byte(`{"name":"bare","owner":{"login":"octo"}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	data, err := NewGitHubClient(GitHubConfig{BaseURL: srv.URL}).FetchRepository(context.Background(), "octo", "bare")
	require.NoError(t, err)
	assert.Equal(t, defaultReadme, data.Readme)
	assert.Equal(t, defaultLanguage, data.Language)
	assert.Equal(t, []string{}, data.Topics)
}

func TestGitHubNotFoundIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewGitHubClient(GitHubConfig{BaseURL: srv.URL}).FetchRepository(context.Background(), "octo", "gone")
	assert.ErrorIs(t, err, ErrRepositoryNotFound)
	assert.True(t, retry.IsPermanent(err))
}

func TestGitHubServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewGitHubClient(GitHubConfig{BaseURL: srv.URL}).FetchRepository(context.Background(), "octo", "widget")
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.False(t, retry.IsPermanent(err))
}

type fakeGenerator struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	prompt string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(text string, tokens int32) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: tokens},
	}
}

func TestGeminiModelGenerate(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("hello", 120)}
	model := &GeminiModel{models: gen, name: "gemini-2.5-flash"}

	out, err := model.Generate(context.Background(), "write a caption")
	require.NoError(t, err)
	assert.Equal(t, &ModelOutput{Text: "hello", Tokens: 120, Model: "gemini-2.5-flash"}, out)
	assert.Equal(t, "gemini-2.5-flash", gen.model)
	assert.Equal(t, "write a caption", gen.prompt)
}

func TestGeminiModelErrors(t *testing.T) {
	empty := &GeminiModel{models: &fakeGenerator{resp: textResponse("  ", 3)}, name: "m"}
	_, err := empty.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrEmptyOutput)

	upstream := errors.New("quota exceeded")
	failing := &GeminiModel{models: &fakeGenerator{err: upstream}, name: "m"}
	_, err = failing.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, upstream)
}
