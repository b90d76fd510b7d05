package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caption-studio/internal/adapter"
	"github.com/caption-studio/internal/types"
)

func testRepository() *adapter.RepositoryData {
	return &adapter.RepositoryData{
		Name:        "caption-kit",
		Description: "Turns posts into captions",
		Stars:       42,
		Forks:       7,
		Language:    "Go",
		Topics:      []string{"ai", "social"},
		Readme:      strings.Repeat("r", 5000),
		Owner:       "octo",
		URL:         "https://github.com/octo/caption-kit",
	}
}

func TestBuildPrompt_Readme(t *testing.T) {
	prompt, err := BuildPrompt(types.WorkflowGitHubReadme, &AcquiredContent{Repository: testRepository()})
	require.NoError(t, err)

	assert.Contains(t, prompt, "- Name: caption-kit")
	assert.Contains(t, prompt, "- Topics/Tags: ai, social")
	assert.Contains(t, prompt, "git clone https://github.com/octo/caption-kit")
	assert.Contains(t, prompt, "\n"+strings.Repeat("r", readmeExcerptLimit)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("r", readmeExcerptLimit+1))
}

func TestBuildPrompt_ResumeExcerpt(t *testing.T) {
	prompt, err := BuildPrompt(types.WorkflowResume, &AcquiredContent{Repository: testRepository()})
	require.NoError(t, err)

	assert.Contains(t, prompt, "- Forks: 7")
	assert.Contains(t, prompt, "README excerpt")
	assert.NotContains(t, prompt, strings.Repeat("r", resumeExcerptLimit+1))
}

func TestBuildPrompt_ResumeWithoutReadme(t *testing.T) {
	repo := testRepository()
	repo.Readme = ""

	prompt, err := BuildPrompt(types.WorkflowResume, &AcquiredContent{Repository: repo})
	require.NoError(t, err)
	assert.NotContains(t, prompt, "README excerpt")
}

func TestBuildPrompt_RepositoryRequired(t *testing.T) {
	for _, w := range []types.Workflow{types.WorkflowGitHubReadme, types.WorkflowResume} {
		_, err := BuildPrompt(w, &AcquiredContent{Text: "body"})
		assert.Error(t, err, w)
	}
}

func TestBuildPrompt_TextWorkflowsTruncate(t *testing.T) {
	body := strings.Repeat("é", 40000)

	tests := []struct {
		workflow types.Workflow
		limit    int
		marker   string
	}{
		{types.WorkflowNotes, notesContentLimit, notesTopicHeader},
		{types.WorkflowLinkedIn, linkedInContentLimit, "STUDENT CONTEXT"},
		{types.WorkflowSocialMedia, captionsContentLimit, "instagram, linkedin, twitter, facebook"},
		{types.WorkflowRepurpose, articleContentLimit, `"newsletter": "string`},
	}

	for _, tt := range tests {
		t.Run(string(tt.workflow), func(t *testing.T) {
			prompt, err := BuildPrompt(tt.workflow, &AcquiredContent{Text: body})
			require.NoError(t, err)
			assert.Contains(t, prompt, tt.marker)
			assert.Contains(t, prompt, strings.Repeat("é", tt.limit))
			assert.NotContains(t, prompt, strings.Repeat("é", tt.limit+1))
		})
	}
}

func TestBuildPrompt_RepurposeChannels(t *testing.T) {
	prompt, err := BuildPrompt(types.WorkflowRepurpose, &AcquiredContent{Text: "article body"})
	require.NoError(t, err)

	social, err := BuildPrompt(types.WorkflowSocialMedia, &AcquiredContent{Text: "article body"})
	require.NoError(t, err)
	assert.NotEqual(t, social, prompt)

	assert.Contains(t, prompt, "into 5 distinct pieces")
	for _, channel := range RepurposeChannels {
		assert.Contains(t, prompt, `"`+channel+`": "string`, channel)
	}
	assert.NotContains(t, prompt, "instagram")
	assert.True(t, strings.HasSuffix(prompt, "Article Content:\narticle body"))
}

func TestBuildPrompt_Errors(t *testing.T) {
	_, err := BuildPrompt(types.WorkflowNotes, nil)
	assert.Error(t, err)

	_, err = BuildPrompt(types.Workflow("poetry"), &AcquiredContent{Text: "x"})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", truncate("abc", 0))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "日本", truncate("日本語", 2))
}
