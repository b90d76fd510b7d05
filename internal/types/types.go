// Package types provides common type definitions for the caption studio service.
package types

import (
	"fmt"
	"strings"
)

// Workflow is a content generation mode. Each workflow has its own prompt
// template and output shape.
type Workflow string

const (
	// WorkflowSocialMedia produces captions for several platforms as JSON
	WorkflowSocialMedia Workflow = "social_media"
	// WorkflowGitHubReadme produces a README.md for a public repository
	WorkflowGitHubReadme Workflow = "github_readme"
	// WorkflowResume produces resume bullet points for a public repository
	WorkflowResume Workflow = "resume"
	// WorkflowNotes produces sectioned study notes
	WorkflowNotes Workflow = "notes"
	// WorkflowLinkedIn produces a LinkedIn post with hashtags
	WorkflowLinkedIn Workflow = "linkedin"
	// WorkflowRepurpose produces multi-platform captions from an article
	WorkflowRepurpose Workflow = "repurpose"
)

// AllWorkflows lists every workflow in display order
var AllWorkflows = []Workflow{
	WorkflowSocialMedia,
	WorkflowGitHubReadme,
	WorkflowResume,
	WorkflowNotes,
	WorkflowLinkedIn,
	WorkflowRepurpose,
}

// ContentSource selects how the raw content for a workflow is obtained
type ContentSource string

const (
	// SourceScrape reads the page through the scrape cache and scraping API
	SourceScrape ContentSource = "scrape"
	// SourceRepository reads structured metadata from the repository API
	SourceRepository ContentSource = "repository"
)

// ParseWorkflow validates a workflow identifier
func ParseWorkflow(s string) (Workflow, error) {
	w := Workflow(strings.TrimSpace(s))
	if w.Valid() {
		return w, nil
	}
	return "", fmt.Errorf("unsupported workflow %q", s)
}

// Valid reports whether w is one of the known workflows
func (w Workflow) Valid() bool {
	switch w {
	case WorkflowSocialMedia, WorkflowGitHubReadme, WorkflowResume,
		WorkflowNotes, WorkflowLinkedIn, WorkflowRepurpose:
		return true
	}
	return false
}

// Source returns the content path for the workflow
func (w Workflow) Source() ContentSource {
	switch w {
	case WorkflowGitHubReadme, WorkflowResume:
		return SourceRepository
	default:
		return SourceScrape
	}
}

// DisplayName returns the human readable workflow name
func (w Workflow) DisplayName() string {
	switch w {
	case WorkflowSocialMedia:
		return "Social Media Captions"
	case WorkflowGitHubReadme:
		return "GitHub README"
	case WorkflowResume:
		return "Resume Bullets"
	case WorkflowNotes:
		return "Study Notes"
	case WorkflowLinkedIn:
		return "LinkedIn Post"
	case WorkflowRepurpose:
		return "Content Repurpose"
	default:
		return "Generation"
	}
}

// Plan is a user's subscription tier
type Plan string

const (
	PlanFree      Plan = "free"
	PlanPremium   Plan = "premium"
	PlanPro       Plan = "pro"
	PlanUnlimited Plan = "unlimited"
)

// Metered reports whether generations on this plan consume credits
func (p Plan) Metered() bool {
	return p == PlanFree || p == ""
}

// UnlimitedRemaining is reported as requests_remaining for unmetered users
const UnlimitedRemaining = 999999

// CreditsPerGeneration is the cost charged for one successful generation
const CreditsPerGeneration = 1

// UsageAction is the kind of a usage event
type UsageAction string

const (
	ActionCacheHit UsageAction = "cache_hit"
	ActionScrape   UsageAction = "scrape"
	ActionFetch    UsageAction = "repo_fetch"
	ActionGenerate UsageAction = "generate"
	ActionAPIError UsageAction = "api_error"
)
