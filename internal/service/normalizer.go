package service

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/caption-studio/internal/models"
	"github.com/caption-studio/internal/types"
)

const captionsParseError = "Failed to parse social media captions"

var (
	leadingFenceLine = regexp.MustCompile("^```.*\n")
	hashtagPattern   = regexp.MustCompile(`#\w+`)
	sectionBreak     = regexp.MustCompile(`\n\n[^\n]`)
	orderedMarker    = regexp.MustCompile(`^\d+\.`)
	listMarker       = regexp.MustCompile(`^(?:[-•]|\d+\.)\s*`)
	bulletMarker     = regexp.MustCompile(`^[-•]\s*`)
	dashSpaceMarker  = regexp.MustCompile(`^-\s+`)
	dashMarker       = regexp.MustCompile(`^-\s*`)
)

// CaptionsFallback is returned when captions output is not valid JSON
type CaptionsFallback struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// Definition is one term of the study notes
type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// StudyNotes is the structured notes output
type StudyNotes struct {
	Topic          string       `json:"topic"`
	KeyConcepts    []string     `json:"keyConcepts"`
	Definitions    []Definition `json:"definitions"`
	Examples       []string     `json:"examples"`
	RevisionPoints []string     `json:"revisionPoints"`
	RelatedTopics  []string     `json:"relatedTopics"`
}

// LinkedInPost is the structured LinkedIn output
type LinkedInPost struct {
	Text     string   `json:"text"`
	Hashtags []string `json:"hashtags"`
}

// TextOutput wraps raw text for workflows without a structured shape
type TextOutput struct {
	Text string `json:"text"`
}

// Normalize turns raw model text into the workflow's output shape. It never
// fails: malformed text degrades to a fallback that still carries the text.
func Normalize(workflow types.Workflow, raw string) interface{} {
	switch workflow {
	case types.WorkflowSocialMedia, types.WorkflowRepurpose:
		return normalizeCaptions(raw)
	case types.WorkflowResume:
		return normalizeResume(raw)
	case types.WorkflowGitHubReadme:
		return normalizeReadme(raw)
	case types.WorkflowNotes:
		return normalizeNotes(raw)
	case types.WorkflowLinkedIn:
		return normalizeLinkedIn(raw)
	default:
		return TextOutput{Text: strings.TrimSpace(raw)}
	}
}

// stripFence removes an opening fence line equal to opener and the closing fence
func stripFence(s, opener string) string {
	s = strings.TrimPrefix(s, opener+"\n")
	return strings.TrimSuffix(s, "\n```")
}

// stripAnyFence removes a leading fence line with any info string and the closing fence
func stripAnyFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = leadingFenceLine.ReplaceAllString(s, "")
	return strings.TrimSuffix(s, "\n```")
}

func normalizeCaptions(raw string) interface{} {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "```json") {
		clean = stripFence(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = stripFence(clean, "```")
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil || parsed == nil {
		return CaptionsFallback{Error: captionsParseError, Raw: raw}
	}
	return parsed
}

func normalizeResume(raw string) []string {
	clean := stripAnyFence(strings.TrimSpace(raw))

	bullets := []string{}
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		line = dashSpaceMarker.ReplaceAllString(line, "")
		bullets = append(bullets, dashMarker.ReplaceAllString(line, ""))
	}
	return bullets
}

func normalizeReadme(raw string) string {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "```markdown") {
		return stripFence(clean, "```markdown")
	}
	if strings.HasPrefix(clean, "```") {
		return stripFence(clean, "```")
	}
	return clean
}

func normalizeNotes(raw string) StudyNotes {
	notes := stripAnyFence(strings.TrimSpace(raw))
	return StudyNotes{
		Topic:          extractSection(notes, notesTopicHeader),
		KeyConcepts:    extractList(notes, notesConceptsHeader),
		Definitions:    extractDefinitions(notes, notesDefinitionsHeader),
		Examples:       extractList(notes, notesExamplesHeader),
		RevisionPoints: extractList(notes, notesRevisionHeader),
		RelatedTopics:  extractList(notes, notesRelatedHeader),
	}
}

func normalizeLinkedIn(raw string) LinkedInPost {
	post := stripAnyFence(strings.TrimSpace(raw))
	hashtags := hashtagPattern.FindAllString(post, -1)
	if hashtags == nil {
		hashtags = []string{}
	}
	return LinkedInPost{
		Text:     strings.TrimSpace(hashtagPattern.ReplaceAllString(post, "")),
		Hashtags: hashtags,
	}
}

func extractSection(text, header string) string {
	_, after, found := strings.Cut(text, header)
	if !found {
		return "Untitled Topic"
	}
	line, _, _ := strings.Cut(strings.TrimLeftFunc(after, unicode.IsSpace), "\n")
	return strings.TrimSpace(line)
}

// sectionBody returns the text after header up to the next blank-line break
func sectionBody(text, header string) (string, bool) {
	parts := strings.SplitN(text, header, 3)
	if len(parts) < 2 {
		return "", false
	}
	body := parts[1]
	if loc := sectionBreak.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}
	return body, body != ""
}

func extractList(text, header string) []string {
	items := []string{}
	body, ok := sectionBody(text, header)
	if !ok {
		return items
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") && !orderedMarker.MatchString(line) {
			continue
		}
		items = append(items, listMarker.ReplaceAllString(line, ""))
	}
	return items
}

func extractDefinitions(text, header string) []Definition {
	defs := []Definition{}
	body, ok := sectionBody(text, header)
	if !ok {
		return defs
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, ":") {
			continue
		}
		parts := strings.Split(bulletMarker.ReplaceAllString(line, ""), ":")
		defs = append(defs, Definition{
			Term:       strings.TrimSpace(parts[0]),
			Definition: strings.TrimSpace(strings.Join(parts[1:], ":")),
		})
	}
	return defs
}

// ExtractCaptions maps captions output onto the per-platform columns. Each
// platform value may be a string or an object with a "text" field. Outputs of
// other workflows yield empty captions.
func ExtractCaptions(workflow types.Workflow, output interface{}) models.Captions {
	var captions models.Captions
	if workflow != types.WorkflowSocialMedia && workflow != types.WorkflowRepurpose {
		return captions
	}
	obj, ok := output.(map[string]interface{})
	if !ok {
		return captions
	}

	captions.Instagram = captionText(obj["instagram"])
	captions.Twitter = captionText(obj["twitter"])
	captions.LinkedIn = captionText(obj["linkedin"])
	captions.Facebook = captionText(obj["facebook"])
	captions.Newsletter = captionText(obj["newsletter"])
	captions.Blog = captionText(obj["blog"])
	return captions
}

func captionText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if s, ok := t["text"].(string); ok {
			return s
		}
	}
	return ""
}
