package service

import (
	"fmt"
	"strings"

	"github.com/caption-studio/internal/adapter"
	"github.com/caption-studio/internal/types"
)

// Content limits per template, in characters
const (
	readmeExcerptLimit   = 1000
	resumeExcerptLimit   = 800
	notesContentLimit    = 3500
	linkedInContentLimit = 2500
	captionsContentLimit = 2000
	articleContentLimit  = 30000
)

// Notes section headers. The notes prompt asks for them and the notes
// normalizer splits on them, so both must stay in sync.
const (
	notesTopicHeader       = "📌 Topic:"
	notesConceptsHeader    = "🎯 Key Concepts:"
	notesDefinitionsHeader = "📖 Important Definitions:"
	notesExamplesHeader    = "💡 Examples & Use Cases:"
	notesRevisionHeader    = "⚡ Quick Revision Points:"
	notesRelatedHeader     = "🔗 Related Topics to Explore:"
)

// CaptionPlatforms are the platforms requested from the captions template
var CaptionPlatforms = []string{"instagram", "linkedin", "twitter", "facebook"}

// RepurposeChannels are the pieces an article is repurposed into
var RepurposeChannels = []string{"linkedin", "twitter", "facebook", "newsletter", "blog"}

// BuildPrompt selects the workflow's template and fills it with the acquired
// content. Repository workflows require content.Repository.
func BuildPrompt(workflow types.Workflow, content *AcquiredContent) (string, error) {
	if content == nil {
		return "", fmt.Errorf("no content to build a prompt from")
	}

	switch workflow {
	case types.WorkflowGitHubReadme:
		if content.Repository == nil {
			return "", fmt.Errorf("workflow %s requires repository data", workflow)
		}
		return readmePrompt(content.Repository), nil
	case types.WorkflowResume:
		if content.Repository == nil {
			return "", fmt.Errorf("workflow %s requires repository data", workflow)
		}
		return resumePrompt(content.Repository), nil
	case types.WorkflowNotes:
		return notesPrompt(content.Text), nil
	case types.WorkflowLinkedIn:
		return linkedInPrompt(content.Text), nil
	case types.WorkflowSocialMedia:
		return captionsPrompt(content.Text, CaptionPlatforms), nil
	case types.WorkflowRepurpose:
		return repurposePrompt(content.Text), nil
	default:
		return "", fmt.Errorf("unsupported workflow %q", workflow)
	}
}

// truncate returns at most n runes of s
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func readmeSection(label string, readme string, limit int) string {
	if readme == "" {
		return ""
	}
	return fmt.Sprintf("\n- %s:\n%s", label, truncate(readme, limit))
}

func readmePrompt(repo *adapter.RepositoryData) string {
	var b strings.Builder
	b.WriteString("You are a technical documentation expert. Generate a professional GitHub README.md file for this project.\n\n")
	b.WriteString("PROJECT INFORMATION:\n")
	fmt.Fprintf(&b, "- Name: %s\n", repo.Name)
	fmt.Fprintf(&b, "- Description: %s\n", repo.Description)
	fmt.Fprintf(&b, "- Primary Language: %s\n", repo.Language)
	fmt.Fprintf(&b, "- Topics/Tags: %s\n", strings.Join(repo.Topics, ", "))
	fmt.Fprintf(&b, "- Stars: %d\n", repo.Stars)
	fmt.Fprintf(&b, "- Repository URL: %s\n", repo.URL)
	b.WriteString(readmeSection("Existing README (for reference)", repo.Readme, readmeExcerptLimit))
	b.WriteString(`

Generate a complete, professional README.md with these sections:

# [Project Name]
[One-line description]

## 🚀 Features
- Feature 1
- Feature 2
- Feature 3
- Feature 4

## 🛠️ Tech Stack
- Technology 1
- Technology 2
- Technology 3

## 📦 Installation

` + "```bash" + `
# Installation commands
git clone ` + repo.URL + `
cd ` + repo.Name + `
npm install
` + "```" + `

## 💻 Usage

` + "```bash" + `
# Usage commands
npm start
` + "```" + `

## 🤝 Contributing
Guidelines for contributors

## 📄 License
MIT License

Output ONLY the markdown content, no explanations or meta-commentary.`)
	return b.String()
}

func resumePrompt(repo *adapter.RepositoryData) string {
	var b strings.Builder
	b.WriteString("You are a professional resume writer specializing in technical resumes for software engineers. Generate ATS-optimized resume bullet points for this GitHub project.\n\n")
	b.WriteString("PROJECT DETAILS:\n")
	fmt.Fprintf(&b, "- Project Name: %s\n", repo.Name)
	fmt.Fprintf(&b, "- Description: %s\n", repo.Description)
	fmt.Fprintf(&b, "- Primary Technology: %s\n", repo.Language)
	fmt.Fprintf(&b, "- Topics: %s\n", strings.Join(repo.Topics, ", "))
	fmt.Fprintf(&b, "- Stars: %d\n", repo.Stars)
	fmt.Fprintf(&b, "- Forks: %d\n", repo.Forks)
	b.WriteString(readmeSection("README excerpt", repo.Readme, resumeExcerptLimit))
	b.WriteString(`

Generate 3-5 resume bullet points following this format:
-  [Strong action verb] + [What was built] + [Technologies used] + [Impact/Result/Metric]

REQUIREMENTS:
1. Start each bullet with a strong action verb (Built, Developed, Implemented, Designed, Optimized, Engineered, Created)
2. Include specific technologies and frameworks
3. Add quantifiable metrics when possible (users, performance, scale)
4. Each bullet should be 60-100 characters
5. ATS-friendly (use standard characters, avoid emojis in bullets)
6. Focus on achievements and impact
7. Use past tense for completed projects

EXAMPLE FORMAT:
-  Built a real-time chat application using React and Socket.io, supporting 100+ concurrent users
-  Implemented JWT authentication and role-based access control, reducing unauthorized access by 95%
-  Optimized database queries using indexing, improving response time by 40%

Output ONLY the bullet points (one per line with -  character), no explanations.`)
	return b.String()
}

func notesPrompt(content string) string {
	return `You are an educational content specialist. Create exam-friendly study notes from this content for a college student.

CONTENT:
` + truncate(content, notesContentLimit) + `

Generate structured study notes in this EXACT format:

` + notesTopicHeader + ` [Main topic name]

` + notesConceptsHeader + `
-  Concept 1 with brief explanation
-  Concept 2 with brief explanation
-  Concept 3 with brief explanation
-  Concept 4 with brief explanation
-  Concept 5 with brief explanation

` + notesDefinitionsHeader + `
-  Term 1: Clear, concise definition
-  Term 2: Clear, concise definition
-  Term 3: Clear, concise definition

` + notesExamplesHeader + `
1. Example 1 with brief context
2. Example 2 with brief context
3. Example 3 with brief context

` + notesRevisionHeader + `
-  One-liner point 1
-  One-liner point 2
-  One-liner point 3
-  One-liner point 4
-  One-liner point 5

` + notesRelatedHeader + `
-  Related topic 1
-  Related topic 2
-  Related topic 3

GUIDELINES:
- Keep language simple and clear
- Focus on exam-relevant information
- Include formulas, dates, names if relevant
- Make revision points memorable
- Total length: 400-600 words

Output the notes in the exact format shown above with emoji headers.`
}

func linkedInPrompt(content string) string {
	return `You are a professional LinkedIn coach helping a BTech student create an engaging LinkedIn post. Write a professional post based on this content.

CONTENT:
` + truncate(content, linkedInContentLimit) + `

STUDENT CONTEXT:
- University: [Your University]
- Major: Computer Science Engineering
- Goal: Seeking placement opportunities, building professional network

Generate a LinkedIn post with this EXACT structure:

[HOOK - 1-2 punchy lines that grab attention]

[KEY INSIGHT - 3-4 lines explaining the main idea or learning]

[PERSONAL TAKEAWAY - 2-3 lines connecting this to your learning journey or career goals]

[CALL TO ACTION - 1 line encouraging engagement]

#Hashtag1 #Hashtag2 #Hashtag3 #Hashtag4 #Hashtag5

REQUIREMENTS:
1. Total length: 250-400 characters (optimal for LinkedIn)
2. Professional but conversational tone
3. Use "As a CSE student..." or similar to add context
4. Focus on learning, growth, and career development narrative
5. Include relevant hashtags (3-5, no more)
6. Use short paragraphs (2-3 lines each) for readability
7. Avoid emojis in body text (LinkedIn professional standard)
8. End with engagement question or statement

AVOID:
- Generic motivational quotes
- Clickbait language
- Too much self-promotion
- Overly casual language

Output ONLY the post text in the exact format above, no meta-commentary.`
}

func captionsPrompt(content string, platforms []string) string {
	return `Generate engaging social media captions for these platforms: ` + strings.Join(platforms, ", ") + `

CONTENT:
` + truncate(content, captionsContentLimit) + `

For each platform, create a unique caption optimized for that platform's audience and format:

INSTAGRAM: Engaging, visual-focused, 150-200 chars, include emojis and hashtags
LINKEDIN: Professional, thought-leadership, 200-250 chars, minimal hashtags
TWITTER/X: Conversational, concise, under 280 chars, include relevant hashtags
FACEBOOK: Detailed, community-focused, 200-300 chars, storytelling approach

Output as JSON format with this structure:
{
  "instagram": { "text": "...", "hashtags": ["tag1", "tag2", "tag3"] },
  "linkedin": { "text": "...", "hashtags": ["tag1", "tag2"] },
  "twitter": { "text": "...", "hashtags": ["tag1", "tag2", "tag3"] },
  "facebook": { "text": "...", "hashtags": ["tag1", "tag2"] }
}

Generate captions for all requested platforms. Ensure each caption is unique and platform-optimized.`
}

func repurposePrompt(content string) string {
	return `You are an expert social media manager.
Repurpose the provided article content into ` + fmt.Sprint(len(RepurposeChannels)) + ` distinct pieces of content.

Return ONLY valid JSON with this exact schema:
{
  "linkedin": "string (Professional, thought leadership, bullet points)",
  "twitter": "string (Punchy, hook-driven, 1/5 style thread)",
  "facebook": "string (Engaging, community-focused, questions)",
  "newsletter": "string (Summary, 'Read more' hook)",
  "blog": "string (Teaser for the full article)"
}

Article Content:
` + truncate(content, articleContentLimit)
}
