package content

import "fmt"

// Layout is the closed set of content shapes the generation graphs know how
// to produce. Anything else is rejected before a workflow is built.
type Layout string

const (
	LayoutArticle   Layout = "article"
	LayoutTutorial  Layout = "tutorial"
	LayoutChangelog Layout = "changelog"
)

func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutArticle, LayoutTutorial, LayoutChangelog:
		return Layout(s), nil
	default:
		return "", fmt.Errorf("unknown layout %q", s)
	}
}

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

type GeneratedContent struct {
	ID              string   `json:"id"`
	RequestID       string   `json:"request_id"`
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	Body            string   `json:"body"`
	Layout          string   `json:"layout"`
	WordsCount      int      `json:"words_count"`
	ReadTimeMinutes int      `json:"read_time_minutes"`
	QualityScore    int      `json:"quality_score"`
	ReviewNotes     string   `json:"review_notes"`
	Keywords        []string `json:"keywords"`
	MetaDescription string   `json:"meta_description"`
	Topics          []string `json:"topics"`
	Sources         []string `json:"sources"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at,omitempty"`
}
