package distill

import "regexp"

// MinContentLength is the shortest content a knowledge point may carry.
// Anything shorter is a fragment, not a usable fact.
const MinContentLength = 50

// minConfidence is the keep threshold after scoring.
const minConfidence = 0.3

const defaultCategory = "general"

// specificityPatterns reward language that signals concrete, actionable
// knowledge over generic prose.
var specificityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(step|process|procedure|workflow|stage)\b`),
	regexp.MustCompile(`(?i)\b(for example|e\.g\.|such as|for instance)\b`),
	regexp.MustCompile(`(?i)\b(must|should|required?|mandatory|never)\b`),
	regexp.MustCompile(`(?i)\b(implement|configure|install|deploy|integrate)\b`),
}

// Point is one extracted knowledge point before it becomes a stored chunk.
type Point struct {
	Content    string   `json:"content"`
	Summary    string   `json:"summary"`
	Category   string   `json:"category"`
	Keywords   []string `json:"keywords"`
	Confidence float64  `json:"confidence"`
}

// Score returns the model-supplied confidence when present, otherwise a
// heuristic estimate from length, keyword richness, categorization, and
// specificity of language. Always in [0, 1].
func Score(p Point) float64 {
	if p.Confidence > 0 {
		if p.Confidence > 1 {
			return 1
		}
		return p.Confidence
	}

	score := 0.5
	if len(p.Content) > 200 {
		score += 0.2
	}
	if len(p.Content) > 500 {
		score += 0.1
	}
	if len(p.Keywords) >= 3 {
		score += 0.1
	}
	if p.Category != "" && p.Category != defaultCategory {
		score += 0.1
	}
	for _, re := range specificityPatterns {
		if re.MatchString(p.Content) {
			score += 0.05
		}
	}

	if score > 1 {
		return 1
	}
	return score
}

// Validate reports whether the point is complete enough to keep, before
// confidence is considered.
func Validate(p Point) bool {
	return p.Content != "" && p.Summary != "" && len(p.Content) >= MinContentLength
}
