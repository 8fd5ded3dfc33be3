package text

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports that no repair strategy could recover a JSON array from
// model output.
type ParseError struct {
	Attempts int
	Sample   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no parse strategy recovered a JSON array after %d attempts: %q", e.Attempts, e.Sample)
}

var (
	fencedRe        = regexp.MustCompile("(?s)```(?:json)?\\s*(\\[.*\\])\\s*```")
	bracketRe       = regexp.MustCompile(`(?s)\[.*\]`)
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
	quoteReplacer   = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// ParseJSONArray parses a JSON array out of raw model output. Models wrap
// arrays in prose, code fences, and sloppy syntax, so parsing runs through an
// ordered list of fallback strategies; the first one that yields a valid
// array wins.
func ParseJSONArray(raw string) ([]json.RawMessage, error) {
	strategies := []func(string) string{
		func(s string) string { return s },
		stripLeadingNoise,
		stripTrailingCommas,
		normalizeQuotes,
		extractDelimited,
	}

	candidate := strings.TrimSpace(raw)
	for i, repair := range strategies {
		fixed := repair(candidate)
		if fixed == "" {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(fixed), &items); err == nil {
			return items, nil
		}
		// Repairs compound: each strategy works on the previous one's output.
		if i > 0 {
			candidate = fixed
		}
	}

	sample := candidate
	if len(sample) > 120 {
		sample = sample[:120]
	}
	return nil, &ParseError{Attempts: len(strategies), Sample: sample}
}

// stripLeadingNoise drops any explanatory prose before the first '[' and
// after the last ']'.
func stripLeadingNoise(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func normalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// extractDelimited pulls an array out of a fenced code block, or as a last
// resort the widest bracket-delimited region.
func extractDelimited(s string) string {
	if m := fencedRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := bracketRe.FindString(s); m != "" {
		return m
	}
	return ""
}
