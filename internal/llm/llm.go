// Package llm holds the request/response types shared by every consumer of
// the text-generation service. Concrete clients live under internal/adapter.
package llm

// Usage is the token accounting attached to every generation call. It feeds
// the billing sink regardless of whether the surrounding workflow succeeds.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request describes a single generation call.
type Request struct {
	// System primes the model with role/tone instructions. Optional.
	System string

	// Prompt is the user-visible instruction plus any grounding context.
	Prompt string

	// JSONOutput forces the model into structured-output mode; callers
	// unmarshal and validate the result themselves.
	JSONOutput bool
}

// Result carries the raw model output and its usage accounting.
type Result struct {
	Text  string
	Usage Usage
}
