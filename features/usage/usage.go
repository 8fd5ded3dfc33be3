// Package usage records per-call token accounting for generation runs.
// Recording is strictly fire and forget: a usage write must never fail a
// workflow phase.
package usage

import (
	"context"
	"log/slog"
	"time"
)

type Event struct {
	RequestID        string    `json:"request_id"`
	Phase            string    `json:"phase"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary aggregates usage per request.
type Summary struct {
	RequestID        string `json:"request_id"`
	Calls            int    `json:"calls"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

type Repo interface {
	Insert(ctx context.Context, event Event) error
	Summarize(ctx context.Context, requestID string) (*Summary, error)
}

type Recorder struct {
	repo Repo
}

func NewRecorder(repo Repo) *Recorder {
	return &Recorder{repo: repo}
}

// Record persists one usage event. Failures are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := r.repo.Insert(ctx, event); err != nil {
		slog.WarnContext(ctx, "usage event dropped",
			"error", err, "requestId", event.RequestID, "phase", event.Phase)
	}
}
