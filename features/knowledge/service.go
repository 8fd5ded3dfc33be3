package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/queue"
)

var (
	ErrEmptyText    = errors.New("raw text is required")
	ErrMissingAgent = errors.New("agent id is required")
)

type Enqueuer interface {
	Enqueue(ctx context.Context, job string, payload any, opts queue.Options) error
}

// Service accepts raw material and hands it to the distillation pipeline
// through the queue. Nothing is distilled inline; upload latency stays flat
// regardless of document size.
type Service struct {
	jobs Enqueuer
}

func NewService(jobs Enqueuer) *Service {
	return &Service{jobs: jobs}
}

func (s *Service) Distill(ctx context.Context, p DistillPayload) error {
	if p.RawText == "" {
		return ErrEmptyText
	}
	if p.AgentID == "" {
		return ErrMissingAgent
	}
	if p.Source == "" {
		p.Source = SourceUpload
	}

	err := s.jobs.Enqueue(ctx, config.QueueDistill, p, queue.Options{
		MaxAttempts: 3,
		Backoff:     queue.BackoffPolicy{Type: queue.BackoffExponential, BaseDelay: 2 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("enqueue distill job: %w", err)
	}

	slog.InfoContext(ctx, "distillation queued",
		"agentId", p.AgentID,
		"source", p.Source,
		"sourceIdentifier", p.SourceIdentifier,
		"bytes", len(p.RawText))
	return nil
}
