package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/features/content"
	"inkwell/internal/config"
	"inkwell/internal/queue"
)

var (
	ErrTopicRequired    = errors.New("topic is required")
	ErrAgentRequired    = errors.New("agent id is required")
	ErrNotApproved      = errors.New("request is not approved")
	ErrAlreadyCompleted = errors.New("request is already completed")
)

type Repo interface {
	Save(ctx context.Context, req *ContentRequest) error
	Get(ctx context.Context, id string) (*ContentRequest, error)
	List(ctx context.Context) ([]ContentRequest, error)
	SetApproved(ctx context.Context, id string) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job string, payload any, opts queue.Options) error
}

type Service struct {
	repo         Repo
	embedder     Embedder
	jobs         Enqueuer
	embedTimeout time.Duration
}

func NewService(repo Repo, embedder Embedder, jobs Enqueuer, embedTimeout time.Duration) *Service {
	return &Service{repo: repo, embedder: embedder, jobs: jobs, embedTimeout: embedTimeout}
}

// Submit validates and stores a new request. The topic embedding is best
// effort; a request without one still generates, it just never matches in
// similarity lookups.
func (s *Service) Submit(ctx context.Context, req *ContentRequest) error {
	if req.Topic == "" {
		return ErrTopicRequired
	}
	if req.AgentID == "" {
		return ErrAgentRequired
	}
	if _, err := content.ParseLayout(req.Layout); err != nil {
		return err
	}

	req.Status = StatusPending

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()
	if vec, err := s.embedder.Embed(embedCtx, req.Topic); err != nil {
		slog.WarnContext(ctx, "topic embedding failed, storing without it", "error", err, "topic", req.Topic)
	} else {
		req.Embedding = make([]float64, len(vec))
		for i, v := range vec {
			req.Embedding[i] = float64(v)
		}
	}

	if err := s.repo.Save(ctx, req); err != nil {
		return fmt.Errorf("save request: %w", err)
	}

	slog.InfoContext(ctx, "content request submitted", "requestId", req.ID, "layout", req.Layout)
	return nil
}

// Approve flips the request to processing and queues the generation job. A
// completed request cannot be re-approved; a failed one can.
func (s *Service) Approve(ctx context.Context, id string) error {
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if req.IsCompleted {
		return ErrAlreadyCompleted
	}

	if err := s.repo.SetApproved(ctx, id); err != nil {
		return fmt.Errorf("approve request: %w", err)
	}

	err = s.jobs.Enqueue(ctx, config.QueueGenerate, GeneratePayload{RequestID: id}, queue.Options{
		MaxAttempts: 3,
		Backoff:     queue.BackoffPolicy{Type: queue.BackoffExponential, BaseDelay: 5 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("enqueue generation job: %w", err)
	}

	slog.InfoContext(ctx, "generation queued", "requestId", id)
	return nil
}

func (s *Service) List(ctx context.Context) ([]ContentRequest, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*ContentRequest, error) {
	return s.repo.Get(ctx, id)
}
