// Package status projects workflow progress events onto the stored request
// rows. The generation engine only publishes; it never writes request state
// itself.
package status

import (
	"context"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/queue"
)

const (
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// Event is one progress notification from a generation run. ContentID is the
// owning request's ID; the content row does not exist until finalize.
type Event struct {
	ContentID string `json:"contentId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Layout    string `json:"layout"`
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job string, payload any, opts queue.Options) error
}

// QueuePublisher pushes events onto the status queue. Publishing is cheap
// and decoupled; a slow projection never stalls a workflow phase.
type QueuePublisher struct {
	jobs Enqueuer
}

func NewQueuePublisher(jobs Enqueuer) *QueuePublisher {
	return &QueuePublisher{jobs: jobs}
}

func (p *QueuePublisher) Publish(ctx context.Context, event Event) error {
	return p.jobs.Enqueue(ctx, config.QueueStatus, event, queue.Options{
		MaxAttempts: 2,
		Backoff:     queue.BackoffPolicy{Type: queue.BackoffLinear, BaseDelay: time.Second},
	})
}
