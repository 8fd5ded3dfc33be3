package status

import (
	"context"
	"encoding/json"
	"log/slog"

	"inkwell/internal/queue"
)

type RequestUpdater interface {
	UpdateStatus(ctx context.Context, id, status, message string) error
}

// Consumer is the projection side: it applies status events to the stored
// request rows.
type Consumer struct {
	requests RequestUpdater
}

func NewConsumer(requests RequestUpdater) *Consumer {
	return &Consumer{requests: requests}
}

func (c *Consumer) Handle(ctx context.Context, env *queue.Envelope) error {
	var event Event
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		// Poison pill; an undecodable event cannot be projected.
		slog.ErrorContext(ctx, "dropping undecodable status event", "error", err)
		return nil
	}
	if event.ContentID == "" {
		slog.WarnContext(ctx, "status event without content id dropped")
		return nil
	}

	if err := c.requests.UpdateStatus(ctx, event.ContentID, event.Status, event.Message); err != nil {
		slog.ErrorContext(ctx, "status projection failed", "error", err, "contentId", event.ContentID)
		return err
	}

	slog.InfoContext(ctx, "status projected",
		"contentId", event.ContentID, "status", event.Status, "message", event.Message)
	return nil
}
