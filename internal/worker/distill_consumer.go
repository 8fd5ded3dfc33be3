package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"inkwell/features/knowledge"
	"inkwell/internal/queue"
)

type DistillPipeline interface {
	Run(ctx context.Context, payload knowledge.DistillPayload) (int, error)
}

type DistillConsumer struct {
	pipeline DistillPipeline
}

func NewDistillConsumer(pipeline DistillPipeline) *DistillConsumer {
	return &DistillConsumer{pipeline: pipeline}
}

func (c *DistillConsumer) Handle(ctx context.Context, env *queue.Envelope) error {
	var payload knowledge.DistillPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		slog.ErrorContext(ctx, "dropping undecodable distill job", "error", err)
		return nil
	}
	if payload.RawText == "" || payload.AgentID == "" {
		slog.WarnContext(ctx, "incomplete distill job dropped", "agentId", payload.AgentID)
		return nil
	}

	chunks, err := c.pipeline.Run(ctx, payload)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "distill job done",
		"agentId", payload.AgentID, "sourceIdentifier", payload.SourceIdentifier, "chunks", chunks)
	return nil
}
