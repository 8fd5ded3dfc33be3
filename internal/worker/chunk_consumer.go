package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"inkwell/features/knowledge"
	"inkwell/internal/queue"
)

type ChunkStore interface {
	StoreChunk(ctx context.Context, chunk knowledge.Chunk) error
	UpdateChunk(ctx context.Context, chunk knowledge.Chunk) error
	DeleteChunk(ctx context.Context, chunk knowledge.Chunk) error
}

type ChunkConsumer struct {
	store ChunkStore
}

func NewChunkConsumer(store ChunkStore) *ChunkConsumer {
	return &ChunkConsumer{store: store}
}

func (c *ChunkConsumer) Handle(ctx context.Context, env *queue.Envelope) error {
	var job knowledge.ChunkJob
	if err := json.Unmarshal(env.Payload, &job); err != nil {
		slog.ErrorContext(ctx, "dropping undecodable chunk job", "error", err)
		return nil
	}

	var err error
	switch job.Action {
	case knowledge.ActionCreate:
		err = c.store.StoreChunk(ctx, job.Chunk)
	case knowledge.ActionUpdate:
		err = c.store.UpdateChunk(ctx, job.Chunk)
	case knowledge.ActionDelete:
		err = c.store.DeleteChunk(ctx, job.Chunk)
	default:
		slog.WarnContext(ctx, "chunk job with unknown action dropped", "action", job.Action)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "chunk persistence failed",
			"error", err, "action", job.Action, "agentId", job.Chunk.AgentID)
		return err
	}

	slog.InfoContext(ctx, "chunk persisted",
		"action", job.Action, "agentId", job.Chunk.AgentID, "sourceIdentifier", job.Chunk.SourceIdentifier)
	return nil
}
