// Package worker holds the queue consumers: generation, distillation, and
// chunk persistence. Consumers decode, delegate, and report; domain logic
// lives in the packages they call.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"inkwell/features/request"
	"inkwell/internal/queue"
)

type ContentEngine interface {
	Generate(ctx context.Context, requestID string) error
}

type RequestFailer interface {
	MarkFailed(ctx context.Context, id, message string) error
}

type GenerateConsumer struct {
	engine   ContentEngine
	requests RequestFailer
}

func NewGenerateConsumer(engine ContentEngine, requests RequestFailer) *GenerateConsumer {
	return &GenerateConsumer{engine: engine, requests: requests}
}

func (c *GenerateConsumer) Handle(ctx context.Context, env *queue.Envelope) error {
	var payload request.GeneratePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		slog.ErrorContext(ctx, "dropping undecodable generate job", "error", err)
		return nil
	}
	if payload.RequestID == "" {
		slog.WarnContext(ctx, "generate job without request id dropped")
		return nil
	}

	return c.engine.Generate(ctx, payload.RequestID)
}

// OnExhausted marks the request failed once the retry budget is spent, so
// the failure is visible in the API and the request stays resubmittable.
func (c *GenerateConsumer) OnExhausted(env *queue.Envelope, cause error) {
	var payload request.GeneratePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.RequestID == "" {
		return
	}

	ctx := context.Background()
	if err := c.requests.MarkFailed(ctx, payload.RequestID, cause.Error()); err != nil {
		slog.Error("failed to mark request failed",
			"error", err, "requestId", payload.RequestID, "cause", cause)
	}
}
