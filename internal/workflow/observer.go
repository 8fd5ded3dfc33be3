package workflow

import (
	"context"
	"log/slog"
	"time"
)

// Observer receives lifecycle callbacks from workflow runs. Implementations
// should be fast and non-blocking; heavy work belongs elsewhere.
type Observer interface {
	OnWorkflowStart(ctx context.Context, workflowID string)
	OnWorkflowCompleted(ctx context.Context, workflowID string)
	OnWorkflowFailed(ctx context.Context, workflowID string, err error)
	OnStepStart(ctx context.Context, workflowID, stepID string)
	OnStepCompleted(ctx context.Context, workflowID, stepID string, err error, d time.Duration)
}

// NoopObserver is the default when none is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowStart(ctx context.Context, workflowID string)           {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, workflowID string)       {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, workflowID string, e error) {}
func (NoopObserver) OnStepStart(ctx context.Context, workflowID, stepID string)       {}
func (NoopObserver) OnStepCompleted(ctx context.Context, workflowID, stepID string, e error, d time.Duration) {
}

// LoggingObserver writes structured lifecycle logs via slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, workflowID string) {
	o.Logger.InfoContext(ctx, "workflow started", "workflow", workflowID)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, workflowID string) {
	o.Logger.InfoContext(ctx, "workflow completed", "workflow", workflowID)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, workflowID string, err error) {
	o.Logger.ErrorContext(ctx, "workflow failed", "workflow", workflowID, "error", err)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, workflowID, stepID string) {
	o.Logger.DebugContext(ctx, "step started", "workflow", workflowID, "step", stepID)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, workflowID, stepID string, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step completed",
		"workflow", workflowID, "step", stepID, "duration", d, "error", err)
}

// CompositeObserver fans callbacks out to several observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver combines the non-nil observers into one.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopObserver{}
	case 1:
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowStart(ctx context.Context, workflowID string) {
	for _, o := range c.observers {
		o.OnWorkflowStart(ctx, workflowID)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, workflowID string) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, workflowID)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, workflowID string, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, workflowID, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, workflowID, stepID string) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, workflowID, stepID)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, workflowID, stepID string, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, workflowID, stepID, err, d)
	}
}
