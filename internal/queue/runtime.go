package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"inkwell/internal/middleware"
)

// ErrRuntimeClosed is returned for enqueues after Stop.
var ErrRuntimeClosed = errors.New("queue runtime is closed")

// Handler processes one job delivery. Returning an error triggers the retry
// policy; handlers are expected to be safely re-runnable.
type Handler func(ctx context.Context, env *Envelope) error

// Runtime is the process-wide queue registry. It is constructed once at
// startup and passed by reference, so tests can substitute an in-memory
// broker.
type Runtime struct {
	broker Broker
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewRuntime(broker Broker, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{broker: broker, logger: logger}
}

// Enqueue places a job on a queue. The correlation ID is lifted from ctx so
// log lines across process boundaries remain joinable. Chained enqueues from
// inside handlers cost only this call; they never block on the chained job.
func (r *Runtime) Enqueue(ctx context.Context, queueName string, payload any, opts Options) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrRuntimeClosed
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", queueName, err)
	}

	env := Envelope{
		Job:           queueName,
		Payload:       raw,
		CorrelationID: middleware.GetCorrelationID(ctx),
		MaxAttempts:   opts.MaxAttempts,
		Backoff:       opts.Backoff,
		EnqueuedAt:    time.Now().UTC(),
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope for %s: %w", queueName, err)
	}

	if opts.Delay > 0 {
		err = r.broker.PublishDeferred(queueName, opts.Delay, body)
	} else {
		err = r.broker.Publish(queueName, body)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", queueName, err)
	}

	r.logger.InfoContext(ctx, "job enqueued", "queue", queueName)
	return nil
}

// Consume starts a worker pool on a queue. Concurrency is a hard cap via
// semaphore; the optional rate limit throttles job starts; retries run in a
// bounded loop with the envelope's backoff policy (consumer defaults apply
// when the envelope carries none).
func (r *Runtime) Consume(queueName string, h Handler, opts ConsumeOptions) error {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	sem := make(chan struct{}, opts.Concurrency)

	var limiter *rate.Limiter
	if opts.RateLimit != nil && opts.RateLimit.Max > 0 && opts.RateLimit.Window > 0 {
		interval := opts.RateLimit.Window / time.Duration(opts.RateLimit.Max)
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	return r.broker.Subscribe(queueName, opts.Concurrency, func(body []byte) error {
		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			// Poison pill; retrying cannot help.
			r.logger.Error("dropping undecodable job", "queue", queueName, "error", err)
			return nil
		}

		sem <- struct{}{}
		defer func() { <-sem }()
		r.wg.Add(1)
		defer r.wg.Done()

		ctx := context.Background()
		if env.CorrelationID != "" {
			ctx = middleware.WithCorrelationID(ctx, env.CorrelationID)
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		r.process(ctx, queueName, &env, h, opts)
		return nil
	})
}

// process runs the bounded retry loop for one delivery. An explicit loop,
// never recursion: attempt count lives in a local, so low backoff delays
// cannot grow the stack.
func (r *Runtime) process(ctx context.Context, queueName string, env *Envelope, h Handler, opts ConsumeOptions) {
	maxAttempts := env.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = opts.MaxAttempts
	}
	backoff := env.Backoff
	if backoff.BaseDelay <= 0 {
		backoff = opts.Backoff
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = h(ctx, env)
		if err == nil {
			if attempt > 1 {
				r.logger.InfoContext(ctx, "job recovered after retry",
					"queue", queueName, "job", env.Job, "attempt", attempt)
			}
			return
		}

		r.logger.WarnContext(ctx, "job attempt failed",
			"queue", queueName, "job", env.Job, "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				attempt = maxAttempts
			case <-time.After(backoff.DelayFor(attempt)):
			}
		}
	}

	r.logger.ErrorContext(ctx, "job failed permanently",
		"queue", queueName, "job", env.Job, "attempts", maxAttempts, "error", err)
	if opts.OnExhausted != nil {
		opts.OnExhausted(env, err)
	}
}

// Stop closes the broker (no new deliveries) and waits for in-flight jobs
// to drain or the context to expire.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := r.broker.Close()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
