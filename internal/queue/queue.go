// Package queue is the asynchronous job layer: named queues over a broker,
// with per-queue worker concurrency, rate limiting, and bounded retry with
// backoff. Delivery is at-least-once; handlers must be idempotent.
package queue

import (
	"encoding/json"
	"time"
)

// BackoffType selects how the retry delay grows with the attempt number.
type BackoffType string

const (
	// BackoffLinear delays base*attempt between failures.
	BackoffLinear BackoffType = "linear"

	// BackoffExponential delays base*2^(attempt-1) between failures.
	BackoffExponential BackoffType = "exponential"
)

// BackoffPolicy is carried inside the job envelope so the producer decides
// how its jobs are retried.
type BackoffPolicy struct {
	Type      BackoffType   `json:"type"`
	BaseDelay time.Duration `json:"base_delay_ms"`
}

// DelayFor returns the delay applied after the given failed attempt
// (1-based).
func (p BackoffPolicy) DelayFor(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 1 {
		return 0
	}
	switch p.Type {
	case BackoffExponential:
		return p.BaseDelay * time.Duration(1<<(attempt-1))
	default:
		return p.BaseDelay * time.Duration(attempt)
	}
}

// Options control a single enqueue.
type Options struct {
	// MaxAttempts includes the first attempt; zero falls back to the
	// consumer's default.
	MaxAttempts int

	Backoff BackoffPolicy

	// Delay defers the first delivery, smoothing bursts.
	Delay time.Duration
}

// Envelope is the wire format placed on a queue. The retry policy travels
// with the job so a consumer restart does not change semantics mid-flight.
type Envelope struct {
	Job           string          `json:"job"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	MaxAttempts   int             `json:"max_attempts,omitempty"`
	Backoff       BackoffPolicy   `json:"backoff,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

// RateLimit caps deliveries to Max per Window, independent of concurrency.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// ConsumeOptions configure one queue's worker pool.
type ConsumeOptions struct {
	// Concurrency is a hard cap on simultaneously executing jobs.
	Concurrency int

	// RateLimit, when set, throttles job starts to respect upstream limits.
	RateLimit *RateLimit

	// MaxAttempts and Backoff are defaults for envelopes that carry none.
	MaxAttempts int
	Backoff     BackoffPolicy

	// OnExhausted fires after the final failed attempt, so the failure is
	// observable beyond the log line (e.g. marking the owning record).
	OnExhausted func(env *Envelope, err error)
}

// Broker is the transport under the runtime. Production uses NSQ; tests use
// the in-memory broker.
type Broker interface {
	Publish(queue string, body []byte) error
	PublishDeferred(queue string, delay time.Duration, body []byte) error

	// Subscribe registers the handler for a queue. The handler is invoked
	// once per delivery, up to concurrency deliveries at a time; the broker
	// must keep at least that many in flight or the runtime's worker pool
	// starves.
	Subscribe(queue string, concurrency int, fn func(body []byte) error) error

	Close() error
}
