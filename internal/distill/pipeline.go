// Package distill turns raw uploaded text into scored, embedded knowledge
// chunks. The pipeline stages are window, extract, format, score, embed, with
// persistence handed off to the chunk queue rather than written inline.
package distill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"inkwell/features/knowledge"
	"inkwell/internal/config"
	"inkwell/internal/llm"
	"inkwell/internal/queue"
	"inkwell/internal/text"
)

const (
	extractAttempts = 3
	extractMinChars = 20

	embedBatchSize = 5
)

const extractSystem = `You are a knowledge extraction engine. From the given text, extract every distinct fact, guideline, process, or definition as plain prose. Preserve concrete details. Ignore boilerplate, navigation, and filler. Output the extracted knowledge as plain text, one point per paragraph.`

const formatSystem = `You are a formatting engine. Convert the given extracted knowledge into a JSON array. Each element must be an object with fields: "content" (the full knowledge point), "summary" (one sentence), "category" (one of: process, guideline, fact, example, general), "keywords" (array of strings), "confidence" (0.0-1.0, optional). Output only the JSON array.`

// ExtractionError reports a window whose extraction kept coming back empty
// or truncated.
type ExtractionError struct {
	Window   int
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("window %d: extraction failed after %d attempts: %v", e.Window, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Result, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, job string, payload any, opts queue.Options) error
}

type Pipeline struct {
	generator Generator
	embedder  Embedder
	jobs      Enqueuer

	windowSize   int
	overlap      int
	retryBase    time.Duration
	genTimeout   time.Duration
	embedTimeout time.Duration
}

func NewPipeline(g Generator, e Embedder, jobs Enqueuer, genTimeout, embedTimeout time.Duration) *Pipeline {
	return &Pipeline{
		generator:    g,
		embedder:     e,
		jobs:         jobs,
		windowSize:   text.DefaultWindowSize,
		overlap:      text.DefaultOverlap,
		retryBase:    2 * time.Second,
		genTimeout:   genTimeout,
		embedTimeout: embedTimeout,
	}
}

// generate wraps one model call in the generation timeout so a hung call
// surfaces as an error into the retry policy instead of wedging the worker.
func (p *Pipeline) generate(ctx context.Context, req llm.Request) (*llm.Result, error) {
	genCtx, cancel := context.WithTimeout(ctx, p.genTimeout)
	defer cancel()
	return p.generator.Generate(genCtx, req)
}

// Run distills one upload. It returns the number of chunk jobs enqueued. The
// run fails only when no window yields any extraction or the formatting pass
// cannot produce parseable output; individual bad windows and failed
// embeddings degrade, they do not abort.
func (p *Pipeline) Run(ctx context.Context, payload knowledge.DistillPayload) (int, error) {
	windows := text.SplitWindows(payload.RawText, p.windowSize, p.overlap)

	var extracted []string
	for i, window := range windows {
		out, err := p.extractWindow(ctx, i, window)
		if err != nil {
			slog.WarnContext(ctx, "window skipped", "error", err, "window", i, "agentId", payload.AgentID)
			continue
		}
		extracted = append(extracted, out)
	}
	if len(extracted) == 0 {
		return 0, fmt.Errorf("no knowledge extracted from %d windows", len(windows))
	}

	points, err := p.format(ctx, strings.Join(extracted, "\n\n"))
	if err != nil {
		return 0, fmt.Errorf("format extraction: %w", err)
	}

	var kept []distilledPoint
	for _, pt := range points {
		if !Validate(pt) {
			continue
		}
		confidence := Score(pt)
		if confidence < minConfidence {
			continue
		}
		if pt.Category == "" {
			pt.Category = defaultCategory
		}
		pt.Confidence = confidence
		kept = append(kept, distilledPoint{Point: pt})
	}

	p.embedBatches(ctx, kept)

	enqueued := 0
	for _, pt := range kept {
		chunk := knowledge.Chunk{
			AgentID:          payload.AgentID,
			Content:          pt.Content,
			Summary:          pt.Summary,
			Category:         pt.Category,
			Keywords:         pt.Keywords,
			Source:           payload.Source,
			SourceType:       payload.SourceType,
			SourceIdentifier: payload.SourceIdentifier,
			Vector:           pt.vector,
			Confidence:       pt.Confidence,
			CreatedAt:        time.Now().UTC(),
		}
		err := p.jobs.Enqueue(ctx, config.QueueChunks, knowledge.ChunkJob{
			Action: knowledge.ActionCreate,
			Chunk:  chunk,
		}, queue.Options{MaxAttempts: 3, Backoff: queue.BackoffPolicy{Type: queue.BackoffLinear, BaseDelay: time.Second}})
		if err != nil {
			return enqueued, fmt.Errorf("enqueue chunk job: %w", err)
		}
		enqueued++
	}

	slog.InfoContext(ctx, "distillation complete",
		"agentId", payload.AgentID,
		"windows", len(windows),
		"extracted", len(extracted),
		"points", len(points),
		"kept", enqueued)
	return enqueued, nil
}

type distilledPoint struct {
	Point
	vector []float32
}

func (p *Pipeline) extractWindow(ctx context.Context, index int, window string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= extractAttempts; attempt++ {
		if attempt > 1 {
			delay := p.retryBase * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		res, err := p.generate(ctx, llm.Request{
			System: extractSystem,
			Prompt: window,
		})
		if err != nil {
			lastErr = err
			continue
		}
		out := strings.TrimSpace(res.Text)
		if len(out) < extractMinChars {
			lastErr = fmt.Errorf("extraction too short (%d chars)", len(out))
			continue
		}
		return out, nil
	}
	return "", &ExtractionError{Window: index, Attempts: extractAttempts, Err: lastErr}
}

func (p *Pipeline) format(ctx context.Context, extraction string) ([]Point, error) {
	res, err := p.generate(ctx, llm.Request{
		System:     formatSystem,
		Prompt:     extraction,
		JSONOutput: true,
	})
	if err != nil {
		return nil, err
	}

	elements, err := text.ParseJSONArray(res.Text)
	if err != nil {
		return nil, err
	}

	var points []Point
	for _, raw := range elements {
		var pt Point
		if err := json.Unmarshal(raw, &pt); err != nil {
			slog.WarnContext(ctx, "malformed knowledge point dropped", "error", err)
			continue
		}
		points = append(points, pt)
	}
	return points, nil
}

// embedBatches fills vectors in place, embedBatchSize points at a time. The
// points within a batch embed concurrently; the batch boundary caps in-flight
// embedding calls. A point whose embedding fails keeps a nil vector; it is
// stored but will not be retrievable until re-embedded.
func (p *Pipeline) embedBatches(ctx context.Context, points []distilledPoint) {
	for start := 0; start < len(points); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(points) {
			end = len(points)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				embedCtx, cancel := context.WithTimeout(ctx, p.embedTimeout)
				defer cancel()
				vec, err := p.embedder.Embed(embedCtx, points[i].Content)
				if err != nil {
					slog.WarnContext(ctx, "embedding failed, storing without vector", "error", err)
					return
				}
				points[i].vector = vec
			}(i)
		}
		wg.Wait()
	}
}
