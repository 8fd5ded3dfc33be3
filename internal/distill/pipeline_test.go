package distill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/features/knowledge"
	"inkwell/internal/config"
	"inkwell/internal/llm"
	"inkwell/internal/queue"
)

type scriptedGenerator struct {
	extractResponses []func() (string, error)
	extractCalls     int
	formatResponse   string
	formatErr        error
	formatCalls      int
}

func (g *scriptedGenerator) Generate(_ context.Context, req llm.Request) (*llm.Result, error) {
	if req.JSONOutput {
		g.formatCalls++
		if g.formatErr != nil {
			return nil, g.formatErr
		}
		return &llm.Result{Text: g.formatResponse}, nil
	}

	i := g.extractCalls
	g.extractCalls++
	if i >= len(g.extractResponses) {
		i = len(g.extractResponses) - 1
	}
	text, err := g.extractResponses[i]()
	if err != nil {
		return nil, err
	}
	return &llm.Result{Text: text}, nil
}

func ok(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(msg string) func() (string, error) {
	return func() (string, error) { return "", errors.New(msg) }
}

type stubEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	err   error
	calls int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.vec, e.err
}

type capturingEnqueuer struct {
	jobs     []string
	payloads []any
	err      error
}

func (c *capturingEnqueuer) Enqueue(_ context.Context, job string, payload any, _ queue.Options) error {
	if c.err != nil {
		return c.err
	}
	c.jobs = append(c.jobs, job)
	c.payloads = append(c.payloads, payload)
	return nil
}

func testPipeline(g Generator, e Embedder, q Enqueuer) *Pipeline {
	p := NewPipeline(g, e, q, time.Second, time.Second)
	p.retryBase = time.Millisecond
	return p
}

func pointJSON(n int) string {
	content := strings.Repeat("all details of the deployment process ", 3) // ~115 chars
	var elems []string
	for i := 0; i < n; i++ {
		elems = append(elems, fmt.Sprintf(
			`{"content":"%s %d","summary":"point %d","category":"process","keywords":["deploy","process","steps"]}`,
			content, i, i))
	}
	return "[" + strings.Join(elems, ",") + "]"
}

func TestPipelineRun(t *testing.T) {
	payload := knowledge.DistillPayload{
		AgentID:          "agent-1",
		RawText:          "Deployments run in two phases with a canary in between.",
		Source:           "upload",
		SourceType:       "text",
		SourceIdentifier: "runbook.md",
	}

	t.Run("extracts, scores, embeds, and enqueues chunk jobs", func(t *testing.T) {
		gen := &scriptedGenerator{
			extractResponses: []func() (string, error){ok("Deployments run in two phases with a canary between them.")},
			formatResponse:   pointJSON(2),
		}
		emb := &stubEmbedder{vec: []float32{0.1, 0.2}}
		enq := &capturingEnqueuer{}

		n, err := testPipeline(gen, emb, enq).Run(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 2, emb.calls)
		require.Len(t, enq.jobs, 2)
		assert.Equal(t, config.QueueChunks, enq.jobs[0])

		job, okCast := enq.payloads[0].(knowledge.ChunkJob)
		require.True(t, okCast)
		assert.Equal(t, knowledge.ActionCreate, job.Action)
		assert.Equal(t, "agent-1", job.Chunk.AgentID)
		assert.Equal(t, "runbook.md", job.Chunk.SourceIdentifier)
		assert.Equal(t, []float32{0.1, 0.2}, job.Chunk.Vector)
		assert.GreaterOrEqual(t, job.Chunk.Confidence, 0.3)
	})

	t.Run("drops invalid and low-confidence points", func(t *testing.T) {
		gen := &scriptedGenerator{
			extractResponses: []func() (string, error){ok("extracted knowledge about processes")},
			formatResponse: `[
				{"content":"` + strings.Repeat("long enough to pass validation here ", 3) + `","summary":"kept","category":"fact","keywords":["a","b","c"]},
				{"content":"too short","summary":"dropped"},
				{"content":"` + strings.Repeat("x", 80) + `","summary":""}
			]`,
		}
		enq := &capturingEnqueuer{}

		n, err := testPipeline(gen, &stubEmbedder{vec: []float32{0.1}}, enq).Run(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("retries a failing window with backoff before succeeding", func(t *testing.T) {
		gen := &scriptedGenerator{
			extractResponses: []func() (string, error){
				fail("transient"),
				ok("recovered extraction with enough characters"),
			},
			formatResponse: pointJSON(1),
		}
		enq := &capturingEnqueuer{}

		n, err := testPipeline(gen, &stubEmbedder{vec: []float32{0.1}}, enq).Run(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 2, gen.extractCalls)
	})

	t.Run("short extraction output is retried as a failure", func(t *testing.T) {
		gen := &scriptedGenerator{
			extractResponses: []func() (string, error){
				ok("tiny"),
				ok("now a proper extraction with enough characters"),
			},
			formatResponse: pointJSON(1),
		}
		enq := &capturingEnqueuer{}

		n, err := testPipeline(gen, &stubEmbedder{vec: []float32{0.1}}, enq).Run(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, 2, gen.extractCalls)
	})

	t.Run("fails only when every window is exhausted", func(t *testing.T) {
		gen := &scriptedGenerator{
			extractResponses: []func() (string, error){fail("down")},
		}

		_, err := testPipeline(gen, &stubEmbedder{}, &capturingEnqueuer{}).Run(context.Background(), payload)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no knowledge extracted")
		assert.Equal(t, extractAttempts, gen.extractCalls)
		assert.Zero(t, gen.formatCalls, "format must not run with nothing extracted")
	})

	t.Run("embedding failure keeps the point with a nil vector", func(t *testing.T) {
		gen := &scriptedGenerator{
			extractResponses: []func() (string, error){ok("extraction with enough characters to pass")},
			formatResponse:   pointJSON(1),
		}
		enq := &capturingEnqueuer{}

		n, err := testPipeline(gen, &stubEmbedder{err: errors.New("quota")}, enq).Run(context.Background(), payload)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		job := enq.payloads[0].(knowledge.ChunkJob)
		assert.Nil(t, job.Chunk.Vector)
	})

	t.Run("unparseable format output fails the run", func(t *testing.T) {
		gen := &scriptedGenerator{
			extractResponses: []func() (string, error){ok("extraction with enough characters to pass")},
			formatResponse:   "I could not produce JSON today.",
		}

		_, err := testPipeline(gen, &stubEmbedder{}, &capturingEnqueuer{}).Run(context.Background(), payload)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "format extraction")
	})

	t.Run("fenced JSON from the model still parses", func(t *testing.T) {
		gen := &scriptedGenerator{
			extractResponses: []func() (string, error){ok("extraction with enough characters to pass")},
			formatResponse:   "```json\n" + pointJSON(1) + "\n```",
		}
		enq := &capturingEnqueuer{}

		n, err := testPipeline(gen, &stubEmbedder{vec: []float32{0.1}}, enq).Run(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestExtractionError(t *testing.T) {
	inner := errors.New("empty response")
	err := &ExtractionError{Window: 2, Attempts: 3, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "window 2")
}

type hungGenerator struct{}

func (hungGenerator) Generate(ctx context.Context, _ llm.Request) (*llm.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPipelineGenerationTimeout(t *testing.T) {
	payload := knowledge.DistillPayload{
		AgentID:          "agent-1",
		RawText:          "Deployments run in two phases with a canary in between.",
		Source:           "upload",
		SourceType:       "text",
		SourceIdentifier: "runbook.md",
	}

	p := NewPipeline(hungGenerator{}, &stubEmbedder{}, &capturingEnqueuer{}, 20*time.Millisecond, time.Second)
	p.retryBase = time.Millisecond

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = p.Run(context.Background(), payload)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run wedged on a hung model call")
	}
	require.Error(t, err)
	assert.Zero(t, n)
}

type gaugeEmbedder struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (e *gaugeEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	e.mu.Lock()
	e.current++
	if e.current > e.peak {
		e.peak = e.current
	}
	e.mu.Unlock()

	time.Sleep(30 * time.Millisecond)

	e.mu.Lock()
	e.current--
	e.mu.Unlock()
	return []float32{0.5}, nil
}

func TestPipelineEmbedsBatchConcurrently(t *testing.T) {
	payload := knowledge.DistillPayload{
		AgentID:          "agent-1",
		RawText:          "Deployments run in two phases with a canary in between.",
		Source:           "upload",
		SourceType:       "text",
		SourceIdentifier: "runbook.md",
	}
	gen := &scriptedGenerator{
		extractResponses: []func() (string, error){ok("extraction with enough characters to pass")},
		formatResponse:   pointJSON(embedBatchSize),
	}
	emb := &gaugeEmbedder{}
	enq := &capturingEnqueuer{}

	n, err := testPipeline(gen, emb, enq).Run(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, embedBatchSize, n)
	assert.Greater(t, emb.peak, 1, "points within a batch should embed in parallel")
}
