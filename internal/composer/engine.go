// Package composer runs the content generation workflow: layout-specific
// phase graphs over a single LLM generator, grounded by retrieval context,
// with progress published as status events and persistence confined to the
// finalize phase.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/features/content"
	"inkwell/features/request"
	"inkwell/features/status"
	"inkwell/features/usage"
	"inkwell/internal/llm"
	"inkwell/internal/workflow"
)

const (
	phaseStrategy = "strategy"
	phaseResearch = "research"
	phaseWrite    = "write"
	phaseEdit     = "edit"
	phaseReview   = "review"
	phaseSEO      = "seo"
	phaseFinalize = "finalize"

	keyRequest = "request"
	keyRAG     = "ragContext"
	keyContent = "content"
)

var ErrNotApproved = errors.New("request is not approved")

type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Result, error)
}

type UsageRecorder interface {
	Record(ctx context.Context, event usage.Event)
}

type StatusPublisher interface {
	Publish(ctx context.Context, event status.Event) error
}

type ContextBuilder interface {
	BuildContext(ctx context.Context, agentID, topic string) string
}

type RequestStore interface {
	Get(ctx context.Context, id string) (*request.ContentRequest, error)
	MarkCompleted(ctx context.Context, id, contentID string) error
}

type ContentStore interface {
	Save(ctx context.Context, c *content.GeneratedContent) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type Engine struct {
	generator Generator
	usage     UsageRecorder
	statuses  StatusPublisher
	contexts  ContextBuilder
	requests  RequestStore
	contents  ContentStore

	model      string
	genTimeout time.Duration
}

func NewEngine(
	generator Generator,
	usageRec UsageRecorder,
	statuses StatusPublisher,
	contexts ContextBuilder,
	requests RequestStore,
	contents ContentStore,
	model string,
	genTimeout time.Duration,
) *Engine {
	return &Engine{
		generator:  generator,
		usage:      usageRec,
		statuses:   statuses,
		contexts:   contexts,
		requests:   requests,
		contents:   contents,
		model:      model,
		genTimeout: genTimeout,
	}
}

// Generate runs the full workflow for one approved request. The layout is
// resolved before any phase executes; an unknown layout never costs a model
// call. Already-completed requests are acknowledged without rerunning, so
// redelivered jobs are harmless.
func (e *Engine) Generate(ctx context.Context, requestID string) error {
	req, err := e.requests.Get(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", requestID, err)
	}

	layout, err := content.ParseLayout(req.Layout)
	if err != nil {
		return err
	}
	if !req.Approved {
		return ErrNotApproved
	}
	if req.IsCompleted {
		slog.InfoContext(ctx, "request already completed, skipping", "requestId", req.ID)
		return nil
	}

	rag := e.contexts.BuildContext(ctx, req.AgentID, req.Topic)

	obs := workflow.NewCompositeObserver(
		workflow.NewLoggingObserver(slog.Default()),
		&statusObserver{publisher: e.statuses, requestID: req.ID, layout: req.Layout},
	)

	input := workflow.Data{
		keyRequest: req,
		keyRAG:     rag,
	}
	_, err = e.buildWorkflow(layout, obs).Run(ctx, input)
	return err
}

// buildWorkflow assembles the canonical graph for a layout. Article and
// tutorial share one shape; changelog skips research since its material is
// already structured.
func (e *Engine) buildWorkflow(layout content.Layout, obs workflow.Observer) *workflow.Workflow {
	researched := workflow.Define("content.longform").
		WithObserver(obs).
		Parallel(e.strategyStep(), e.researchStep()).
		Then(e.writeStep()).
		Then(e.editStep()).
		Parallel(e.reviewStep(), e.seoStep()).
		Then(e.finalizeStep()).
		Commit()

	direct := workflow.Define("content.changelog").
		WithObserver(obs).
		Then(e.strategyStep()).
		Then(e.writeStep()).
		Then(e.editStep()).
		Parallel(e.reviewStep(), e.seoStep()).
		Then(e.finalizeStep()).
		Commit()

	return workflow.Define("content.generate").
		WithObserver(obs).
		Inputs(keyRequest).
		Outputs(keyContent).
		Branch(
			workflow.Branch{When: layoutIs(content.LayoutArticle, content.LayoutTutorial), Flow: researched},
			workflow.Branch{When: layoutIs(content.LayoutChangelog), Flow: direct},
		).
		Commit()
}

func layoutIs(layouts ...content.Layout) workflow.Predicate {
	return func(in workflow.Data) bool {
		req := requestFrom(in)
		if req == nil {
			return false
		}
		for _, l := range layouts {
			if req.Layout == string(l) {
				return true
			}
		}
		return false
	}
}

// finalizeStep is the only phase with side effects: it persists the content
// row once and closes the request.
func (e *Engine) finalizeStep() workflow.Step {
	return workflow.Step{ID: phaseFinalize, Requires: []string{keyRequest, phaseEdit}, Run: func(ctx context.Context, data workflow.Data) (workflow.Data, error) {
		req := requestFrom(data)
		edited, _ := phaseResult[DraftResult](data, phaseEdit)
		review, ok := phaseResult[ReviewResult](data, phaseReview)
		if !ok {
			return nil, &MissingFieldError{Phase: phaseFinalize, Field: phaseReview}
		}
		seo, ok := phaseResult[SEOResult](data, phaseSEO)
		if !ok {
			return nil, &MissingFieldError{Phase: phaseFinalize, Field: phaseSEO}
		}
		research, _ := phaseResult[ResearchResult](data, phaseResearch)

		words := len(strings.Fields(edited.Body))
		readTime := (words + 199) / 200
		if readTime < 1 {
			readTime = 1
		}

		slug, err := content.UniqueSlug(ctx, e.contents, edited.Title)
		if err != nil {
			return nil, fmt.Errorf("phase %s: %w", phaseFinalize, err)
		}

		c := &content.GeneratedContent{
			RequestID:       req.ID,
			Title:           edited.Title,
			Slug:            slug,
			Body:            edited.Body,
			Layout:          req.Layout,
			WordsCount:      words,
			ReadTimeMinutes: readTime,
			QualityScore:    review.Quality,
			ReviewNotes:     review.Notes,
			Keywords:        seo.Keywords,
			MetaDescription: seo.MetaDescription,
			Topics:          []string{req.Topic},
			Sources:         research.Sources,
			Status:          content.StatusDraft,
		}
		if err := e.contents.Save(ctx, c); err != nil {
			return nil, fmt.Errorf("phase %s: save content: %w", phaseFinalize, err)
		}
		if err := e.requests.MarkCompleted(ctx, req.ID, c.ID); err != nil {
			return nil, fmt.Errorf("phase %s: complete request: %w", phaseFinalize, err)
		}

		slog.InfoContext(ctx, "content finalized",
			"requestId", req.ID, "contentId", c.ID, "slug", c.Slug, "words", words)
		return workflow.Data{keyContent: c}, nil
	}}
}

// statusObserver publishes phase progress; the projection consumer applies
// it to the request row. Publish failures are logged, never fatal.
type statusObserver struct {
	publisher StatusPublisher
	requestID string
	layout    string
}

func (o *statusObserver) publish(ctx context.Context, st, message string) {
	err := o.publisher.Publish(ctx, status.Event{
		ContentID: o.requestID,
		Status:    st,
		Message:   message,
		Layout:    o.layout,
	})
	if err != nil {
		slog.WarnContext(ctx, "status event dropped", "error", err, "requestId", o.requestID)
	}
}

func (o *statusObserver) OnWorkflowStart(ctx context.Context, workflowID string) {
	o.publish(ctx, status.StatusPending, "generation started")
}

func (o *statusObserver) OnWorkflowCompleted(ctx context.Context, workflowID string) {}

func (o *statusObserver) OnWorkflowFailed(ctx context.Context, workflowID string, err error) {
	o.publish(ctx, status.StatusFailed, err.Error())
}

func (o *statusObserver) OnStepStart(ctx context.Context, workflowID, stepID string) {
	o.publish(ctx, status.StatusPending, "running "+stepID)
}

func (o *statusObserver) OnStepCompleted(ctx context.Context, workflowID, stepID string, err error, d time.Duration) {
	if err != nil {
		// The workflow-level failure event carries the error.
		return
	}
	o.publish(ctx, status.StatusPending, "completed "+stepID)
}
