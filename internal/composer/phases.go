package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"inkwell/features/request"
	"inkwell/features/usage"
	"inkwell/internal/llm"
	"inkwell/internal/workflow"
)

// Phase output contracts. Each phase must produce its required fields or the
// run fails with a MissingFieldError; there is no partial credit for prose
// that almost parses.
type StrategyResult struct {
	Title          string   `json:"title"`
	Angle          string   `json:"angle"`
	Outline        []string `json:"outline"`
	TargetKeywords []string `json:"target_keywords"`
}

type ResearchResult struct {
	Facts   []string `json:"facts"`
	Sources []string `json:"sources"`
}

type DraftResult struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ReviewResult struct {
	Quality int    `json:"quality"`
	Notes   string `json:"notes"`
}

type SEOResult struct {
	Keywords        []string `json:"keywords"`
	MetaDescription string   `json:"meta_description"`
}

// MissingFieldError reports a phase whose structured output lacked a
// required field. Structural, not transient.
type MissingFieldError struct {
	Phase string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("phase %s: output missing required field %q", e.Phase, e.Field)
}

const (
	strategySystem = `You are a content strategist. Given a topic, brief, and supporting knowledge, produce a JSON object: {"title": string, "angle": string, "outline": [string], "target_keywords": [string]}. Output only JSON.`

	researchSystem = `You are a researcher. Given a topic and supporting knowledge, produce a JSON object: {"facts": [string], "sources": [string]}. Every fact must be concrete and attributable. Output only JSON.`

	writeSystem = `You are a writer. Given a strategy, research, and supporting knowledge, write the full piece in Markdown. Produce a JSON object: {"title": string, "body": string}. Honor the outline and the target length. Output only JSON.`

	editSystem = `You are an editor. Improve the draft for clarity, flow, and correctness without changing its meaning. Produce a JSON object: {"title": string, "body": string}. Output only JSON.`

	reviewSystem = `You are a reviewing editor. Assess the piece and produce a JSON object: {"quality": integer 0-100, "notes": markdown string explaining the score}. Output only JSON.`

	seoSystem = `You are an SEO specialist. For the piece, produce a JSON object: {"keywords": [string], "meta_description": string under 160 characters}. Output only JSON.`
)

// phaseResult reads a phase output whether the phase ran sequentially
// (merged flat) or inside a parallel group (namespaced by step ID).
func phaseResult[T any](data workflow.Data, id string) (T, bool) {
	var zero T
	v, ok := data[id]
	if !ok {
		return zero, false
	}
	if t, ok := v.(T); ok {
		return t, true
	}
	if nested, ok := v.(workflow.Data); ok {
		if t, ok := nested[id].(T); ok {
			return t, true
		}
	}
	return zero, false
}

func requestFrom(data workflow.Data) *request.ContentRequest {
	req, _ := data[keyRequest].(*request.ContentRequest)
	return req
}

func ragFrom(data workflow.Data) string {
	rag, _ := data[keyRAG].(string)
	return rag
}

// decodeObject tolerates the fenced and noise-wrapped JSON generation models
// habitually produce.
func decodeObject(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in output")
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), v)
}

// generate runs one model call for a phase and records its token usage.
// Usage from a successful call survives any later phase failure.
func (e *Engine) generate(ctx context.Context, phase string, req *request.ContentRequest, system, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	res, err := e.generator.Generate(callCtx, llm.Request{
		System:     system,
		Prompt:     prompt,
		JSONOutput: true,
	})
	if err != nil {
		return "", fmt.Errorf("phase %s: %w", phase, err)
	}

	e.usage.Record(ctx, usage.Event{
		RequestID:        req.ID,
		Phase:            phase,
		Model:            e.model,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
	})
	return res.Text, nil
}

func (e *Engine) strategyStep() workflow.Step {
	return workflow.Step{ID: phaseStrategy, Requires: []string{keyRequest}, Run: func(ctx context.Context, data workflow.Data) (workflow.Data, error) {
		req := requestFrom(data)

		var b strings.Builder
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
		if req.BriefDescription != "" {
			fmt.Fprintf(&b, "Brief: %s\n", req.BriefDescription)
		}
		fmt.Fprintf(&b, "Layout: %s\nTarget length: %d words\n", req.Layout, req.TargetLength)
		if rag := ragFrom(data); rag != "" {
			fmt.Fprintf(&b, "\n%s\n", rag)
		}

		out, err := e.generate(ctx, phaseStrategy, req, strategySystem, b.String())
		if err != nil {
			return nil, err
		}

		var res StrategyResult
		if err := decodeObject(out, &res); err != nil {
			return nil, fmt.Errorf("phase %s: %w", phaseStrategy, err)
		}
		if res.Title == "" {
			return nil, &MissingFieldError{Phase: phaseStrategy, Field: "title"}
		}
		if len(res.Outline) == 0 {
			return nil, &MissingFieldError{Phase: phaseStrategy, Field: "outline"}
		}
		return workflow.Data{phaseStrategy: res}, nil
	}}
}

func (e *Engine) researchStep() workflow.Step {
	return workflow.Step{ID: phaseResearch, Requires: []string{keyRequest}, Run: func(ctx context.Context, data workflow.Data) (workflow.Data, error) {
		req := requestFrom(data)

		var b strings.Builder
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
		if req.BriefDescription != "" {
			fmt.Fprintf(&b, "Brief: %s\n", req.BriefDescription)
		}
		if rag := ragFrom(data); rag != "" {
			fmt.Fprintf(&b, "\n%s\n", rag)
		}

		out, err := e.generate(ctx, phaseResearch, req, researchSystem, b.String())
		if err != nil {
			return nil, err
		}

		var res ResearchResult
		if err := decodeObject(out, &res); err != nil {
			return nil, fmt.Errorf("phase %s: %w", phaseResearch, err)
		}
		return workflow.Data{phaseResearch: res}, nil
	}}
}

func (e *Engine) writeStep() workflow.Step {
	return workflow.Step{ID: phaseWrite, Requires: []string{keyRequest}, Run: func(ctx context.Context, data workflow.Data) (workflow.Data, error) {
		req := requestFrom(data)
		strategy, ok := phaseResult[StrategyResult](data, phaseStrategy)
		if !ok {
			return nil, &MissingFieldError{Phase: phaseWrite, Field: phaseStrategy}
		}
		research, _ := phaseResult[ResearchResult](data, phaseResearch)

		var b strings.Builder
		fmt.Fprintf(&b, "Topic: %s\nLayout: %s\nTarget length: %d words\n", req.Topic, req.Layout, req.TargetLength)
		fmt.Fprintf(&b, "\nTitle: %s\nAngle: %s\nOutline:\n", strategy.Title, strategy.Angle)
		for _, section := range strategy.Outline {
			fmt.Fprintf(&b, "- %s\n", section)
		}
		if len(research.Facts) > 0 {
			b.WriteString("\nResearch facts:\n")
			for _, f := range research.Facts {
				fmt.Fprintf(&b, "- %s\n", f)
			}
		}
		if rag := ragFrom(data); rag != "" {
			fmt.Fprintf(&b, "\n%s\n", rag)
		}

		out, err := e.generate(ctx, phaseWrite, req, writeSystem, b.String())
		if err != nil {
			return nil, err
		}

		var res DraftResult
		if err := decodeObject(out, &res); err != nil {
			return nil, fmt.Errorf("phase %s: %w", phaseWrite, err)
		}
		if res.Body == "" {
			return nil, &MissingFieldError{Phase: phaseWrite, Field: "body"}
		}
		if res.Title == "" {
			res.Title = strategy.Title
		}
		return workflow.Data{phaseWrite: res}, nil
	}}
}

func (e *Engine) editStep() workflow.Step {
	return workflow.Step{ID: phaseEdit, Requires: []string{keyRequest, phaseWrite}, Run: func(ctx context.Context, data workflow.Data) (workflow.Data, error) {
		req := requestFrom(data)
		draft, ok := phaseResult[DraftResult](data, phaseWrite)
		if !ok {
			return nil, &MissingFieldError{Phase: phaseEdit, Field: phaseWrite}
		}

		prompt := fmt.Sprintf("Title: %s\n\n%s", draft.Title, draft.Body)
		out, err := e.generate(ctx, phaseEdit, req, editSystem, prompt)
		if err != nil {
			return nil, err
		}

		var res DraftResult
		if err := decodeObject(out, &res); err != nil {
			return nil, fmt.Errorf("phase %s: %w", phaseEdit, err)
		}
		if res.Body == "" {
			return nil, &MissingFieldError{Phase: phaseEdit, Field: "body"}
		}
		if res.Title == "" {
			res.Title = draft.Title
		}
		return workflow.Data{phaseEdit: res}, nil
	}}
}

func (e *Engine) reviewStep() workflow.Step {
	return workflow.Step{ID: phaseReview, Requires: []string{keyRequest, phaseEdit}, Run: func(ctx context.Context, data workflow.Data) (workflow.Data, error) {
		req := requestFrom(data)
		edited, _ := phaseResult[DraftResult](data, phaseEdit)

		out, err := e.generate(ctx, phaseReview, req, reviewSystem, edited.Body)
		if err != nil {
			return nil, err
		}

		var res ReviewResult
		if err := decodeObject(out, &res); err != nil {
			return nil, fmt.Errorf("phase %s: %w", phaseReview, err)
		}
		if res.Notes == "" {
			return nil, &MissingFieldError{Phase: phaseReview, Field: "notes"}
		}
		if res.Quality < 0 {
			res.Quality = 0
		}
		if res.Quality > 100 {
			res.Quality = 100
		}
		return workflow.Data{phaseReview: res}, nil
	}}
}

func (e *Engine) seoStep() workflow.Step {
	return workflow.Step{ID: phaseSEO, Requires: []string{keyRequest, phaseEdit}, Run: func(ctx context.Context, data workflow.Data) (workflow.Data, error) {
		req := requestFrom(data)
		edited, _ := phaseResult[DraftResult](data, phaseEdit)

		out, err := e.generate(ctx, phaseSEO, req, seoSystem, edited.Body)
		if err != nil {
			return nil, err
		}

		var res SEOResult
		if err := decodeObject(out, &res); err != nil {
			return nil, fmt.Errorf("phase %s: %w", phaseSEO, err)
		}
		if res.MetaDescription == "" {
			return nil, &MissingFieldError{Phase: phaseSEO, Field: "meta_description"}
		}
		return workflow.Data{phaseSEO: res}, nil
	}}
}
