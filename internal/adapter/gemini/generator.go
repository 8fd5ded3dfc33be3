package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"inkwell/internal/llm"
)

// Generator calls the Gemini generation API. One client serves every
// workflow phase and the distillation pipeline.
type Generator struct {
	client *genai.Client
	model  string
}

func NewGenerator(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Generator, error) {
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Generator{client: client, model: model}, nil
}

func (g *Generator) Generate(ctx context.Context, req llm.Request) (*llm.Result, error) {
	model := g.client.GenerativeModel(g.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSONOutput {
		model.GenerationConfig.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "model", g.model, "error", err)
		return nil, err
	}

	result := &llm.Result{}
	if resp.UsageMetadata != nil {
		result.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				result.Text += string(text)
			}
		}
	}

	if result.Text == "" {
		return nil, fmt.Errorf("generation returned no text candidates")
	}
	return result, nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}
