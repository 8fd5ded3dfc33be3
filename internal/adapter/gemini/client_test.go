package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"inkwell/internal/adapter/gemini"
	"inkwell/internal/llm"
)

func TestEmbedder_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{
				"values": []float32{0.1, 0.2, 0.3},
			},
		})
	}))
	defer ts.Close()

	ctx := context.Background()
	embedder, err := gemini.NewEmbedder(ctx, "test-key", "embedding-test",
		option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer embedder.Close()

	vec, err := embedder.Embed(ctx, "hello world")
	assert.NoError(t, err)
	if assert.Len(t, vec, 3) {
		assert.Equal(t, float32(0.1), vec[0])
	}
}

func TestGenerator_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]interface{}{
							{"text": `{"title":"Hello"}`},
						},
						"role": "model",
					},
				},
			},
			"usageMetadata": map[string]interface{}{
				"promptTokenCount":     12,
				"candidatesTokenCount": 7,
				"totalTokenCount":      19,
			},
		})
	}))
	defer ts.Close()

	ctx := context.Background()
	generator, err := gemini.NewGenerator(ctx, "test-key", "generation-test",
		option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer generator.Close()

	res, err := generator.Generate(ctx, llm.Request{
		System:     "You are a test.",
		Prompt:     "Say hello.",
		JSONOutput: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Hello"}`, res.Text)
	assert.Equal(t, 12, res.Usage.PromptTokens)
	assert.Equal(t, 7, res.Usage.CompletionTokens)
	assert.Equal(t, 19, res.Usage.TotalTokens)
}

func TestGenerator_NoCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{},
		})
	}))
	defer ts.Close()

	ctx := context.Background()
	generator, err := gemini.NewGenerator(ctx, "test-key", "generation-test",
		option.WithEndpoint(ts.URL))
	require.NoError(t, err)
	defer generator.Close()

	_, err = generator.Generate(ctx, llm.Request{Prompt: "Say hello."})
	assert.Error(t, err)
}
