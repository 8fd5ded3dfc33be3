package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, e.err
}

type stubStore struct {
	similar     []SearchResult
	similarErr  error
	bySource    []SearchResult
	bySourceErr error
	gotExclude  string
	gotSource   string
	gotLimit    int
	gotBrandK   int
}

func (s *stubStore) SearchSimilar(ctx context.Context, agentID string, vector []float32, limit int, excludeSource string) ([]SearchResult, error) {
	s.gotExclude = excludeSource
	s.gotLimit = limit
	return s.similar, s.similarErr
}

func (s *stubStore) ListBySource(ctx context.Context, agentID, source string, limit int) ([]SearchResult, error) {
	s.gotSource = source
	s.gotBrandK = limit
	return s.bySource, s.bySourceErr
}

func TestTopicContext(t *testing.T) {
	t.Run("filters below floor and sorts descending", func(t *testing.T) {
		store := &stubStore{similar: []SearchResult{
			{Content: "weak", Similarity: 0.42},
			{Content: "good", Similarity: 0.71},
			{Content: "best", Similarity: 0.93},
			{Content: "edge", Similarity: 0.5},
		}}
		svc := NewService(&stubEmbedder{vec: []float32{0.1}}, store, nil)

		results, err := svc.TopicContext(context.Background(), "agent-1", "deployment strategies")
		require.NoError(t, err)

		require.Len(t, results, 3)
		assert.Equal(t, "best", results[0].Content)
		assert.Equal(t, "good", results[1].Content)
		assert.Equal(t, "edge", results[2].Content, "floor is inclusive")
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i].Similarity, results[i-1].Similarity)
		}
	})

	t.Run("excludes brand source and caps at top K", func(t *testing.T) {
		store := &stubStore{}
		svc := NewService(&stubEmbedder{vec: []float32{0.1}}, store, nil)

		_, err := svc.TopicContext(context.Background(), "agent-1", "q")
		require.NoError(t, err)
		assert.Equal(t, brandSource, store.gotExclude)
		assert.Equal(t, DefaultTopK, store.gotLimit)
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		svc := NewService(&stubEmbedder{err: errors.New("quota")}, &stubStore{}, nil)

		_, err := svc.TopicContext(context.Background(), "agent-1", "q")
		assert.ErrorContains(t, err, "embed query")
	})
}

func TestBrandContext(t *testing.T) {
	store := &stubStore{bySource: []SearchResult{{Content: "voice"}}}
	svc := NewService(&stubEmbedder{}, store, nil)

	results, err := svc.BrandContext(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, brandSource, store.gotSource)
	assert.Equal(t, DefaultBrandK, store.gotBrandK)
}

func TestBuildContext(t *testing.T) {
	t.Run("labels both sections", func(t *testing.T) {
		store := &stubStore{
			similar:  []SearchResult{{Content: "k8s rollout steps", Summary: "Rollouts", Similarity: 0.9}},
			bySource: []SearchResult{{Content: "We write in second person."}},
		}
		svc := NewService(&stubEmbedder{vec: []float32{0.1}}, store, nil)

		block := svc.BuildContext(context.Background(), "agent-1", "deployments")

		assert.Contains(t, block, "## Relevant Knowledge")
		assert.Contains(t, block, "Rollouts: k8s rollout steps")
		assert.Contains(t, block, "## Brand Voice")
		assert.Contains(t, block, "We write in second person.")
		assert.Less(t, strings.Index(block, "## Relevant Knowledge"), strings.Index(block, "## Brand Voice"))
	})

	t.Run("degrades to empty on total failure", func(t *testing.T) {
		store := &stubStore{similarErr: errors.New("down"), bySourceErr: errors.New("down")}
		svc := NewService(&stubEmbedder{vec: []float32{0.1}}, store, nil)

		block := svc.BuildContext(context.Background(), "agent-1", "deployments")
		assert.Empty(t, block)
	})

	t.Run("keeps brand section when topic retrieval fails", func(t *testing.T) {
		store := &stubStore{
			similarErr: errors.New("down"),
			bySource:   []SearchResult{{Content: "friendly tone"}},
		}
		svc := NewService(&stubEmbedder{vec: []float32{0.1}}, store, nil)

		block := svc.BuildContext(context.Background(), "agent-1", "deployments")
		assert.NotContains(t, block, "## Relevant Knowledge")
		assert.Contains(t, block, "## Brand Voice")
	})
}
