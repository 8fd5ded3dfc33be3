// Package retrieval assembles the knowledge context injected into generation
// prompts: similarity-ranked chunks for the topic plus the most recent brand
// voice material.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultTopK bounds how many chunks a topic query may contribute.
	DefaultTopK = 10

	// SimilarityFloor drops weak matches; below this a chunk adds noise,
	// not grounding.
	SimilarityFloor = 0.5

	// DefaultBrandK is how many recent brand-voice chunks are injected.
	DefaultBrandK = 5

	brandSource = "brand_knowledge"
)

type SearchResult struct {
	Content    string  `json:"content"`
	Summary    string  `json:"summary"`
	Category   string  `json:"category"`
	Source     string  `json:"source"`
	Similarity float32 `json:"similarity"`
	CreatedAt  string  `json:"createdAt,omitempty"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	// SearchSimilar returns up to limit chunks for the agent ranked by
	// vector similarity, skipping chunks from excludeSource.
	SearchSimilar(ctx context.Context, agentID string, vector []float32, limit int, excludeSource string) ([]SearchResult, error)

	// ListBySource returns the agent's newest chunks from one source.
	ListBySource(ctx context.Context, agentID, source string, limit int) ([]SearchResult, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	logger   *QueryLogger

	topK   int
	floor  float32
	brandK int
}

func NewService(e Embedder, s VectorStore, l *QueryLogger) *Service {
	return &Service{
		embedder: e,
		store:    s,
		logger:   l,
		topK:     DefaultTopK,
		floor:    SimilarityFloor,
		brandK:   DefaultBrandK,
	}
}

// TopicContext embeds the query and returns chunks above the similarity
// floor, strictly descending. Brand material is excluded here; it has its own
// channel into the prompt.
func (s *Service) TopicContext(ctx context.Context, agentID, query string) ([]SearchResult, error) {
	start := time.Now()

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := s.store.SearchSimilar(ctx, agentID, vec, s.topK, brandSource)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	filtered := docs[:0]
	for _, d := range docs {
		if d.Similarity >= s.floor {
			filtered = append(filtered, d)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Similarity > filtered[j].Similarity
	})

	if s.logger != nil {
		s.logger.Log(ctx, QueryLogEntry{
			Query:      query,
			AgentID:    agentID,
			NumResults: len(filtered),
			Duration:   time.Since(start),
		})
	}
	return filtered, nil
}

// BrandContext returns the agent's most recent brand-voice chunks. No
// similarity ranking; brand material applies to every topic.
func (s *Service) BrandContext(ctx context.Context, agentID string) ([]SearchResult, error) {
	return s.store.ListBySource(ctx, agentID, brandSource, s.brandK)
}

// BuildContext assembles the prompt grounding block. Either half failing is
// logged and dropped; generation runs on whatever survived, possibly nothing.
func (s *Service) BuildContext(ctx context.Context, agentID, topic string) string {
	var b strings.Builder

	topical, err := s.TopicContext(ctx, agentID, topic)
	if err != nil {
		slog.WarnContext(ctx, "topic retrieval failed, continuing without it", "error", err, "agentId", agentID)
	}
	if len(topical) > 0 {
		b.WriteString("## Relevant Knowledge\n")
		for _, r := range topical {
			writeEntry(&b, r)
		}
	}

	brand, err := s.BrandContext(ctx, agentID)
	if err != nil {
		slog.WarnContext(ctx, "brand retrieval failed, continuing without it", "error", err, "agentId", agentID)
	}
	if len(brand) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Brand Voice\n")
		for _, r := range brand {
			writeEntry(&b, r)
		}
	}

	return b.String()
}

func writeEntry(b *strings.Builder, r SearchResult) {
	b.WriteString("- ")
	if r.Summary != "" {
		b.WriteString(r.Summary)
		b.WriteString(": ")
	}
	b.WriteString(r.Content)
	b.WriteString("\n")
}
