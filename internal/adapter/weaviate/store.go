package weaviate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate/entities/models"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"inkwell/features/knowledge"
	"inkwell/internal/retrieval"
	"inkwell/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// objectID derives a stable UUID from the chunk identity so redelivered
// create jobs land on the same object instead of duplicating it.
func objectID(chunk knowledge.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ContentHash())).String()
}

func chunkProperties(chunk knowledge.Chunk) map[string]interface{} {
	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return map[string]interface{}{
		"content":          chunk.Content,
		"summary":          chunk.Summary,
		"category":         chunk.Category,
		"keywords":         chunk.Keywords,
		"agentId":          chunk.AgentID,
		"source":           chunk.Source,
		"sourceType":       chunk.SourceType,
		"sourceIdentifier": chunk.SourceIdentifier,
		"contentHash":      chunk.ContentHash(),
		"confidence":       chunk.Confidence,
		"createdAt":        createdAt.Format(time.RFC3339),
	}
}

// StoreChunk creates the chunk. A chunk that already exists under the same
// identity is left untouched and reported as success.
func (s *Store) StoreChunk(ctx context.Context, chunk knowledge.Chunk) error {
	creator := s.client.Data().Creator().
		WithClassName(vector.ClassName).
		WithID(objectID(chunk)).
		WithProperties(chunkProperties(chunk))
	if chunk.Vector != nil {
		creator = creator.WithVector(chunk.Vector)
	}

	_, err := creator.Do(ctx)
	if err != nil {
		var clientErr *fault.WeaviateClientError
		if errors.As(err, &clientErr) && clientErr.StatusCode == 422 {
			return nil
		}
		return err
	}
	return nil
}

func (s *Store) UpdateChunk(ctx context.Context, chunk knowledge.Chunk) error {
	updater := s.client.Data().Updater().
		WithClassName(vector.ClassName).
		WithID(objectID(chunk)).
		WithProperties(chunkProperties(chunk))
	if chunk.Vector != nil {
		updater = updater.WithVector(chunk.Vector)
	}
	return updater.Do(ctx)
}

func (s *Store) DeleteChunk(ctx context.Context, chunk knowledge.Chunk) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithOperator(filters.And).
			WithOperands([]*filters.WhereBuilder{
				filters.Where().
					WithPath([]string{"agentId"}).
					WithOperator(filters.Equal).
					WithValueString(chunk.AgentID),
				filters.Where().
					WithPath([]string{"contentHash"}).
					WithOperator(filters.Equal).
					WithValueString(chunk.ContentHash()),
			})).
		Do(ctx)
	return err
}

func (s *Store) SearchSimilar(ctx context.Context, agentID string, vec []float32, limit int, excludeSource string) ([]retrieval.SearchResult, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vec)

	operands := []*filters.WhereBuilder{
		filters.Where().
			WithPath([]string{"agentId"}).
			WithOperator(filters.Equal).
			WithValueString(agentID),
	}
	if excludeSource != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"source"}).
			WithOperator(filters.NotEqual).
			WithValueString(excludeSource))
	}
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands(operands)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "summary"},
		{Name: "category"},
		{Name: "source"},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []retrieval.SearchResult
	for _, props := range objects(res.Data) {
		result := decodeResult(props)

		// Cosine distance in [0,2]; similarity above 1 or below 0 means
		// the class was created with a different metric.
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				result.Similarity = float32(1 - distance)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *Store) ListBySource(ctx context.Context, agentID, source string, limit int) ([]retrieval.SearchResult, error) {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"agentId"}).
				WithOperator(filters.Equal).
				WithValueString(agentID),
			filters.Where().
				WithPath([]string{"source"}).
				WithOperator(filters.Equal).
				WithValueString(source),
		})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "summary"},
		{Name: "category"},
		{Name: "source"},
		{Name: "createdAt"},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithWhere(where).
		WithSort(graphql.Sort{Path: []string{"createdAt"}, Order: graphql.Desc}).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var results []retrieval.SearchResult
	for _, props := range objects(res.Data) {
		results = append(results, decodeResult(props))
	}
	return results, nil
}

func objects(data map[string]models.JSONObject) []map[string]interface{} {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := get[vector.ClassName].([]interface{})
	if !ok {
		return nil
	}

	var out []map[string]interface{}
	for _, r := range raw {
		if props, ok := r.(map[string]interface{}); ok {
			out = append(out, props)
		}
	}
	return out
}

func decodeResult(props map[string]interface{}) retrieval.SearchResult {
	var result retrieval.SearchResult
	if content, ok := props["content"].(string); ok {
		result.Content = content
	}
	if summary, ok := props["summary"].(string); ok {
		result.Summary = summary
	}
	if category, ok := props["category"].(string); ok {
		result.Category = category
	}
	if source, ok := props["source"].(string); ok {
		result.Source = source
	}
	if createdAt, ok := props["createdAt"].(string); ok {
		result.CreatedAt = createdAt
	}
	return result
}
