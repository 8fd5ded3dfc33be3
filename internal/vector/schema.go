package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// ClassName is the single Weaviate class holding distilled knowledge.
const ClassName = "KnowledgeChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema creates the KnowledgeChunk class when missing, and backfills
// any properties added since the class was first created. Safe to run on
// every boot.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "summary",
			DataType: []string{"text"},
		},
		{
			Name:     "category",
			DataType: []string{"string"},
		},
		{
			Name:     "keywords",
			DataType: []string{"string[]"},
		},
		{
			Name:     "agentId",
			DataType: []string{"string"}, // exact match, never tokenized
		},
		{
			Name:     "source",
			DataType: []string{"string"},
		},
		{
			Name:     "sourceType",
			DataType: []string{"string"},
		},
		{
			Name:     "sourceIdentifier",
			DataType: []string{"string"},
		},
		{
			Name:     "contentHash",
			DataType: []string{"string"},
		},
		{
			Name:     "confidence",
			DataType: []string{"number"},
		},
		{
			Name:     "createdAt",
			DataType: []string{"date"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "A distilled, scored knowledge chunk",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}
