package request_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/features/content"
	"inkwell/features/request"
	"inkwell/internal/testutils"
)

func TestRequestRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	requestRepo := request.NewPostgresRepo(s.DB)
	contentRepo := content.NewPostgresRepo(s.DB)
	ctx := context.Background()

	req := &request.ContentRequest{
		AgentID:          "agent-1",
		Topic:            "Deploying Go services",
		BriefDescription: "Practical walkthrough",
		TargetLength:     1200,
		Layout:           "article",
		Embedding:        []float64{0.1, 0.2, 0.3},
		Status:           request.StatusPending,
	}
	err := requestRepo.Save(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, req.ID)

	loaded, err := requestRepo.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deploying Go services", loaded.Topic)
	assert.False(t, loaded.Approved)
	assert.Equal(t, request.StatusPending, loaded.Status)

	// Approve and verify the projection fields follow.
	require.NoError(t, requestRepo.SetApproved(ctx, req.ID))
	loaded, err = requestRepo.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Approved)
	assert.Equal(t, request.StatusProcessing, loaded.Status)

	require.NoError(t, requestRepo.UpdateStatus(ctx, req.ID, request.StatusProcessing, "running write"))
	loaded, err = requestRepo.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "running write", loaded.StatusMessage)

	// Persist content and complete the request.
	c := &content.GeneratedContent{
		RequestID: req.ID,
		Title:     "Deploying Go Services",
		Slug:      "deploying-go-services",
		Body:      "Ship it.",
		Layout:    "article",
		Status:    content.StatusDraft,
		Keywords:  []string{"go", "deploy"},
		Topics:    []string{"devops"},
		Sources:   []string{"https://example.com"},
	}
	require.NoError(t, contentRepo.Save(ctx, c))
	require.NotEmpty(t, c.ID)

	require.NoError(t, requestRepo.MarkCompleted(ctx, req.ID, c.ID))
	loaded, err = requestRepo.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsCompleted)
	require.NotNil(t, loaded.GeneratedContentID)
	assert.Equal(t, c.ID, *loaded.GeneratedContentID)

	bySlug, err := contentRepo.GetBySlug(ctx, "deploying-go-services")
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySlug.ID)
	assert.Equal(t, []string{"go", "deploy"}, bySlug.Keywords)

	exists, err := contentRepo.SlugExists(ctx, "deploying-go-services")
	require.NoError(t, err)
	assert.True(t, exists)

	// A second request can still be failed independently.
	req2 := &request.ContentRequest{
		AgentID: "agent-1",
		Topic:   "Another topic",
		Layout:  "changelog",
		Status:  request.StatusPending,
	}
	require.NoError(t, requestRepo.Save(ctx, req2))
	require.NoError(t, requestRepo.MarkFailed(ctx, req2.ID, "model unavailable"))
	loaded2, err := requestRepo.Get(ctx, req2.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusFailed, loaded2.Status)
	assert.Equal(t, "model unavailable", loaded2.StatusMessage)
	assert.False(t, loaded2.IsCompleted)
}
