package content_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/features/content"
)

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := content.NewPostgresRepo(db)

	c := &content.GeneratedContent{
		RequestID:       "req-1",
		Title:           "Hello World",
		Slug:            "hello-world",
		Body:            "# Hello",
		Layout:          "article",
		WordsCount:      420,
		ReadTimeMinutes: 3,
		QualityScore:    88,
		ReviewNotes:     "solid",
		Keywords:        []string{"hello"},
		MetaDescription: "greeting",
		Topics:          []string{"intro"},
		Sources:         []string{},
		Status:          content.StatusDraft,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO generated_contents")).
		WithArgs(c.RequestID, c.Title, c.Slug, c.Body, c.Layout, c.WordsCount, c.ReadTimeMinutes,
			c.QualityScore, c.ReviewNotes, pq.Array(c.Keywords), c.MetaDescription,
			pq.Array(c.Topics), pq.Array(c.Sources), c.Status).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("content-1"))

	require.NoError(t, repo.Save(context.Background(), c))
	assert.Equal(t, "content-1", c.ID)
}

func TestPostgresRepo_SlugExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := content.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM generated_contents WHERE slug = $1)")).
		WithArgs("hello-world").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.SlugExists(context.Background(), "hello-world")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresRepo_GetBySlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := content.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{
		"id", "request_id", "title", "slug", "body", "layout", "words_count", "read_time_minutes",
		"quality_score", "review_notes", "keywords", "meta_description", "topics", "sources", "status", "created_at",
	}).AddRow("content-1", "req-1", "Hello", "hello", "body", "article", 100, 1,
		90, "", "{hello}", "meta", "{intro}", "{}", "draft", "2026-01-01T00:00:00Z")

	mock.ExpectQuery("SELECT .+ FROM generated_contents WHERE slug").
		WithArgs("hello").
		WillReturnRows(rows)

	c, err := repo.GetBySlug(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "content-1", c.ID)
	assert.Equal(t, []string{"hello"}, c.Keywords)
}
