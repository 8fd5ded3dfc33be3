package content

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const columns = `id, request_id, title, slug, body, layout, words_count, read_time_minutes,
	quality_score, review_notes, keywords, meta_description, topics, sources, status, created_at`

func (r *PostgresRepo) Save(ctx context.Context, c *GeneratedContent) error {
	query := `INSERT INTO generated_contents
		(request_id, title, slug, body, layout, words_count, read_time_minutes, quality_score,
		 review_notes, keywords, meta_description, topics, sources, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		c.RequestID, c.Title, c.Slug, c.Body, c.Layout, c.WordsCount, c.ReadTimeMinutes,
		c.QualityScore, c.ReviewNotes, pq.Array(c.Keywords), c.MetaDescription,
		pq.Array(c.Topics), pq.Array(c.Sources), c.Status).Scan(&c.ID)
}

func (r *PostgresRepo) scanRow(row interface{ Scan(...any) error }, c *GeneratedContent) error {
	return row.Scan(
		&c.ID, &c.RequestID, &c.Title, &c.Slug, &c.Body, &c.Layout, &c.WordsCount,
		&c.ReadTimeMinutes, &c.QualityScore, &c.ReviewNotes, pq.Array(&c.Keywords),
		&c.MetaDescription, pq.Array(&c.Topics), pq.Array(&c.Sources), &c.Status, &c.CreatedAt)
}

func (r *PostgresRepo) GetBySlug(ctx context.Context, slug string) (*GeneratedContent, error) {
	c := &GeneratedContent{}
	query := `SELECT ` + columns + ` FROM generated_contents WHERE slug = $1`
	if err := r.scanRow(r.db.QueryRowContext(ctx, query, slug), c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*GeneratedContent, error) {
	c := &GeneratedContent{}
	query := `SELECT ` + columns + ` FROM generated_contents WHERE id = $1`
	if err := r.scanRow(r.db.QueryRowContext(ctx, query, id), c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]GeneratedContent, error) {
	query := `SELECT ` + columns + ` FROM generated_contents ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contents []GeneratedContent
	for rows.Next() {
		var c GeneratedContent
		if err := r.scanRow(rows, &c); err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// SlugExists backs slug collision probing.
func (r *PostgresRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM generated_contents WHERE slug = $1)`
	err := r.db.QueryRowContext(ctx, query, slug).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
