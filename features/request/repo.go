package request

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

func (r *PostgresRepo) Save(ctx context.Context, req *ContentRequest) error {
	query := `INSERT INTO content_requests (agent_id, topic, brief_description, target_length, layout, embedding, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		req.AgentID, req.Topic, req.BriefDescription, req.TargetLength, req.Layout,
		pq.Array(req.Embedding), req.Status).Scan(&req.ID)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*ContentRequest, error) {
	req := &ContentRequest{}
	query := `SELECT id, agent_id, topic, brief_description, target_length, layout, approved, is_completed,
		generated_content_id, status, status_message, created_at, updated_at
		FROM content_requests WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.AgentID, &req.Topic, &req.BriefDescription, &req.TargetLength, &req.Layout,
		&req.Approved, &req.IsCompleted, &req.GeneratedContentID, &req.Status, &req.StatusMessage,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]ContentRequest, error) {
	query := `SELECT id, agent_id, topic, brief_description, target_length, layout, approved, is_completed,
		generated_content_id, status, status_message, created_at, updated_at
		FROM content_requests ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []ContentRequest
	for rows.Next() {
		var req ContentRequest
		if err := rows.Scan(
			&req.ID, &req.AgentID, &req.Topic, &req.BriefDescription, &req.TargetLength, &req.Layout,
			&req.Approved, &req.IsCompleted, &req.GeneratedContentID, &req.Status, &req.StatusMessage,
			&req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r *PostgresRepo) SetApproved(ctx context.Context, id string) error {
	query := `UPDATE content_requests SET approved = TRUE, status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, StatusProcessing, id)
	return err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status, message string) error {
	query := `UPDATE content_requests SET status = $1, status_message = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, message, id)
	return err
}

// MarkCompleted links the generated content and closes the request in one
// statement so a crash between the two cannot leave a half-finished row.
func (r *PostgresRepo) MarkCompleted(ctx context.Context, id, contentID string) error {
	query := `UPDATE content_requests SET is_completed = TRUE, status = $1, generated_content_id = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, StatusCompleted, contentID, id)
	return err
}

// MarkFailed records the failure and keeps the request resubmittable.
func (r *PostgresRepo) MarkFailed(ctx context.Context, id, message string) error {
	query := `UPDATE content_requests SET status = $1, status_message = $2, is_completed = FALSE, updated_at = NOW() WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, StatusFailed, message, id)
	return err
}
