package usage

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, event Event) error {
	query := `INSERT INTO usage_events (request_id, phase, model, prompt_tokens, completion_tokens, total_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		event.RequestID, event.Phase, event.Model,
		event.PromptTokens, event.CompletionTokens, event.TotalTokens, event.CreatedAt)
	return err
}

func (r *PostgresRepo) Summarize(ctx context.Context, requestID string) (*Summary, error) {
	s := &Summary{RequestID: requestID}
	query := `SELECT COUNT(*), COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COALESCE(SUM(total_tokens), 0)
		FROM usage_events WHERE request_id = $1`
	err := r.db.QueryRowContext(ctx, query, requestID).Scan(
		&s.Calls, &s.PromptTokens, &s.CompletionTokens, &s.TotalTokens)
	if err != nil {
		return nil, err
	}
	return s, nil
}
