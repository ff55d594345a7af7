package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CreateResultParams struct {
	TaskID       uuid.UUID
	ResultType   ResultType
	Content      *string
	FileURL      *string
	Metadata     []byte // JSON, may be nil
	QualityScore float64
}

func (s *Store) CreateResult(ctx context.Context, p CreateResultParams) (*Result, error) {
	id := uuid.New()

	meta := p.Metadata
	if len(meta) == 0 {
		meta = []byte(`{}`)
	}

	q := `
INSERT INTO task_results (id, task_id, result_type, content, file_url, metadata, quality_score)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
RETURNING id, task_id, result_type, content, file_url, metadata, quality_score, created_at;
`
	return scanResult(s.db.QueryRow(ctx, q,
		id, p.TaskID, string(p.ResultType), p.Content, p.FileURL, meta, p.QualityScore,
	))
}

func (s *Store) ListResultsByTask(ctx context.Context, taskID uuid.UUID, limit int) ([]Result, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := `
SELECT id, task_id, result_type, content, file_url, metadata, quality_score, created_at
FROM task_results
WHERE task_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := s.db.Query(ctx, q, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanResult(row pgx.Row) (*Result, error) {
	var r Result
	err := row.Scan(
		&r.ID, &r.TaskID, &r.ResultType, &r.Content, &r.FileURL, &r.Metadata, &r.QualityScore, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
