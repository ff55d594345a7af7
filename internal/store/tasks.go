package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, user_id, type, category, title, description, input_data, priority, status, progress, version, created_at, started_at, completed_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Category, &t.Title, &t.Description, &t.InputData,
		&t.Priority, &t.Status, &t.Progress, &t.Version, &t.CreatedAt, &t.StartedAt, &t.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type CreateTaskParams struct {
	UserID      uuid.UUID
	Type        TaskType
	Category    string
	Title       string
	Description string
	InputData   []byte // JSON, may be nil
	Priority    TaskPriority
}

func (s *Store) CreateTask(ctx context.Context, p CreateTaskParams) (*Task, error) {
	id := uuid.New()

	input := p.InputData
	if len(input) == 0 {
		input = []byte(`{}`)
	}

	q := `
INSERT INTO ai_tasks (id, user_id, type, category, title, description, input_data, priority, status)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, 'pending')
RETURNING ` + taskColumns + `;
`
	return scanTask(s.db.QueryRow(ctx, q,
		id, p.UserID, string(p.Type), p.Category, p.Title, p.Description, input, string(p.Priority),
	))
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	q := `SELECT ` + taskColumns + ` FROM ai_tasks WHERE id = $1;`
	return scanTask(s.db.QueryRow(ctx, q, id))
}

// GetUserTask fetches a task only if it belongs to userID.
func (s *Store) GetUserTask(ctx context.Context, userID, taskID uuid.UUID) (*Task, error) {
	q := `SELECT ` + taskColumns + ` FROM ai_tasks WHERE id = $1 AND user_id = $2;`
	return scanTask(s.db.QueryRow(ctx, q, taskID, userID))
}

type ListTasksParams struct {
	UserID uuid.UUID
	Status *TaskStatus
	Type   *TaskType
	Limit  int
	Offset int
}

func (s *Store) ListTasks(ctx context.Context, p ListTasksParams) ([]Task, error) {
	limit := p.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	// simple filter building (safe parameterization)
	q := `
SELECT ` + taskColumns + `
FROM ai_tasks
WHERE user_id = $1
  AND ($2::text IS NULL OR status = $2)
  AND ($3::text IS NULL OR type = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5;
`

	var status, taskType *string
	if p.Status != nil {
		sv := string(*p.Status)
		status = &sv
	}
	if p.Type != nil {
		tv := string(*p.Type)
		taskType = &tv
	}

	rows, err := s.db.Query(ctx, q, p.UserID, status, taskType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Task, 0, limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimTask moves a pending task to processing and stamps started_at.
// The status predicate makes the claim atomic: of two concurrent
// executions for the same id, exactly one gets the row. The loser sees
// ErrVersionConflict (or ErrNotFound if the id never existed).
func (s *Store) ClaimTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	q := `
UPDATE ai_tasks
SET status = 'processing',
    started_at = now(),
    version = version + 1
WHERE id = $1 AND status = 'pending'
RETURNING ` + taskColumns + `;
`
	t, err := scanTask(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, ErrNotFound) {
		// either missing or already claimed; check existence
		if _, getErr := s.GetTask(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrVersionConflict
	}
	return t, err
}

// CompleteTask moves a processing task to its completed terminal state.
// Progress jumps to 100 and completed_at is stamped in the same write,
// so no reader can observe completed with partial progress.
func (s *Store) CompleteTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	q := `
UPDATE ai_tasks
SET status = 'completed',
    progress = 100,
    completed_at = now(),
    version = version + 1
WHERE id = $1 AND status = 'processing'
RETURNING ` + taskColumns + `;
`
	t, err := scanTask(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetTask(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrVersionConflict
	}
	return t, err
}

// FailTask moves a processing task to its failed terminal state with
// progress reset to zero.
func (s *Store) FailTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	q := `
UPDATE ai_tasks
SET status = 'failed',
    progress = 0,
    completed_at = now(),
    version = version + 1
WHERE id = $1 AND status = 'processing'
RETURNING ` + taskColumns + `;
`
	t, err := scanTask(s.db.QueryRow(ctx, q, id))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.GetTask(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrVersionConflict
	}
	return t, err
}

// TaskStats aggregates a user's tasks for the dashboard.
type TaskStats struct {
	Total       int            `json:"total_tasks"`
	Completed   int            `json:"completed_tasks"`
	Pending     int            `json:"pending_tasks"`
	Processing  int            `json:"processing_tasks"`
	Failed      int            `json:"failed_tasks"`
	ByType      map[string]int `json:"tasks_by_type"`
	SuccessRate float64        `json:"success_rate"`
}

func (s *Store) GetTaskStats(ctx context.Context, userID uuid.UUID) (*TaskStats, error) {
	q := `
SELECT status, type, count(*)
FROM ai_tasks
WHERE user_id = $1
GROUP BY status, type;
`
	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &TaskStats{ByType: map[string]int{
		string(TypeMarketing):   0,
		string(TypeDesign):      0,
		string(TypeDevelopment): 0,
	}}

	for rows.Next() {
		var status, taskType string
		var n int
		if err := rows.Scan(&status, &taskType, &n); err != nil {
			return nil, err
		}
		stats.Total += n
		stats.ByType[taskType] += n
		switch TaskStatus(status) {
		case StatusPending:
			stats.Pending += n
		case StatusProcessing:
			stats.Processing += n
		case StatusCompleted:
			stats.Completed += n
		case StatusFailed:
			stats.Failed += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats, nil
}
