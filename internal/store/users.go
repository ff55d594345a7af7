package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, first_name, last_name, subscription_tier, total_tasks_completed, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.SubscriptionTier, &u.TotalTasksCompleted, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type CreateUserParams struct {
	Email            string
	APIToken         string
	FirstName        *string
	LastName         *string
	SubscriptionTier string
}

func (s *Store) CreateUser(ctx context.Context, p CreateUserParams) (*User, error) {
	id := uuid.New()
	tier := p.SubscriptionTier
	if tier == "" {
		tier = "free"
	}
	q := `
INSERT INTO users (id, email, api_token, first_name, last_name, subscription_tier)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns + `;
`
	return scanUser(s.db.QueryRow(ctx, q, id, p.Email, p.APIToken, p.FirstName, p.LastName, tier))
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1;`
	return scanUser(s.db.QueryRow(ctx, q, id))
}

// GetUserByToken resolves a bearer credential to its user.
func (s *Store) GetUserByToken(ctx context.Context, token string) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE api_token = $1;`
	return scanUser(s.db.QueryRow(ctx, q, token))
}

// IncrementTasksCompleted bumps the user's completed-task counter in a
// single UPDATE. Concurrent completions for the same user serialize at
// the row, so no increment is lost.
func (s *Store) IncrementTasksCompleted(ctx context.Context, userID uuid.UUID) error {
	q := `
UPDATE users
SET total_tasks_completed = total_tasks_completed + 1
WHERE id = $1;
`
	tag, err := s.db.Exec(ctx, q, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
