package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrGrantNotFound = errors.New("thread grant not found")

type GrantRepo struct {
	pool *pgxpool.Pool
}

type GrantRecord struct {
	ThreadID  string
	UserID    string
	GrantedBy string
	CreatedAt time.Time
}

func NewGrantRepo(pool *pgxpool.Pool) *GrantRepo {
	return &GrantRepo{pool: pool}
}

func (r *GrantRepo) Add(ctx context.Context, grant GrantRecord) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if grant.ThreadID == "" || grant.UserID == "" {
		return fmt.Errorf("invalid grant payload")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO thread_grants (thread_id, user_id, granted_by, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (thread_id, user_id) DO NOTHING
`, grant.ThreadID, grant.UserID, grant.GrantedBy); err != nil {
		return fmt.Errorf("insert thread grant: %w", err)
	}

	return nil
}

func (r *GrantRepo) Remove(ctx context.Context, threadID, userID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if threadID == "" || userID == "" {
		return fmt.Errorf("invalid grant key")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM thread_grants
WHERE thread_id = $1 AND user_id = $2
`, threadID, userID)
	if err != nil {
		return fmt.Errorf("delete thread grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGrantNotFound
	}

	return nil
}

func (r *GrantRepo) Exists(ctx context.Context, threadID, userID string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM thread_grants WHERE thread_id = $1 AND user_id = $2
)
`, threadID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check thread grant: %w", err)
	}

	return exists, nil
}

func (r *GrantRepo) ListByThread(ctx context.Context, threadID string) ([]GrantRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT thread_id, user_id, granted_by, created_at
FROM thread_grants
WHERE thread_id = $1
ORDER BY created_at ASC
`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list thread grants: %w", err)
	}
	defer rows.Close()

	var out []GrantRecord
	for rows.Next() {
		var g GrantRecord
		if err := rows.Scan(&g.ThreadID, &g.UserID, &g.GrantedBy, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread grant: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread grants: %w", err)
	}

	return out, nil
}

func (r *GrantRepo) ListAll(ctx context.Context) ([]GrantRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT thread_id, user_id, granted_by, created_at
FROM thread_grants
ORDER BY thread_id, created_at
`)
	if err != nil {
		return nil, fmt.Errorf("list all thread grants: %w", err)
	}
	defer rows.Close()

	var out []GrantRecord
	for rows.Next() {
		var g GrantRecord
		if err := rows.Scan(&g.ThreadID, &g.UserID, &g.GrantedBy, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread grant: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread grants: %w", err)
	}

	return out, nil
}
