package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrFeaturedNotFound = errors.New("featured post not found")

type FeaturedRepo struct {
	pool *pgxpool.Pool
}

type FeaturedRecord struct {
	ForumID   string
	ThreadID  string
	RotatedAt time.Time
}

func NewFeaturedRepo(pool *pgxpool.Pool) *FeaturedRepo {
	return &FeaturedRepo{pool: pool}
}

func (r *FeaturedRepo) Get(ctx context.Context, forumID string) (FeaturedRecord, error) {
	if r.pool == nil {
		return FeaturedRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec FeaturedRecord
	err := r.pool.QueryRow(ctx, `
SELECT forum_id, thread_id, rotated_at
FROM featured_posts
WHERE forum_id = $1
`, forumID).Scan(&rec.ForumID, &rec.ThreadID, &rec.RotatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeaturedRecord{}, ErrFeaturedNotFound
		}
		return FeaturedRecord{}, fmt.Errorf("get featured post: %w", err)
	}

	return rec, nil
}

func (r *FeaturedRepo) Set(ctx context.Context, forumID, threadID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if forumID == "" || threadID == "" {
		return fmt.Errorf("invalid featured payload")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO featured_posts (forum_id, thread_id, rotated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (forum_id) DO UPDATE
SET thread_id = EXCLUDED.thread_id, rotated_at = NOW()
`, forumID, threadID); err != nil {
		return fmt.Errorf("set featured post: %w", err)
	}

	return nil
}

func (r *FeaturedRepo) ListAll(ctx context.Context) ([]FeaturedRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT forum_id, thread_id, rotated_at
FROM featured_posts
ORDER BY forum_id
`)
	if err != nil {
		return nil, fmt.Errorf("list featured posts: %w", err)
	}
	defer rows.Close()

	var out []FeaturedRecord
	for rows.Next() {
		var rec FeaturedRecord
		if err := rows.Scan(&rec.ForumID, &rec.ThreadID, &rec.RotatedAt); err != nil {
			return nil, fmt.Errorf("scan featured post: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate featured posts: %w", err)
	}

	return out, nil
}
