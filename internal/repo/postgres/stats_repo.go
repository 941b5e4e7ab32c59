package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStatsNotFound = errors.New("post stats not found")

type StatsRepo struct {
	pool *pgxpool.Pool
}

type PostStatsRecord struct {
	ThreadID     string
	ForumID      string
	MessageCount int64
	LastActivity time.Time
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// IncrementMessageCount bumps the counter and refreshes last activity in one
// round trip, creating the row on first sight of the thread.
func (r *StatsRepo) IncrementMessageCount(ctx context.Context, forumID, threadID string, at time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if forumID == "" || threadID == "" {
		return fmt.Errorf("invalid stats key")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO post_stats (thread_id, forum_id, message_count, last_activity)
VALUES ($1, $2, 1, $3)
ON CONFLICT (thread_id) DO UPDATE
SET message_count = post_stats.message_count + 1,
    last_activity = EXCLUDED.last_activity
`, threadID, forumID, at.UTC()); err != nil {
		return fmt.Errorf("increment post stats: %w", err)
	}

	return nil
}

func (r *StatsRepo) Get(ctx context.Context, threadID string) (PostStatsRecord, error) {
	if r.pool == nil {
		return PostStatsRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var rec PostStatsRecord
	err := r.pool.QueryRow(ctx, `
SELECT thread_id, forum_id, message_count, last_activity
FROM post_stats
WHERE thread_id = $1
`, threadID).Scan(&rec.ThreadID, &rec.ForumID, &rec.MessageCount, &rec.LastActivity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostStatsRecord{}, ErrStatsNotFound
		}
		return PostStatsRecord{}, fmt.Errorf("get post stats: %w", err)
	}

	return rec, nil
}

func (r *StatsRepo) ListByForum(ctx context.Context, forumID string) ([]PostStatsRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT thread_id, forum_id, message_count, last_activity
FROM post_stats
WHERE forum_id = $1
ORDER BY message_count DESC
`, forumID)
	if err != nil {
		return nil, fmt.Errorf("list forum post stats: %w", err)
	}
	defer rows.Close()

	return scanStats(rows)
}

func (r *StatsRepo) ListAll(ctx context.Context) ([]PostStatsRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT thread_id, forum_id, message_count, last_activity
FROM post_stats
ORDER BY forum_id, message_count DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list all post stats: %w", err)
	}
	defer rows.Close()

	return scanStats(rows)
}

// TopByForum returns the busiest thread of a forum, restricted to the given
// active thread ids when the slice is non-empty.
func (r *StatsRepo) TopByForum(ctx context.Context, forumID string, activeThreadIDs []string) (PostStatsRecord, error) {
	if r.pool == nil {
		return PostStatsRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var (
		rec PostStatsRecord
		err error
	)
	if len(activeThreadIDs) == 0 {
		err = r.pool.QueryRow(ctx, `
SELECT thread_id, forum_id, message_count, last_activity
FROM post_stats
WHERE forum_id = $1
ORDER BY message_count DESC, last_activity DESC
LIMIT 1
`, forumID).Scan(&rec.ThreadID, &rec.ForumID, &rec.MessageCount, &rec.LastActivity)
	} else {
		err = r.pool.QueryRow(ctx, `
SELECT thread_id, forum_id, message_count, last_activity
FROM post_stats
WHERE forum_id = $1 AND thread_id = ANY($2)
ORDER BY message_count DESC, last_activity DESC
LIMIT 1
`, forumID, activeThreadIDs).Scan(&rec.ThreadID, &rec.ForumID, &rec.MessageCount, &rec.LastActivity)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PostStatsRecord{}, ErrStatsNotFound
		}
		return PostStatsRecord{}, fmt.Errorf("top post stats: %w", err)
	}

	return rec, nil
}

func scanStats(rows pgx.Rows) ([]PostStatsRecord, error) {
	var out []PostStatsRecord
	for rows.Next() {
		var rec PostStatsRecord
		if err := rows.Scan(&rec.ThreadID, &rec.ForumID, &rec.MessageCount, &rec.LastActivity); err != nil {
			return nil, fmt.Errorf("scan post stats: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post stats: %w", err)
	}
	return out, nil
}
