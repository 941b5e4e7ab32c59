package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrBanNotFound = errors.New("thread ban not found")

type BanRepo struct {
	pool *pgxpool.Pool
}

type BanRecord struct {
	ChannelID string
	ThreadID  string
	UserID    string
	BannedBy  string
	Reason    string
	CreatedAt time.Time
}

func NewBanRepo(pool *pgxpool.Pool) *BanRepo {
	return &BanRepo{pool: pool}
}

func (r *BanRepo) Add(ctx context.Context, ban BanRecord) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if ban.ChannelID == "" || ban.ThreadID == "" || ban.UserID == "" {
		return fmt.Errorf("invalid ban payload")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO thread_bans (channel_id, thread_id, user_id, banned_by, reason, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (channel_id, thread_id, user_id) DO UPDATE
SET banned_by = EXCLUDED.banned_by, reason = EXCLUDED.reason
`, ban.ChannelID, ban.ThreadID, ban.UserID, ban.BannedBy, ban.Reason); err != nil {
		return fmt.Errorf("insert thread ban: %w", err)
	}

	return nil
}

func (r *BanRepo) Remove(ctx context.Context, channelID, threadID, userID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if channelID == "" || threadID == "" || userID == "" {
		return fmt.Errorf("invalid ban key")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM thread_bans
WHERE channel_id = $1 AND thread_id = $2 AND user_id = $3
`, channelID, threadID, userID)
	if err != nil {
		return fmt.Errorf("delete thread ban: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBanNotFound
	}

	return nil
}

func (r *BanRepo) Exists(ctx context.Context, channelID, threadID, userID string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM thread_bans
	WHERE channel_id = $1 AND thread_id = $2 AND user_id = $3
)
`, channelID, threadID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check thread ban: %w", err)
	}

	return exists, nil
}

func (r *BanRepo) ListByThread(ctx context.Context, channelID, threadID string) ([]BanRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT channel_id, thread_id, user_id, banned_by, reason, created_at
FROM thread_bans
WHERE channel_id = $1 AND thread_id = $2
ORDER BY created_at ASC
`, channelID, threadID)
	if err != nil {
		return nil, fmt.Errorf("list thread bans: %w", err)
	}
	defer rows.Close()

	return scanBans(rows)
}

func (r *BanRepo) ListAll(ctx context.Context) ([]BanRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT channel_id, thread_id, user_id, banned_by, reason, created_at
FROM thread_bans
ORDER BY channel_id, thread_id, created_at
`)
	if err != nil {
		return nil, fmt.Errorf("list all thread bans: %w", err)
	}
	defer rows.Close()

	return scanBans(rows)
}

func scanBans(rows pgx.Rows) ([]BanRecord, error) {
	var out []BanRecord
	for rows.Next() {
		var b BanRecord
		if err := rows.Scan(&b.ChannelID, &b.ThreadID, &b.UserID, &b.BannedBy, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread ban: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread bans: %w", err)
	}
	return out, nil
}
