package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TimeoutRepo struct {
	pool *pgxpool.Pool
}

type TimeoutRecord struct {
	ID        int64
	GuildID   string
	UserID    string
	Reason    string
	Duration  time.Duration
	RiskScore int
	ExpiresAt time.Time
	CreatedAt time.Time
}

func NewTimeoutRepo(pool *pgxpool.Pool) *TimeoutRepo {
	return &TimeoutRepo{pool: pool}
}

func (r *TimeoutRepo) Insert(ctx context.Context, rec TimeoutRecord) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if rec.GuildID == "" || rec.UserID == "" || rec.Duration <= 0 {
		return fmt.Errorf("invalid timeout payload")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO timeout_records (guild_id, user_id, reason, duration_sec, risk_score, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
`, rec.GuildID, rec.UserID, rec.Reason, int64(rec.Duration/time.Second), rec.RiskScore, rec.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("insert timeout record: %w", err)
	}

	return nil
}

func (r *TimeoutRepo) ListByUser(ctx context.Context, guildID, userID string, limit int) ([]TimeoutRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, guild_id, user_id, reason, duration_sec, risk_score, expires_at, created_at
FROM timeout_records
WHERE guild_id = $1 AND user_id = $2
ORDER BY created_at DESC
LIMIT $3
`, guildID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list timeout records: %w", err)
	}
	defer rows.Close()

	var out []TimeoutRecord
	for rows.Next() {
		var (
			rec TimeoutRecord
			sec int64
		)
		if err := rows.Scan(&rec.ID, &rec.GuildID, &rec.UserID, &rec.Reason, &sec, &rec.RiskScore, &rec.ExpiresAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timeout record: %w", err)
		}
		rec.Duration = time.Duration(sec) * time.Second
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeout records: %w", err)
	}

	return out, nil
}
