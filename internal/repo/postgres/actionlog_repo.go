package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ActionLogRepo struct {
	pool *pgxpool.Pool
}

type ActionLogRecord struct {
	ID         uuid.UUID
	Action     string
	ChannelID  string
	ThreadID   string
	ThreadName string
	ActorID    string
	TargetID   string
	Reason     string
	Result     string
	Details    map[string]string
	CreatedAt  time.Time
}

func NewActionLogRepo(pool *pgxpool.Pool) *ActionLogRepo {
	return &ActionLogRepo{pool: pool}
}

func (r *ActionLogRepo) Insert(ctx context.Context, rec ActionLogRecord) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if rec.Action == "" || rec.ActorID == "" {
		return fmt.Errorf("invalid action log payload")
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("marshal action details: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO action_logs (
	id, action, channel_id, thread_id, thread_name,
	actor_id, target_id, reason, result, details, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
`, rec.ID, rec.Action, rec.ChannelID, rec.ThreadID, rec.ThreadName,
		rec.ActorID, rec.TargetID, rec.Reason, rec.Result, details); err != nil {
		return fmt.Errorf("insert action log: %w", err)
	}

	return nil
}

func (r *ActionLogRepo) ListRecent(ctx context.Context, limit int) ([]ActionLogRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, action, channel_id, thread_id, thread_name,
       actor_id, target_id, reason, result, details, created_at
FROM action_logs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list action logs: %w", err)
	}
	defer rows.Close()

	var out []ActionLogRecord
	for rows.Next() {
		var (
			rec     ActionLogRecord
			details []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.ChannelID, &rec.ThreadID, &rec.ThreadName,
			&rec.ActorID, &rec.TargetID, &rec.Reason, &rec.Result, &details, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action log: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &rec.Details); err != nil {
				return nil, fmt.Errorf("unmarshal action details: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action logs: %w", err)
	}

	return out, nil
}
