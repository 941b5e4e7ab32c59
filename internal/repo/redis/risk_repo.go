package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
)

// RiskRepo keeps the per-user violation risk hash used by the timeout
// escalation logic. The state is mutated atomically via a Lua script owned
// by the timeouts service.
type RiskRepo struct {
	client *goredis.Client
}

type RiskStateRecord struct {
	RiskScore       int
	LastViolationAt int64
	Exists          bool
}

func NewRiskRepo(client *goredis.Client) *RiskRepo {
	return &RiskRepo{client: client}
}

func (r *RiskRepo) Get(ctx context.Context, guildID, userID string) (RiskStateRecord, error) {
	if r.client == nil {
		return RiskStateRecord{}, fmt.Errorf("redis client is nil")
	}
	if guildID == "" || userID == "" {
		return RiskStateRecord{}, fmt.Errorf("invalid risk key")
	}

	values, err := r.client.HGetAll(ctx, riskKey(guildID, userID)).Result()
	if err != nil {
		return RiskStateRecord{}, fmt.Errorf("get risk state: %w", err)
	}
	if len(values) == 0 {
		return RiskStateRecord{}, nil
	}

	riskScore, err := parseInt(values["risk_score"])
	if err != nil {
		return RiskStateRecord{}, fmt.Errorf("parse risk_score: %w", err)
	}
	lastViolationAt, err := parseInt64(values["last_violation_at"])
	if err != nil {
		return RiskStateRecord{}, fmt.Errorf("parse last_violation_at: %w", err)
	}

	if riskScore < 0 {
		riskScore = 0
	}
	if lastViolationAt < 0 {
		lastViolationAt = 0
	}

	return RiskStateRecord{
		RiskScore:       riskScore,
		LastViolationAt: lastViolationAt,
		Exists:          true,
	}, nil
}

func (r *RiskRepo) EvalForUser(ctx context.Context, guildID, userID, script string, args ...interface{}) (interface{}, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if guildID == "" || userID == "" {
		return nil, fmt.Errorf("invalid risk key")
	}
	if script == "" {
		return nil, fmt.Errorf("script is required")
	}

	result, err := r.client.Eval(ctx, script, []string{riskKey(guildID, userID)}, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("eval risk script: %w", err)
	}
	return result, nil
}

func riskKey(guildID, userID string) string {
	return "risk:user:" + guildID + ":" + userID
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func parseInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}
