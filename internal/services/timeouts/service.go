package timeouts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	redisrepo "github.com/kazuki388/Threads/internal/repo/redis"
)

const defaultRiskDecay = 6 * time.Hour

// escalationScript mutates the per-user risk hash atomically: it first
// decays risk by one point per elapsed decay interval, then adds the
// violation weight and maps the resulting score onto the step ladder.
// Returns {risk, step_sec, last_violation}.
const escalationScript = `
local key = KEYS[1]
local weight = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local decay_sec = tonumber(ARGV[3])
local steps_count = tonumber(ARGV[4])

if weight == nil or weight < 1 then
	weight = 1
end
if now == nil or now < 0 then
	now = 0
end
if decay_sec == nil or decay_sec < 0 then
	decay_sec = 0
end
if steps_count == nil or steps_count < 0 then
	steps_count = 0
end

local risk = tonumber(redis.call("HGET", key, "risk_score")) or 0
local last_violation = tonumber(redis.call("HGET", key, "last_violation_at")) or 0

if decay_sec > 0 and risk > 0 and last_violation > 0 and now > last_violation then
	local elapsed = now - last_violation
	local decays = math.floor(elapsed / decay_sec)
	if decays > 0 then
		if decays > risk then
			decays = risk
		end
		risk = risk - decays
		last_violation = last_violation + decays * decay_sec
	end
end

risk = risk + weight

local step = 0
if steps_count > 0 then
	local idx = risk
	if idx < 1 then
		idx = 1
	end
	if idx > steps_count then
		idx = steps_count
	end
	step = tonumber(ARGV[4 + idx]) or 0
end

last_violation = now

redis.call("HSET", key,
	"risk_score", risk,
	"last_violation_at", last_violation)

return {risk, step, last_violation}
`

var ErrValidation = errors.New("validation error")

// RiskStore is the Redis surface the escalation script runs against.
type RiskStore interface {
	Get(ctx context.Context, guildID, userID string) (redisrepo.RiskStateRecord, error)
	EvalForUser(ctx context.Context, guildID, userID, script string, args ...interface{}) (interface{}, error)
}

// HistoryStore persists applied timeouts for audit and the ops API.
type HistoryStore interface {
	Insert(ctx context.Context, rec pgrepo.TimeoutRecord) error
	ListByUser(ctx context.Context, guildID, userID string, limit int) ([]pgrepo.TimeoutRecord, error)
}

// MemberGateway applies the native Discord timeout.
type MemberGateway interface {
	TimeoutMember(ctx context.Context, guildID, userID string, until time.Time) error
}

type Config struct {
	Steps     []time.Duration
	RiskDecay time.Duration
}

// State describes a user's escalation position after a violation.
type State struct {
	RiskScore       int
	Duration        time.Duration
	ExpiresAt       time.Time
	LastViolationAt time.Time
}

type Service struct {
	risk    RiskStore
	history HistoryStore
	gateway MemberGateway
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(risk RiskStore, history HistoryStore, gateway MemberGateway, cfg Config, logger *zap.Logger) *Service {
	if cfg.RiskDecay <= 0 {
		cfg.RiskDecay = defaultRiskDecay
	}
	if len(cfg.Steps) == 0 {
		cfg.Steps = []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour, 24 * time.Hour}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		risk:    risk,
		history: history,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Escalate records one violation, picks the timeout duration the user's
// risk score now maps to, applies the Discord timeout and persists the
// record. History write failures are logged, not returned: the member is
// already timed out at that point.
func (s *Service) Escalate(ctx context.Context, guildID, userID, reason string, weight int) (State, error) {
	if guildID == "" || userID == "" {
		return State{}, ErrValidation
	}
	if s.risk == nil {
		return State{}, fmt.Errorf("risk store is not configured")
	}
	if weight <= 0 {
		weight = 1
	}

	now := s.now().UTC()

	args := make([]interface{}, 0, 4+len(s.cfg.Steps))
	args = append(args,
		weight,
		now.Unix(),
		int64(s.cfg.RiskDecay/time.Second),
		len(s.cfg.Steps),
	)
	for _, step := range s.cfg.Steps {
		if step < 0 {
			step = 0
		}
		args = append(args, int64(step/time.Second))
	}

	raw, err := s.risk.EvalForUser(ctx, guildID, userID, escalationScript, args...)
	if err != nil {
		return State{}, err
	}

	risk, stepSec, lastViolation, err := parseScriptResult(raw)
	if err != nil {
		return State{}, err
	}

	state := State{
		RiskScore:       risk,
		Duration:        time.Duration(stepSec) * time.Second,
		ExpiresAt:       now.Add(time.Duration(stepSec) * time.Second),
		LastViolationAt: time.Unix(lastViolation, 0).UTC(),
	}

	if s.gateway != nil && state.Duration > 0 {
		if err := s.gateway.TimeoutMember(ctx, guildID, userID, state.ExpiresAt); err != nil {
			return State{}, fmt.Errorf("apply member timeout: %w", err)
		}
	}

	if s.history != nil && state.Duration > 0 {
		rec := pgrepo.TimeoutRecord{
			GuildID:   guildID,
			UserID:    userID,
			Reason:    reason,
			Duration:  state.Duration,
			RiskScore: state.RiskScore,
			ExpiresAt: state.ExpiresAt,
		}
		if err := s.history.Insert(ctx, rec); err != nil {
			s.logger.Warn("failed to persist timeout record",
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	return state, nil
}

func (s *Service) RiskState(ctx context.Context, guildID, userID string) (redisrepo.RiskStateRecord, error) {
	if guildID == "" || userID == "" {
		return redisrepo.RiskStateRecord{}, ErrValidation
	}
	if s.risk == nil {
		return redisrepo.RiskStateRecord{}, fmt.Errorf("risk store is not configured")
	}
	return s.risk.Get(ctx, guildID, userID)
}

func (s *Service) History(ctx context.Context, guildID, userID string, limit int) ([]pgrepo.TimeoutRecord, error) {
	if guildID == "" || userID == "" {
		return nil, ErrValidation
	}
	if s.history == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	return s.history.ListByUser(ctx, guildID, userID, limit)
}

func parseScriptResult(raw interface{}) (risk int, stepSec int64, lastViolation int64, err error) {
	arr, ok := raw.([]interface{})
	if !ok || len(arr) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected escalation script result")
	}

	r, ok := asInt(arr[0])
	if !ok {
		return 0, 0, 0, fmt.Errorf("unexpected risk score value")
	}
	step, ok := asInt64(arr[1])
	if !ok {
		return 0, 0, 0, fmt.Errorf("unexpected step value")
	}
	last, ok := asInt64(arr[2])
	if !ok {
		return 0, 0, 0, fmt.Errorf("unexpected last_violation value")
	}

	if r < 0 {
		r = 0
	}
	if step < 0 {
		step = 0
	}
	if last < 0 {
		last = 0
	}
	return r, step, last, nil
}

func asInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func asInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
