package rate

import (
	"context"
	"fmt"
	"time"
)

// Store is the Redis window surface the limiter counts against.
type Store interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Decision reports whether a scan may proceed and, when it may not, how
// long the caller has to wait for the tighter window to clear.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter throttles AI moderation scans per guild with two stacked
// windows: a short burst window and a per-minute budget.
type Limiter struct {
	store     Store
	perMinute int
	perBurst  int
}

const burstWindow = 10 * time.Second

func NewLimiter(store Store, perMinute, perBurst int) *Limiter {
	if perMinute <= 0 {
		perMinute = 25
	}
	if perBurst <= 0 {
		perBurst = 6
	}
	return &Limiter{store: store, perMinute: perMinute, perBurst: perBurst}
}

// Allow consumes one scan slot for the guild. Both windows are always
// incremented so a rejected caller still burns budget, which keeps a
// flooding channel from probing its way around the limit.
func (l *Limiter) Allow(ctx context.Context, guildID string) (Decision, error) {
	if l.store == nil {
		return Decision{}, fmt.Errorf("rate store is not configured")
	}
	if guildID == "" {
		return Decision{}, fmt.Errorf("guild id is required")
	}

	burstCount, burstTTL, err := l.store.IncrementWindow(ctx, burstKey(guildID), burstWindow)
	if err != nil {
		return Decision{}, err
	}
	minuteCount, minuteTTL, err := l.store.IncrementWindow(ctx, minuteKey(guildID), time.Minute)
	if err != nil {
		return Decision{}, err
	}

	if burstCount > int64(l.perBurst) {
		return Decision{RetryAfter: burstTTL}, nil
	}
	if minuteCount > int64(l.perMinute) {
		return Decision{RetryAfter: minuteTTL}, nil
	}
	return Decision{Allowed: true}, nil
}

// Usage is a read-only view of both limiter windows.
type Usage struct {
	BurstUsed   int64
	BurstLimit  int
	BurstReset  time.Duration
	MinuteUsed  int64
	MinuteLimit int
	MinuteReset time.Duration
}

// Usage reports window state without burning budget.
func (l *Limiter) Usage(ctx context.Context, guildID string) (Usage, error) {
	if l.store == nil {
		return Usage{}, fmt.Errorf("rate store is not configured")
	}
	if guildID == "" {
		return Usage{}, fmt.Errorf("guild id is required")
	}

	burstCount, burstTTL, err := l.store.WindowState(ctx, burstKey(guildID))
	if err != nil {
		return Usage{}, err
	}
	minuteCount, minuteTTL, err := l.store.WindowState(ctx, minuteKey(guildID))
	if err != nil {
		return Usage{}, err
	}

	return Usage{
		BurstUsed:   burstCount,
		BurstLimit:  l.perBurst,
		BurstReset:  burstTTL,
		MinuteUsed:  minuteCount,
		MinuteLimit: l.perMinute,
		MinuteReset: minuteTTL,
	}, nil
}

func burstKey(guildID string) string {
	return "aimod:burst:" + guildID
}

func minuteKey(guildID string) string {
	return "aimod:minute:" + guildID
}
