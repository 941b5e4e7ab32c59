package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const banCachePrefix = "bancache:"

// BanCacheRepo caches ban lookups so the hot message path does not hit
// Postgres on every message in a thread.
type BanCacheRepo struct {
	client *goredis.Client
}

func NewBanCacheRepo(client *goredis.Client) *BanCacheRepo {
	return &BanCacheRepo{client: client}
}

// Get returns (banned, cached). cached=false means the caller must consult
// the source of truth.
func (r *BanCacheRepo) Get(ctx context.Context, channelID, threadID, userID string) (bool, bool, error) {
	if r.client == nil {
		return false, false, fmt.Errorf("redis client is nil")
	}

	val, err := r.client.Get(ctx, banCacheKey(channelID, threadID, userID)).Result()
	if err == goredis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("get ban cache entry: %w", err)
	}

	return val == "1", true, nil
}

func (r *BanCacheRepo) Set(ctx context.Context, channelID, threadID, userID string, banned bool, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		return fmt.Errorf("ban cache ttl must be positive")
	}

	val := "0"
	if banned {
		val = "1"
	}
	if err := r.client.Set(ctx, banCacheKey(channelID, threadID, userID), val, ttl).Err(); err != nil {
		return fmt.Errorf("set ban cache entry: %w", err)
	}

	return nil
}

func (r *BanCacheRepo) Invalidate(ctx context.Context, channelID, threadID, userID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.client.Del(ctx, banCacheKey(channelID, threadID, userID)).Err(); err != nil {
		return fmt.Errorf("invalidate ban cache entry: %w", err)
	}

	return nil
}

func banCacheKey(channelID, threadID, userID string) string {
	return banCachePrefix + channelID + ":" + threadID + ":" + userID
}
