package bans

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
)

// cacheTTL bounds how stale a ban verdict may be on the message hot path.
const cacheTTL = 5 * time.Minute

var ErrNotBanned = errors.New("user is not banned in this thread")

type Store interface {
	Add(ctx context.Context, ban pgrepo.BanRecord) error
	Remove(ctx context.Context, channelID, threadID, userID string) error
	Exists(ctx context.Context, channelID, threadID, userID string) (bool, error)
	ListByThread(ctx context.Context, channelID, threadID string) ([]pgrepo.BanRecord, error)
	ListAll(ctx context.Context) ([]pgrepo.BanRecord, error)
}

type Cache interface {
	Get(ctx context.Context, channelID, threadID, userID string) (bool, bool, error)
	Set(ctx context.Context, channelID, threadID, userID string, banned bool, ttl time.Duration) error
	Invalidate(ctx context.Context, channelID, threadID, userID string) error
}

type Service struct {
	store Store
	cache Cache
}

func NewService(store Store, cache Cache) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) Ban(ctx context.Context, channelID, threadID, userID, bannedBy, reason string) error {
	if s.store == nil {
		return fmt.Errorf("ban store is not configured")
	}
	if channelID == "" || threadID == "" || userID == "" {
		return fmt.Errorf("invalid ban key")
	}

	if err := s.store.Add(ctx, pgrepo.BanRecord{
		ChannelID: channelID,
		ThreadID:  threadID,
		UserID:    userID,
		BannedBy:  bannedBy,
		Reason:    reason,
	}); err != nil {
		return err
	}

	s.invalidate(ctx, channelID, threadID, userID)
	return nil
}

func (s *Service) Unban(ctx context.Context, channelID, threadID, userID string) error {
	if s.store == nil {
		return fmt.Errorf("ban store is not configured")
	}
	if channelID == "" || threadID == "" || userID == "" {
		return fmt.Errorf("invalid ban key")
	}

	if err := s.store.Remove(ctx, channelID, threadID, userID); err != nil {
		if errors.Is(err, pgrepo.ErrBanNotFound) {
			return ErrNotBanned
		}
		return err
	}

	s.invalidate(ctx, channelID, threadID, userID)
	return nil
}

// IsBanned answers from the cache when it can; a miss falls through to the
// store and the verdict is cached for cacheTTL either way.
func (s *Service) IsBanned(ctx context.Context, channelID, threadID, userID string) (bool, error) {
	if s.store == nil {
		return false, fmt.Errorf("ban store is not configured")
	}

	if s.cache != nil {
		banned, cached, err := s.cache.Get(ctx, channelID, threadID, userID)
		if err == nil && cached {
			return banned, nil
		}
	}

	banned, err := s.store.Exists(ctx, channelID, threadID, userID)
	if err != nil {
		return false, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, channelID, threadID, userID, banned, cacheTTL)
	}

	return banned, nil
}

func (s *Service) ListThread(ctx context.Context, channelID, threadID string) ([]pgrepo.BanRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("ban store is not configured")
	}
	return s.store.ListByThread(ctx, channelID, threadID)
}

func (s *Service) ListAll(ctx context.Context) ([]pgrepo.BanRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("ban store is not configured")
	}
	return s.store.ListAll(ctx)
}

func (s *Service) invalidate(ctx context.Context, channelID, threadID, userID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, channelID, threadID, userID)
}
