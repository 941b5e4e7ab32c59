package stats

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/config"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
)

type Store interface {
	IncrementMessageCount(ctx context.Context, forumID, threadID string, at time.Time) error
	Get(ctx context.Context, threadID string) (pgrepo.PostStatsRecord, error)
	ListByForum(ctx context.Context, forumID string) ([]pgrepo.PostStatsRecord, error)
	ListAll(ctx context.Context) ([]pgrepo.PostStatsRecord, error)
	TopByForum(ctx context.Context, forumID string, activeThreadIDs []string) (pgrepo.PostStatsRecord, error)
}

// Thresholds is the feedback-adjusted state that drives featured rotation.
type Thresholds struct {
	MessageThreshold int
	RotationInterval time.Duration
	LastAdjustment   time.Time
}

type Service struct {
	store  Store
	cfg    config.RotationConfig
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	thresholds Thresholds
}

func NewService(store Store, cfg config.RotationConfig, logger *zap.Logger) *Service {
	if cfg.MessageThreshold <= 0 {
		cfg.MessageThreshold = 200
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.MinimumThreshold <= 0 {
		cfg.MinimumThreshold = 10
	}
	if cfg.AdjustmentPeriod <= 0 {
		cfg.AdjustmentPeriod = 7 * 24 * time.Hour
	}
	if cfg.LowActivityBar <= 0 {
		cfg.LowActivityBar = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		thresholds: Thresholds{
			MessageThreshold: cfg.MessageThreshold,
			RotationInterval: cfg.Interval,
			// Start past the adjustment period so a quiet forum can be
			// re-tuned on the first pass.
			LastAdjustment: time.Now().UTC().Add(-cfg.AdjustmentPeriod - 24*time.Hour),
		},
	}
}

func (s *Service) Record(ctx context.Context, forumID, threadID string) error {
	if s.store == nil {
		return fmt.Errorf("stats store is not configured")
	}
	return s.store.IncrementMessageCount(ctx, forumID, threadID, s.now().UTC())
}

func (s *Service) Get(ctx context.Context, threadID string) (pgrepo.PostStatsRecord, error) {
	if s.store == nil {
		return pgrepo.PostStatsRecord{}, fmt.Errorf("stats store is not configured")
	}
	return s.store.Get(ctx, threadID)
}

func (s *Service) ListAll(ctx context.Context) ([]pgrepo.PostStatsRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("stats store is not configured")
	}
	return s.store.ListAll(ctx)
}

func (s *Service) TopByForum(ctx context.Context, forumID string, activeThreadIDs []string) (pgrepo.PostStatsRecord, error) {
	if s.store == nil {
		return pgrepo.PostStatsRecord{}, fmt.Errorf("stats store is not configured")
	}
	return s.store.TopByForum(ctx, forumID, activeThreadIDs)
}

func (s *Service) Thresholds() Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholds
}

// AdjustThresholds re-derives the featured threshold and rotation interval
// from observed activity: the threshold tracks the average message count,
// the interval shortens when many posts were active in the last day and
// stretches when almost none were. A forum that has been under the activity
// bar for a whole adjustment period gets its threshold halved (floored at
// the configured minimum) so featuring does not starve.
func (s *Service) AdjustThresholds(ctx context.Context) (Thresholds, error) {
	if s.store == nil {
		return Thresholds{}, fmt.Errorf("stats store is not configured")
	}

	records, err := s.store.ListAll(ctx)
	if err != nil {
		return Thresholds{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) == 0 {
		s.logger.Info("no posts available to adjust thresholds")
		return s.thresholds, nil
	}

	now := s.now().UTC()

	var totalMessages int64
	for _, rec := range records {
		totalMessages += rec.MessageCount
	}
	average := float64(totalMessages) / float64(len(records))
	s.thresholds.MessageThreshold = int(math.Floor(average))

	oneDayAgo := now.Add(-24 * time.Hour)
	recent := 0
	for _, rec := range records {
		if !rec.LastActivity.Before(oneDayAgo) {
			recent++
		}
	}

	switch {
	case recent > 100:
		s.thresholds.RotationInterval = 12 * time.Hour
	case recent < 10:
		s.thresholds.RotationInterval = 48 * time.Hour
	default:
		s.thresholds.RotationInterval = 24 * time.Hour
	}

	if average < float64(s.cfg.LowActivityBar) && now.Sub(s.thresholds.LastAdjustment) > s.cfg.AdjustmentPeriod {
		s.thresholds.RotationInterval = 12 * time.Hour
		halved := s.thresholds.MessageThreshold / 2
		if halved < s.cfg.MinimumThreshold {
			halved = s.cfg.MinimumThreshold
		}
		s.thresholds.MessageThreshold = halved
		s.thresholds.LastAdjustment = now

		s.logger.Info("activity below bar for a full period, relaxing thresholds",
			zap.Int("message_threshold", s.thresholds.MessageThreshold),
			zap.Duration("rotation_interval", s.thresholds.RotationInterval))
	}

	s.logger.Info("threshold adjustment complete",
		zap.Int("message_threshold", s.thresholds.MessageThreshold),
		zap.Duration("rotation_interval", s.thresholds.RotationInterval))

	return s.thresholds, nil
}
