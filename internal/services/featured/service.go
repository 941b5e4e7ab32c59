package featured

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	"github.com/kazuki388/Threads/internal/services/stats"
)

// Thread is the slice of a forum post the rotation cares about.
type Thread struct {
	ID          string
	Name        string
	AppliedTags []string
}

type Tag struct {
	ID   string
	Name string
}

// ForumGateway is the Discord surface the rotation drives.
type ForumGateway interface {
	ActiveThreads(ctx context.Context, forumID string) ([]Thread, error)
	ForumTags(ctx context.Context, forumID string) ([]Tag, error)
	ApplyTags(ctx context.Context, threadID string, tagIDs []string) error
}

type StatsProvider interface {
	Get(ctx context.Context, threadID string) (pgrepo.PostStatsRecord, error)
	Thresholds() stats.Thresholds
}

// History keeps the latest featured thread per forum.
type History interface {
	Set(ctx context.Context, forumID, threadID string) error
}

type Service struct {
	gateway ForumGateway
	stats   StatsProvider
	history History
	forums  []string
	tagName string
	logger  *zap.Logger
}

func NewService(gateway ForumGateway, stats StatsProvider, forums []string, tagName string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gateway: gateway,
		stats:   stats,
		forums:  forums,
		tagName: tagName,
		logger:  logger,
	}
}

// AttachHistory enables persistence of rotation outcomes.
func (s *Service) AttachHistory(history History) {
	s.history = history
}

// Rotate walks every configured forum and reconciles the featured tag:
// active posts at or above the message threshold gain it, posts that fell
// below lose it. Per-thread failures are logged and skipped so one bad
// thread cannot stall the whole pass.
func (s *Service) Rotate(ctx context.Context) error {
	if s.gateway == nil || s.stats == nil {
		return fmt.Errorf("featured rotation is not configured")
	}

	threshold := int64(s.stats.Thresholds().MessageThreshold)

	for _, forumID := range s.forums {
		if err := s.rotateForum(ctx, forumID, threshold); err != nil {
			s.logger.Warn("featured rotation failed for forum",
				zap.String("forum_id", forumID), zap.Error(err))
		}
	}
	return nil
}

func (s *Service) rotateForum(ctx context.Context, forumID string, threshold int64) error {
	tags, err := s.gateway.ForumTags(ctx, forumID)
	if err != nil {
		return fmt.Errorf("list forum tags: %w", err)
	}

	tagID := ""
	for _, tag := range tags {
		if tag.Name == s.tagName {
			tagID = tag.ID
			break
		}
	}
	if tagID == "" {
		s.logger.Debug("forum has no featured tag, skipping",
			zap.String("forum_id", forumID), zap.String("tag", s.tagName))
		return nil
	}

	threads, err := s.gateway.ActiveThreads(ctx, forumID)
	if err != nil {
		return fmt.Errorf("list active threads: %w", err)
	}

	topID := ""
	topCount := int64(-1)

	for _, th := range threads {
		count := int64(0)
		rec, err := s.stats.Get(ctx, th.ID)
		switch {
		case err == nil:
			count = rec.MessageCount
		case errors.Is(err, pgrepo.ErrStatsNotFound):
			// never counted, treat as zero
		default:
			s.logger.Warn("stats lookup failed",
				zap.String("thread_id", th.ID), zap.Error(err))
			continue
		}

		if count > topCount {
			topID, topCount = th.ID, count
		}

		want := count >= threshold
		have := hasTag(th.AppliedTags, tagID)
		if want == have {
			continue
		}

		next := th.AppliedTags
		if want {
			next = append(append([]string(nil), th.AppliedTags...), tagID)
		} else {
			next = removeTag(th.AppliedTags, tagID)
		}

		if err := s.gateway.ApplyTags(ctx, th.ID, next); err != nil {
			s.logger.Warn("failed to update featured tag",
				zap.String("thread_id", th.ID), zap.Error(err))
			continue
		}

		s.logger.Info("featured tag updated",
			zap.String("forum_id", forumID),
			zap.String("thread_id", th.ID),
			zap.String("thread_name", th.Name),
			zap.Int64("message_count", count),
			zap.Int64("threshold", threshold),
			zap.Bool("featured", want))
	}

	if s.history != nil && topID != "" {
		if err := s.history.Set(ctx, forumID, topID); err != nil {
			s.logger.Warn("failed to record featured history",
				zap.String("forum_id", forumID), zap.Error(err))
		}
	}
	return nil
}

func hasTag(tags []string, tagID string) bool {
	for _, id := range tags {
		if id == tagID {
			return true
		}
	}
	return false
}

func removeTag(tags []string, tagID string) []string {
	out := make([]string, 0, len(tags))
	for _, id := range tags {
		if id != tagID {
			out = append(out, id)
		}
	}
	return out
}
