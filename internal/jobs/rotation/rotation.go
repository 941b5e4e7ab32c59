package rotation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/services/stats"
)

type thresholdAdjuster interface {
	AdjustThresholds(ctx context.Context) (stats.Thresholds, error)
}

type rotator interface {
	Rotate(ctx context.Context) error
}

type Job struct {
	adjuster thresholdAdjuster
	rotator  rotator
	logger   *zap.Logger
}

func New(adjuster thresholdAdjuster, rotator rotator, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		adjuster: adjuster,
		rotator:  rotator,
		logger:   logger,
	}
}

// Run performs one rotation pass: re-derive thresholds from observed
// activity, then reconcile the featured tag across the configured forums.
// The returned interval is the adjusted cadence the scheduler should use
// until the next pass.
func (j *Job) Run(ctx context.Context) (time.Duration, error) {
	var next time.Duration

	if j.adjuster != nil {
		th, err := j.adjuster.AdjustThresholds(ctx)
		if err != nil {
			return 0, fmt.Errorf("adjust thresholds: %w", err)
		}
		next = th.RotationInterval
	}

	if j.rotator != nil {
		if err := j.rotator.Rotate(ctx); err != nil {
			return next, fmt.Errorf("rotate featured posts: %w", err)
		}
	}

	j.logger.Info("featured rotation pass completed",
		zap.Duration("next_interval", next))
	return next, nil
}
