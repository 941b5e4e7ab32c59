package rotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/services/stats"
)

type fakeAdjuster struct {
	thresholds stats.Thresholds
	err        error
	calls      int
}

func (f *fakeAdjuster) AdjustThresholds(_ context.Context) (stats.Thresholds, error) {
	f.calls++
	return f.thresholds, f.err
}

type fakeRotator struct {
	err   error
	calls int
}

func (f *fakeRotator) Rotate(_ context.Context) error {
	f.calls++
	return f.err
}

func TestRunAdjustsThenRotates(t *testing.T) {
	adjuster := &fakeAdjuster{thresholds: stats.Thresholds{RotationInterval: 12 * time.Hour}}
	rotator := &fakeRotator{}

	next, err := New(adjuster, rotator, zap.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if next != 12*time.Hour {
		t.Fatalf("next interval = %v, want 12h", next)
	}
	if adjuster.calls != 1 || rotator.calls != 1 {
		t.Fatalf("calls = adjust %d rotate %d, want 1 each", adjuster.calls, rotator.calls)
	}
}

func TestRunStopsOnAdjustError(t *testing.T) {
	adjuster := &fakeAdjuster{err: errors.New("boom")}
	rotator := &fakeRotator{}

	if _, err := New(adjuster, rotator, zap.NewNop()).Run(context.Background()); err == nil {
		t.Fatalf("Run succeeded, want error")
	}
	if rotator.calls != 0 {
		t.Fatalf("rotator ran despite adjust failure")
	}
}

func TestRunSurfacesRotateError(t *testing.T) {
	adjuster := &fakeAdjuster{thresholds: stats.Thresholds{RotationInterval: 24 * time.Hour}}
	rotator := &fakeRotator{err: errors.New("boom")}

	next, err := New(adjuster, rotator, zap.NewNop()).Run(context.Background())
	if err == nil {
		t.Fatalf("Run succeeded, want error")
	}
	if next != 24*time.Hour {
		t.Fatalf("next interval = %v, want 24h even on rotate failure", next)
	}
}
