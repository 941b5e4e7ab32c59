package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kazuki388/Threads/internal/config"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
)

type fakeStatsStore struct {
	records []pgrepo.PostStatsRecord
	incs    int
}

func (f *fakeStatsStore) IncrementMessageCount(_ context.Context, forumID, threadID string, at time.Time) error {
	f.incs++
	for i := range f.records {
		if f.records[i].ThreadID == threadID {
			f.records[i].MessageCount++
			f.records[i].LastActivity = at
			return nil
		}
	}
	f.records = append(f.records, pgrepo.PostStatsRecord{
		ThreadID:     threadID,
		ForumID:      forumID,
		MessageCount: 1,
		LastActivity: at,
	})
	return nil
}

func (f *fakeStatsStore) Get(_ context.Context, threadID string) (pgrepo.PostStatsRecord, error) {
	for _, rec := range f.records {
		if rec.ThreadID == threadID {
			return rec, nil
		}
	}
	return pgrepo.PostStatsRecord{}, pgrepo.ErrStatsNotFound
}

func (f *fakeStatsStore) ListByForum(_ context.Context, forumID string) ([]pgrepo.PostStatsRecord, error) {
	var out []pgrepo.PostStatsRecord
	for _, rec := range f.records {
		if rec.ForumID == forumID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStatsStore) ListAll(_ context.Context) ([]pgrepo.PostStatsRecord, error) {
	return append([]pgrepo.PostStatsRecord(nil), f.records...), nil
}

func (f *fakeStatsStore) TopByForum(_ context.Context, forumID string, activeThreadIDs []string) (pgrepo.PostStatsRecord, error) {
	active := make(map[string]struct{}, len(activeThreadIDs))
	for _, id := range activeThreadIDs {
		active[id] = struct{}{}
	}
	var best pgrepo.PostStatsRecord
	found := false
	for _, rec := range f.records {
		if rec.ForumID != forumID {
			continue
		}
		if _, ok := active[rec.ThreadID]; !ok {
			continue
		}
		if !found || rec.MessageCount > best.MessageCount {
			best = rec
			found = true
		}
	}
	if !found {
		return pgrepo.PostStatsRecord{}, pgrepo.ErrStatsNotFound
	}
	return best, nil
}

func newTestService(t *testing.T, store *fakeStatsStore, now time.Time) *Service {
	t.Helper()

	svc := NewService(store, config.RotationConfig{
		Interval:         24 * time.Hour,
		MessageThreshold: 200,
		MinimumThreshold: 10,
		AdjustmentPeriod: 7 * 24 * time.Hour,
		LowActivityBar:   50,
	}, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func record(threadID string, count int64, last time.Time) pgrepo.PostStatsRecord {
	return pgrepo.PostStatsRecord{
		ThreadID:     threadID,
		ForumID:      "forum-1",
		MessageCount: count,
		LastActivity: last,
	}
}

func TestAdjustThresholdsTracksAverage(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	// Ten posts active in the last day keeps the interval on the default
	// 24h branch; fewer than ten would stretch it to 48h.
	var records []pgrepo.PostStatsRecord
	for i := 0; i < 10; i++ {
		count := int64(120)
		if i%2 == 1 {
			count = 80
		}
		records = append(records, record(fmt.Sprintf("t%d", i+1), count, now.Add(-time.Duration(i+1)*time.Hour)))
	}
	store := &fakeStatsStore{records: records}

	svc := newTestService(t, store, now)
	svc.thresholds.LastAdjustment = now // suppress the low-activity halving

	th, err := svc.AdjustThresholds(context.Background())
	if err != nil {
		t.Fatalf("AdjustThresholds: %v", err)
	}
	if th.MessageThreshold != 100 {
		t.Fatalf("MessageThreshold = %d, want 100", th.MessageThreshold)
	}
	if th.RotationInterval != 24*time.Hour {
		t.Fatalf("RotationInterval = %v, want 24h", th.RotationInterval)
	}
}

func TestAdjustThresholdsStretchesIntervalWhenQuiet(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStatsStore{records: []pgrepo.PostStatsRecord{
		record("t1", 300, now.Add(-72*time.Hour)),
		record("t2", 280, now.Add(-96*time.Hour)),
	}}

	svc := newTestService(t, store, now)
	svc.thresholds.LastAdjustment = now

	th, err := svc.AdjustThresholds(context.Background())
	if err != nil {
		t.Fatalf("AdjustThresholds: %v", err)
	}
	if th.RotationInterval != 48*time.Hour {
		t.Fatalf("RotationInterval = %v, want 48h", th.RotationInterval)
	}
	if th.MessageThreshold != 290 {
		t.Fatalf("MessageThreshold = %d, want 290", th.MessageThreshold)
	}
}

func TestAdjustThresholdsShortensIntervalWhenBusy(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStatsStore{}
	for i := 0; i < 120; i++ {
		store.records = append(store.records,
			record(fmt.Sprintf("t%d", i), 500, now.Add(-time.Hour)))
	}

	svc := newTestService(t, store, now)
	svc.thresholds.LastAdjustment = now

	th, err := svc.AdjustThresholds(context.Background())
	if err != nil {
		t.Fatalf("AdjustThresholds: %v", err)
	}
	if th.RotationInterval != 12*time.Hour {
		t.Fatalf("RotationInterval = %v, want 12h", th.RotationInterval)
	}
}

func TestAdjustThresholdsHalvesAfterLowActivityPeriod(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStatsStore{records: []pgrepo.PostStatsRecord{
		record("t1", 40, now.Add(-time.Hour)),
		record("t2", 44, now.Add(-2*time.Hour)),
	}}

	svc := newTestService(t, store, now)
	svc.thresholds.LastAdjustment = now.Add(-8 * 24 * time.Hour)

	th, err := svc.AdjustThresholds(context.Background())
	if err != nil {
		t.Fatalf("AdjustThresholds: %v", err)
	}
	if th.MessageThreshold != 21 {
		t.Fatalf("MessageThreshold = %d, want 21", th.MessageThreshold)
	}
	if th.RotationInterval != 12*time.Hour {
		t.Fatalf("RotationInterval = %v, want 12h", th.RotationInterval)
	}
	if !th.LastAdjustment.Equal(now) {
		t.Fatalf("LastAdjustment = %v, want %v", th.LastAdjustment, now)
	}

	// A second pass inside the same period must not halve again.
	th2, err := svc.AdjustThresholds(context.Background())
	if err != nil {
		t.Fatalf("AdjustThresholds: %v", err)
	}
	if th2.MessageThreshold != 42 {
		t.Fatalf("MessageThreshold after second pass = %d, want 42", th2.MessageThreshold)
	}
}

func TestAdjustThresholdsRespectsMinimum(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStatsStore{records: []pgrepo.PostStatsRecord{
		record("t1", 12, now.Add(-time.Hour)),
	}}

	svc := newTestService(t, store, now)
	svc.thresholds.LastAdjustment = now.Add(-8 * 24 * time.Hour)

	th, err := svc.AdjustThresholds(context.Background())
	if err != nil {
		t.Fatalf("AdjustThresholds: %v", err)
	}
	if th.MessageThreshold != 10 {
		t.Fatalf("MessageThreshold = %d, want floor of 10", th.MessageThreshold)
	}
}

func TestRecordIncrementsStore(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStatsStore{}
	svc := newTestService(t, store, now)

	if err := svc.Record(context.Background(), "forum-1", "t1"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := svc.Record(context.Background(), "forum-1", "t1"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec, err := svc.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", rec.MessageCount)
	}
}
