package featured

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	"github.com/kazuki388/Threads/internal/services/stats"
)

type fakeGateway struct {
	tags    []Tag
	threads []Thread
	applied map[string][]string
}

func (f *fakeGateway) ActiveThreads(_ context.Context, _ string) ([]Thread, error) {
	return f.threads, nil
}

func (f *fakeGateway) ForumTags(_ context.Context, _ string) ([]Tag, error) {
	return f.tags, nil
}

func (f *fakeGateway) ApplyTags(_ context.Context, threadID string, tagIDs []string) error {
	if f.applied == nil {
		f.applied = make(map[string][]string)
	}
	f.applied[threadID] = tagIDs
	return nil
}

type fakeStats struct {
	counts     map[string]int64
	thresholds stats.Thresholds
}

func (f *fakeStats) Get(_ context.Context, threadID string) (pgrepo.PostStatsRecord, error) {
	count, ok := f.counts[threadID]
	if !ok {
		return pgrepo.PostStatsRecord{}, pgrepo.ErrStatsNotFound
	}
	return pgrepo.PostStatsRecord{ThreadID: threadID, MessageCount: count}, nil
}

func (f *fakeStats) Thresholds() stats.Thresholds {
	return f.thresholds
}

type fakeHistory struct {
	set map[string]string
}

func (f *fakeHistory) Set(_ context.Context, forumID, threadID string) error {
	if f.set == nil {
		f.set = make(map[string]string)
	}
	f.set[forumID] = threadID
	return nil
}

func TestRotateAppliesAndRemovesTag(t *testing.T) {
	gw := &fakeGateway{
		tags: []Tag{{ID: "tag-other", Name: "問答"}, {ID: "tag-featured", Name: "精華"}},
		threads: []Thread{
			{ID: "hot", Name: "hot post", AppliedTags: []string{"tag-other"}},
			{ID: "cold", Name: "cold post", AppliedTags: []string{"tag-featured"}},
			{ID: "steady", Name: "steady post", AppliedTags: []string{"tag-featured"}},
		},
	}
	st := &fakeStats{
		counts: map[string]int64{"hot": 500, "cold": 3, "steady": 250},
		thresholds: stats.Thresholds{
			MessageThreshold: 200,
			RotationInterval: 24 * time.Hour,
		},
	}

	history := &fakeHistory{}
	svc := NewService(gw, st, []string{"forum-1"}, "精華", zap.NewNop())
	svc.AttachHistory(history)
	if err := svc.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	hot, ok := gw.applied["hot"]
	if !ok {
		t.Fatalf("hot post was not retagged")
	}
	if !hasTag(hot, "tag-featured") || !hasTag(hot, "tag-other") {
		t.Fatalf("hot post tags = %v, want featured added and others kept", hot)
	}

	cold, ok := gw.applied["cold"]
	if !ok {
		t.Fatalf("cold post was not retagged")
	}
	if hasTag(cold, "tag-featured") {
		t.Fatalf("cold post tags = %v, want featured removed", cold)
	}

	if _, ok := gw.applied["steady"]; ok {
		t.Fatalf("steady post was retagged despite no change needed")
	}

	if history.set["forum-1"] != "hot" {
		t.Fatalf("featured history = %v, want hot recorded for forum-1", history.set)
	}
}

func TestRotateSkipsForumWithoutTag(t *testing.T) {
	gw := &fakeGateway{
		tags:    []Tag{{ID: "tag-other", Name: "問答"}},
		threads: []Thread{{ID: "hot", Name: "hot post"}},
	}
	st := &fakeStats{
		counts:     map[string]int64{"hot": 500},
		thresholds: stats.Thresholds{MessageThreshold: 200},
	}

	svc := NewService(gw, st, []string{"forum-1"}, "精華", zap.NewNop())
	if err := svc.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if len(gw.applied) != 0 {
		t.Fatalf("applied = %v, want no changes", gw.applied)
	}
}

func TestRotateTreatsUnknownThreadAsZero(t *testing.T) {
	gw := &fakeGateway{
		tags:    []Tag{{ID: "tag-featured", Name: "精華"}},
		threads: []Thread{{ID: "new", Name: "new post", AppliedTags: []string{"tag-featured"}}},
	}
	st := &fakeStats{
		counts:     map[string]int64{},
		thresholds: stats.Thresholds{MessageThreshold: 200},
	}

	svc := NewService(gw, st, []string{"forum-1"}, "精華", zap.NewNop())
	if err := svc.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	tags, ok := gw.applied["new"]
	if !ok {
		t.Fatalf("new post was not retagged")
	}
	if hasTag(tags, "tag-featured") {
		t.Fatalf("new post tags = %v, want featured removed", tags)
	}
}
