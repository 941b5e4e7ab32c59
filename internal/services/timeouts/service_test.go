package timeouts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
	redisrepo "github.com/kazuki388/Threads/internal/repo/redis"
)

type fakeHistory struct {
	records []pgrepo.TimeoutRecord
}

func (f *fakeHistory) Insert(_ context.Context, rec pgrepo.TimeoutRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) ListByUser(_ context.Context, guildID, userID string, _ int) ([]pgrepo.TimeoutRecord, error) {
	var out []pgrepo.TimeoutRecord
	for _, rec := range f.records {
		if rec.GuildID == guildID && rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeMemberGateway struct {
	calls  int
	lastTo time.Time
}

func (f *fakeMemberGateway) TimeoutMember(_ context.Context, _, _ string, until time.Time) error {
	f.calls++
	f.lastTo = until
	return nil
}

func newTestTimeoutService(t *testing.T, now time.Time) (*Service, *fakeHistory, *fakeMemberGateway) {
	t.Helper()

	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(srv.Close)

	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	history := &fakeHistory{}
	gateway := &fakeMemberGateway{}
	svc := NewService(redisrepo.NewRiskRepo(client), history, gateway, Config{
		Steps:     []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour, 24 * time.Hour},
		RiskDecay: 6 * time.Hour,
	}, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, history, gateway
}

func TestEscalateWalksTheStepLadder(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, history, gateway := newTestTimeoutService(t, now)
	ctx := context.Background()

	wantDurations := []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour, 24 * time.Hour}
	for i, want := range wantDurations {
		state, err := svc.Escalate(ctx, "g1", "u1", "spam", 1)
		if err != nil {
			t.Fatalf("Escalate #%d: %v", i+1, err)
		}
		if state.RiskScore != i+1 {
			t.Fatalf("Escalate #%d risk = %d, want %d", i+1, state.RiskScore, i+1)
		}
		if state.Duration != want {
			t.Fatalf("Escalate #%d duration = %v, want %v", i+1, state.Duration, want)
		}
	}

	// Past the ladder the last step keeps applying.
	state, err := svc.Escalate(ctx, "g1", "u1", "spam", 1)
	if err != nil {
		t.Fatalf("Escalate past ladder: %v", err)
	}
	if state.Duration != 24*time.Hour {
		t.Fatalf("duration past ladder = %v, want 24h", state.Duration)
	}

	if gateway.calls != 5 {
		t.Fatalf("gateway calls = %d, want 5", gateway.calls)
	}
	if len(history.records) != 5 {
		t.Fatalf("history records = %d, want 5", len(history.records))
	}
	if history.records[0].Duration != 5*time.Minute {
		t.Fatalf("first record duration = %v, want 5m", history.records[0].Duration)
	}
}

func TestEscalateWeightSkipsSteps(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newTestTimeoutService(t, now)

	state, err := svc.Escalate(context.Background(), "g1", "u1", "severe abuse", 3)
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if state.RiskScore != 3 {
		t.Fatalf("risk = %d, want 3", state.RiskScore)
	}
	if state.Duration != 2*time.Hour {
		t.Fatalf("duration = %v, want 2h", state.Duration)
	}
}

func TestEscalateDecaysRiskOverTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newTestTimeoutService(t, now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Escalate(ctx, "g1", "u1", "spam", 1); err != nil {
			t.Fatalf("Escalate: %v", err)
		}
	}

	// Two decay intervals pass, risk drops 3 -> 1 before the new hit.
	later := now.Add(13 * time.Hour)
	svc.now = func() time.Time { return later }

	state, err := svc.Escalate(ctx, "g1", "u1", "spam", 1)
	if err != nil {
		t.Fatalf("Escalate after decay: %v", err)
	}
	if state.RiskScore != 2 {
		t.Fatalf("risk after decay = %d, want 2", state.RiskScore)
	}
	if state.Duration != 30*time.Minute {
		t.Fatalf("duration after decay = %v, want 30m", state.Duration)
	}
}

func TestEscalateValidatesInput(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newTestTimeoutService(t, now)

	if _, err := svc.Escalate(context.Background(), "", "u1", "spam", 1); err != ErrValidation {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, err := svc.Escalate(context.Background(), "g1", "", "spam", 1); err != ErrValidation {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRiskStateReadsBack(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newTestTimeoutService(t, now)
	ctx := context.Background()

	if _, err := svc.Escalate(ctx, "g1", "u1", "spam", 2); err != nil {
		t.Fatalf("Escalate: %v", err)
	}

	rec, err := svc.RiskState(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("RiskState: %v", err)
	}
	if !rec.Exists {
		t.Fatalf("Exists = false, want true")
	}
	if rec.RiskScore != 2 {
		t.Fatalf("RiskScore = %d, want 2", rec.RiskScore)
	}
}
