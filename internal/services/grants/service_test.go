package grants

import (
	"context"
	"errors"
	"testing"

	"github.com/kazuki388/Threads/internal/config"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
)

type fakeGrantStore struct {
	grants map[string]pgrepo.GrantRecord
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{grants: make(map[string]pgrepo.GrantRecord)}
}

func (f *fakeGrantStore) Add(_ context.Context, g pgrepo.GrantRecord) error {
	f.grants[g.ThreadID+"/"+g.UserID] = g
	return nil
}

func (f *fakeGrantStore) Remove(_ context.Context, threadID, userID string) error {
	key := threadID + "/" + userID
	if _, ok := f.grants[key]; !ok {
		return pgrepo.ErrGrantNotFound
	}
	delete(f.grants, key)
	return nil
}

func (f *fakeGrantStore) Exists(_ context.Context, threadID, userID string) (bool, error) {
	_, ok := f.grants[threadID+"/"+userID]
	return ok, nil
}

func (f *fakeGrantStore) ListByThread(_ context.Context, threadID string) ([]pgrepo.GrantRecord, error) {
	var out []pgrepo.GrantRecord
	for _, g := range f.grants {
		if g.ThreadID == threadID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGrantStore) ListAll(_ context.Context) ([]pgrepo.GrantRecord, error) {
	var out []pgrepo.GrantRecord
	for _, g := range f.grants {
		out = append(out, g)
	}
	return out, nil
}

func TestCanManageThread(t *testing.T) {
	store := newFakeGrantStore()
	svc := NewService(store, []config.RoleGrant{
		{RoleID: "mod-role", Channels: []string{"forum-1", "forum-2"}},
	})
	ctx := context.Background()

	thread := Thread{ID: "t1", ParentID: "forum-1", OwnerID: "owner"}

	tests := []struct {
		name   string
		member Member
		grant  bool
		want   bool
	}{
		{name: "owner", member: Member{UserID: "owner"}, want: true},
		{name: "role mandate", member: Member{UserID: "u1", Roles: []string{"mod-role"}}, want: true},
		{name: "role without mandate", member: Member{UserID: "u2", Roles: []string{"other-role"}}, want: false},
		{name: "explicit grant", member: Member{UserID: "u3"}, grant: true, want: true},
		{name: "stranger", member: Member{UserID: "u4"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.grant {
				if err := svc.Share(ctx, thread.ID, tt.member.UserID, "owner"); err != nil {
					t.Fatalf("share: %v", err)
				}
			}
			got, err := svc.CanManageThread(ctx, thread, tt.member)
			if err != nil {
				t.Fatalf("can manage: %v", err)
			}
			if got != tt.want {
				t.Fatalf("unexpected verdict: got %v want %v", got, tt.want)
			}
		})
	}
}

func TestRoleMandateScopedToParentChannel(t *testing.T) {
	svc := NewService(newFakeGrantStore(), []config.RoleGrant{
		{RoleID: "mod-role", Channels: []string{"forum-1"}},
	})

	elsewhere := Thread{ID: "t9", ParentID: "forum-9", OwnerID: "owner"}
	got, err := svc.CanManageThread(context.Background(), elsewhere, Member{UserID: "u1", Roles: []string{"mod-role"}})
	if err != nil {
		t.Fatalf("can manage: %v", err)
	}
	if got {
		t.Fatalf("role mandate must not apply outside its channels")
	}
}

func TestRevokeMissingReturnsErrNotGranted(t *testing.T) {
	svc := NewService(newFakeGrantStore(), nil)

	err := svc.Revoke(context.Background(), "t1", "nobody")
	if !errors.Is(err, ErrNotGranted) {
		t.Fatalf("expected ErrNotGranted, got %v", err)
	}
}
