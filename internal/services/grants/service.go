package grants

import (
	"context"
	"errors"
	"fmt"

	"github.com/kazuki388/Threads/internal/config"
	pgrepo "github.com/kazuki388/Threads/internal/repo/postgres"
)

var ErrNotGranted = errors.New("user has no grant for this thread")

type Store interface {
	Add(ctx context.Context, grant pgrepo.GrantRecord) error
	Remove(ctx context.Context, threadID, userID string) error
	Exists(ctx context.Context, threadID, userID string) (bool, error)
	ListByThread(ctx context.Context, threadID string) ([]pgrepo.GrantRecord, error)
	ListAll(ctx context.Context) ([]pgrepo.GrantRecord, error)
}

// Thread carries the slice of channel state the permission checks need.
type Thread struct {
	ID       string
	ParentID string
	OwnerID  string
}

// Member is the acting user plus their guild roles.
type Member struct {
	UserID string
	Roles  []string
}

type Service struct {
	store Store
	// roleMandates maps role id -> set of parent channel ids that role moderates.
	roleMandates map[string]map[string]struct{}
}

func NewService(store Store, roleGrants []config.RoleGrant) *Service {
	mandates := make(map[string]map[string]struct{}, len(roleGrants))
	for _, rg := range roleGrants {
		if rg.RoleID == "" {
			continue
		}
		channels := make(map[string]struct{}, len(rg.Channels))
		for _, ch := range rg.Channels {
			channels[ch] = struct{}{}
		}
		mandates[rg.RoleID] = channels
	}

	return &Service{store: store, roleMandates: mandates}
}

func (s *Service) Share(ctx context.Context, threadID, userID, grantedBy string) error {
	if s.store == nil {
		return fmt.Errorf("grant store is not configured")
	}
	if threadID == "" || userID == "" {
		return fmt.Errorf("invalid grant key")
	}

	return s.store.Add(ctx, pgrepo.GrantRecord{
		ThreadID:  threadID,
		UserID:    userID,
		GrantedBy: grantedBy,
	})
}

func (s *Service) Revoke(ctx context.Context, threadID, userID string) error {
	if s.store == nil {
		return fmt.Errorf("grant store is not configured")
	}
	if threadID == "" || userID == "" {
		return fmt.Errorf("invalid grant key")
	}

	if err := s.store.Remove(ctx, threadID, userID); err != nil {
		if errors.Is(err, pgrepo.ErrGrantNotFound) {
			return ErrNotGranted
		}
		return err
	}

	return nil
}

// CanManageThread is the single permission gate for thread moderation:
// thread owner, explicitly granted user, or a role whose mandate covers the
// thread's parent channel.
func (s *Service) CanManageThread(ctx context.Context, thread Thread, member Member) (bool, error) {
	if member.UserID == "" || thread.ID == "" {
		return false, fmt.Errorf("invalid permission check")
	}

	if thread.OwnerID != "" && thread.OwnerID == member.UserID {
		return true, nil
	}

	if s.HasRoleMandate(thread.ParentID, member.Roles) {
		return true, nil
	}

	if s.store == nil {
		return false, nil
	}
	granted, err := s.store.Exists(ctx, thread.ID, member.UserID)
	if err != nil {
		return false, err
	}

	return granted, nil
}

// HasRoleMandate checks the config-driven role -> channel mapping only.
func (s *Service) HasRoleMandate(parentID string, roles []string) bool {
	if parentID == "" {
		return false
	}
	for _, role := range roles {
		channels, ok := s.roleMandates[role]
		if !ok {
			continue
		}
		if _, ok := channels[parentID]; ok {
			return true
		}
	}
	return false
}

func (s *Service) ListThread(ctx context.Context, threadID string) ([]pgrepo.GrantRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("grant store is not configured")
	}
	return s.store.ListByThread(ctx, threadID)
}

func (s *Service) ListAll(ctx context.Context) ([]pgrepo.GrantRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("grant store is not configured")
	}
	return s.store.ListAll(ctx)
}
