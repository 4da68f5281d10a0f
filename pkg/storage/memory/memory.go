// Package memory provides an in-memory identity directory for development
// and tests. Records are lost when the process restarts.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage"
)

// Store is an in-memory identity.Store. External ids and role names are
// unique, matching the constraints of the SQL backends.
type Store struct {
	mu           sync.RWMutex
	tenants      map[string]identity.Tenant
	roles        map[string]identity.Role // by id
	roleNames    map[string]string        // name -> id
	users        map[string]identity.User // by id
	byExternalID map[string]string        // external id -> user id
}

// Ensure Store implements identity.Store at compile time.
var _ identity.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		tenants:      make(map[string]identity.Tenant),
		roles:        make(map[string]identity.Role),
		roleNames:    make(map[string]string),
		users:        make(map[string]identity.User),
		byExternalID: make(map[string]string),
	}
}

func (s *Store) UserByExternalID(_ context.Context, externalID string) (*identity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byExternalID[externalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) TenantByID(_ context.Context, id string) (*identity.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &t, nil
}

func (s *Store) RoleByName(_ context.Context, name string) (*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.roleNames[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	r := s.roles[id]
	return &r, nil
}

func (s *Store) RoleByID(_ context.Context, id string) (*identity.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

// CreateUser inserts a user. The tenant and role must exist.
func (s *Store) CreateUser(_ context.Context, u *identity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byExternalID[u.ExternalID]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.users[u.ID]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.tenants[u.TenantID]; !ok {
		return identity.ErrTenantNotFound
	}
	if _, ok := s.roles[u.RoleID]; !ok {
		return identity.ErrRoleNotFound
	}

	s.users[u.ID] = *u
	s.byExternalID[u.ExternalID] = u.ID
	return nil
}

func (s *Store) CreateTenant(_ context.Context, t *identity.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[t.ID]; ok {
		return storage.ErrConflict
	}
	s.tenants[t.ID] = *t
	return nil
}

func (s *Store) CreateRole(_ context.Context, r *identity.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roleNames[r.Name]; ok {
		return storage.ErrConflict
	}
	if _, ok := s.roles[r.ID]; ok {
		return storage.ErrConflict
	}
	s.roles[r.ID] = *r
	s.roleNames[r.Name] = r.ID
	return nil
}

// ListUsers returns the users of the context tenant ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]identity.User, error) {
	tenantID, err := storage.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []identity.User
	for _, u := range s.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// UserCount returns the number of stored users.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
