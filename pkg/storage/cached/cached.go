// Package cached wraps an identity.Store with a read-through LRU cache for
// the lookups made on every authenticated request. Only hits are cached;
// a missing tenant or user is always re-read from the underlying store.
package cached

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/plantwise/plantwise/pkg/debug"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/observability"
)

// Cache kinds reported in the plantwise_directory_cache_total metric.
const (
	kindUser   = "user"
	kindTenant = "tenant"
	kindRole   = "role"
)

// Store is an identity.Store whose point lookups are served from memory
// for up to the configured TTL. Writes and tenant-scoped listings go
// straight to the wrapped store.
type Store struct {
	identity.Store

	users       *expirable.LRU[string, identity.User]
	tenants     *expirable.LRU[string, identity.Tenant]
	rolesByName *expirable.LRU[string, identity.Role]
	rolesByID   *expirable.LRU[string, identity.Role]
}

// Ensure Store implements identity.Store at compile time.
var _ identity.Store = (*Store)(nil)

// New wraps next. size bounds each cache independently.
func New(next identity.Store, size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = 1024
	}
	return &Store{
		Store:       next,
		users:       expirable.NewLRU[string, identity.User](size, nil, ttl),
		tenants:     expirable.NewLRU[string, identity.Tenant](size, nil, ttl),
		rolesByName: expirable.NewLRU[string, identity.Role](size, nil, ttl),
		rolesByID:   expirable.NewLRU[string, identity.Role](size, nil, ttl),
	}
}

func (s *Store) UserByExternalID(ctx context.Context, externalID string) (*identity.User, error) {
	return lookup(s.users, kindUser, externalID, func() (*identity.User, error) {
		return s.Store.UserByExternalID(ctx, externalID)
	})
}

func (s *Store) TenantByID(ctx context.Context, id string) (*identity.Tenant, error) {
	return lookup(s.tenants, kindTenant, id, func() (*identity.Tenant, error) {
		return s.Store.TenantByID(ctx, id)
	})
}

func (s *Store) RoleByName(ctx context.Context, name string) (*identity.Role, error) {
	return lookup(s.rolesByName, kindRole, name, func() (*identity.Role, error) {
		return s.Store.RoleByName(ctx, name)
	})
}

func (s *Store) RoleByID(ctx context.Context, id string) (*identity.Role, error) {
	return lookup(s.rolesByID, kindRole, id, func() (*identity.Role, error) {
		return s.Store.RoleByID(ctx, id)
	})
}

// CreateUser writes through and primes the user cache on success.
func (s *Store) CreateUser(ctx context.Context, u *identity.User) error {
	if err := s.Store.CreateUser(ctx, u); err != nil {
		return err
	}
	s.users.Add(u.ExternalID, *u)
	return nil
}

// Close drops every cached entry and closes the wrapped store.
func (s *Store) Close() error {
	s.users.Purge()
	s.tenants.Purge()
	s.rolesByName.Purge()
	s.rolesByID.Purge()
	return s.Store.Close()
}

// lookup returns a copy of the cached value for key, or loads and caches it.
func lookup[V any](c *expirable.LRU[string, V], kind, key string, load func() (*V, error)) (*V, error) {
	if v, ok := c.Get(key); ok {
		observability.DirectoryCacheTotal.WithLabelValues(kind, "hit").Inc()
		return &v, nil
	}
	observability.DirectoryCacheTotal.WithLabelValues(kind, "miss").Inc()
	debug.Log("storage", "directory cache miss", "kind", kind, "key", key)

	v, err := load()
	if err != nil {
		return nil, err
	}
	c.Add(key, *v)
	return v, nil
}
