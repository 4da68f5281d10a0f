package cached

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/observability"
	"github.com/plantwise/plantwise/pkg/observability/metrictest"
	"github.com/plantwise/plantwise/pkg/storage"
	"github.com/plantwise/plantwise/pkg/storage/memory"
)

// countingStore records how often lookups reach the wrapped store.
type countingStore struct {
	*memory.Store
	userLookups   atomic.Int32
	tenantLookups atomic.Int32
}

func (c *countingStore) UserByExternalID(ctx context.Context, externalID string) (*identity.User, error) {
	c.userLookups.Add(1)
	return c.Store.UserByExternalID(ctx, externalID)
}

func (c *countingStore) TenantByID(ctx context.Context, id string) (*identity.Tenant, error) {
	c.tenantLookups.Add(1)
	return c.Store.TenantByID(ctx, id)
}

func setup(t *testing.T, ttl time.Duration) (*Store, *countingStore) {
	t.Helper()
	inner := &countingStore{Store: memory.New()}
	if err := identity.Bootstrap(context.Background(), inner, []identity.Tenant{{ID: "t1"}}, identity.StandardRoles); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return New(inner, 16, ttl), inner
}

func TestRepeatedLookupsHitCache(t *testing.T) {
	s, inner := setup(t, time.Minute)
	ctx := context.Background()
	p := identity.NewProvisioner(s)

	hitsBefore := metrictest.CounterValue(t, observability.DirectoryCacheTotal, "user", "hit")

	first, err := p.FindOrCreate(ctx, identity.Claims{ExternalID: "grower", TenantID: "t1"})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	for range 5 {
		u, err := p.FindOrCreate(ctx, identity.Claims{ExternalID: "grower", TenantID: "t1"})
		if err != nil {
			t.Fatalf("FindOrCreate: %v", err)
		}
		if u.ID != first.ID {
			t.Errorf("FindOrCreate = %s, want %s", u.ID, first.ID)
		}
	}

	// One miss on first contact; the create primes the cache.
	if got := inner.userLookups.Load(); got != 1 {
		t.Errorf("underlying user lookups = %d, want 1", got)
	}
	if got := metrictest.CounterValue(t, observability.DirectoryCacheTotal, "user", "hit") - hitsBefore; got != 5 {
		t.Errorf("user cache hits delta = %v, want 5", got)
	}
	if inner.UserCount() != 1 {
		t.Errorf("users = %d, want 1", inner.UserCount())
	}
}

func TestMissesAreNotCached(t *testing.T) {
	s, inner := setup(t, time.Minute)
	ctx := context.Background()

	for range 2 {
		if _, err := s.TenantByID(ctx, "t2"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("TenantByID error = %v, want ErrNotFound", err)
		}
	}
	if got := inner.tenantLookups.Load(); got != 2 {
		t.Errorf("underlying tenant lookups = %d, want 2", got)
	}

	// A tenant seeded after a miss becomes visible immediately.
	if err := inner.CreateTenant(ctx, &identity.Tenant{ID: "t2", Name: "Late"}); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	if _, err := s.TenantByID(ctx, "t2"); err != nil {
		t.Errorf("TenantByID after seeding: %v", err)
	}
}

func TestEntriesExpire(t *testing.T) {
	s, inner := setup(t, 20*time.Millisecond)
	ctx := context.Background()

	if _, err := s.TenantByID(ctx, "t1"); err != nil {
		t.Fatalf("TenantByID: %v", err)
	}
	if _, err := s.TenantByID(ctx, "t1"); err != nil {
		t.Fatalf("TenantByID: %v", err)
	}
	if got := inner.tenantLookups.Load(); got != 1 {
		t.Fatalf("underlying tenant lookups = %d, want 1 before expiry", got)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := s.TenantByID(ctx, "t1"); err != nil {
		t.Fatalf("TenantByID: %v", err)
	}
	if got := inner.tenantLookups.Load(); got != 2 {
		t.Errorf("underlying tenant lookups = %d, want 2 after expiry", got)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s, _ := setup(t, time.Minute)
	ctx := context.Background()

	a, err := s.TenantByID(ctx, "t1")
	if err != nil {
		t.Fatalf("TenantByID: %v", err)
	}
	a.Name = "mutated"

	b, err := s.TenantByID(ctx, "t1")
	if err != nil {
		t.Fatalf("TenantByID: %v", err)
	}
	if b.Name == "mutated" {
		t.Error("mutating a returned tenant changed the cached entry")
	}
}

func TestPassThrough(t *testing.T) {
	s, _ := setup(t, time.Minute)
	ctx := context.Background()

	if err := s.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
	if _, err := s.ListUsers(ctx); !errors.Is(err, storage.ErrTenantRequired) {
		t.Errorf("ListUsers error = %v, want ErrTenantRequired", err)
	}
	if _, err := s.RoleByName(ctx, identity.RoleAdmin); err != nil {
		t.Errorf("RoleByName: %v", err)
	}
}

func TestCloseDropsCachedEntries(t *testing.T) {
	s, _ := setup(t, time.Minute)
	ctx := context.Background()

	if _, err := s.TenantByID(ctx, "t1"); err != nil {
		t.Fatalf("TenantByID: %v", err)
	}
	if _, err := s.RoleByName(ctx, identity.RoleAdmin); err != nil {
		t.Fatalf("RoleByName: %v", err)
	}
	if s.tenants.Len() != 1 || s.rolesByName.Len() != 1 {
		t.Fatalf("cache sizes = %d/%d, want 1/1", s.tenants.Len(), s.rolesByName.Len())
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := s.tenants.Len() + s.rolesByName.Len() + s.rolesByID.Len() + s.users.Len(); n != 0 {
		t.Errorf("cached entries after Close = %d, want 0", n)
	}
}
