package local

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/plantwise/plantwise/pkg/auth"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage/memory"
)

func seededStore(t *testing.T, tenantID string) *memory.Store {
	t.Helper()
	s := memory.New()
	err := identity.Bootstrap(context.Background(), s, []identity.Tenant{{ID: tenantID}}, []string{identity.RoleAdmin})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return s
}

func newRequest() *auth.Request {
	return auth.NewRequest(httptest.NewRequest("GET", "/v1/me", nil))
}

func TestLocal_FirstCallProvisions(t *testing.T) {
	store := seededStore(t, "T1")
	cfg := DefaultConfig()
	cfg.TenantID = "T1"
	s := New(identity.NewProvisioner(store), cfg, nil)

	req := newRequest()
	ok, err := s.Authenticate(context.Background(), req)
	if err != nil || !ok {
		t.Fatalf("Authenticate = %v, %v; want true, nil", ok, err)
	}

	p := req.Principal()
	if p == nil {
		t.Fatal("no principal attached")
	}
	if p.TenantID != "T1" {
		t.Errorf("tenant = %q, want %q", p.TenantID, "T1")
	}
	if !p.HasRole(identity.RoleAdmin) || len(p.Roles) != 1 {
		t.Errorf("roles = %v, want [admin]", p.Roles)
	}
	if p.ExternalID != cfg.ExternalID || p.Email != cfg.Email {
		t.Errorf("principal = %+v, want fixture identity", p)
	}
	if store.UserCount() != 1 {
		t.Errorf("UserCount = %d, want 1", store.UserCount())
	}
}

func TestLocal_SecondCallIsIdempotent(t *testing.T) {
	store := seededStore(t, "T1")
	cfg := DefaultConfig()
	cfg.TenantID = "T1"
	s := New(identity.NewProvisioner(store), cfg, nil)
	ctx := context.Background()

	first := newRequest()
	if ok, err := s.Authenticate(ctx, first); !ok || err != nil {
		t.Fatalf("first call = %v, %v", ok, err)
	}
	second := newRequest()
	if ok, err := s.Authenticate(ctx, second); !ok || err != nil {
		t.Fatalf("second call = %v, %v", ok, err)
	}

	if first.Principal().UserID != second.Principal().UserID {
		t.Errorf("user ids differ: %q vs %q", first.Principal().UserID, second.Principal().UserID)
	}
	if store.UserCount() != 1 {
		t.Errorf("UserCount = %d, want 1", store.UserCount())
	}
}

func TestLocal_UnknownTenantDenies(t *testing.T) {
	store := seededStore(t, "T1")
	cfg := DefaultConfig()
	cfg.TenantID = "ghost"
	s := New(identity.NewProvisioner(store), cfg, nil)

	req := newRequest()
	ok, err := s.Authenticate(context.Background(), req)
	if ok || err != nil {
		t.Fatalf("Authenticate = %v, %v; want false, nil", ok, err)
	}
	if req.Principal() != nil {
		t.Error("principal must not be attached on denial")
	}
	if store.UserCount() != 0 {
		t.Errorf("UserCount = %d, want 0", store.UserCount())
	}
}

type brokenDirectory struct{ identity.Directory }

func (brokenDirectory) UserByExternalID(context.Context, string) (*identity.User, error) {
	return nil, errors.New("connection reset")
}

func TestLocal_StoreErrorReturnsFalse(t *testing.T) {
	s := New(identity.NewProvisioner(brokenDirectory{}), DefaultConfig(), nil)

	ok, err := s.Authenticate(context.Background(), newRequest())
	if ok || err != nil {
		t.Fatalf("Authenticate = %v, %v; want false, nil", ok, err)
	}
}

func TestLocal_TenantMismatchDenies(t *testing.T) {
	store := seededStore(t, "T1")
	if err := store.CreateTenant(context.Background(), &identity.Tenant{ID: "T2"}); err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	p := identity.NewProvisioner(store)

	cfg := DefaultConfig()
	cfg.TenantID = "T1"
	if ok, _ := New(p, cfg, nil).Authenticate(context.Background(), newRequest()); !ok {
		t.Fatal("initial provisioning failed")
	}

	cfg.TenantID = "T2"
	ok, err := New(p, cfg, nil).Authenticate(context.Background(), newRequest())
	if ok || err != nil {
		t.Errorf("Authenticate = %v, %v; want false, nil", ok, err)
	}
}

func TestLocal_InactiveUserDenies(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t, "T1")
	role, err := store.RoleByName(ctx, identity.RoleAdmin)
	if err != nil {
		t.Fatalf("RoleByName: %v", err)
	}

	cfg := DefaultConfig()
	cfg.TenantID = "T1"
	if err := store.CreateUser(ctx, &identity.User{
		ID:         "u-disabled",
		ExternalID: cfg.ExternalID,
		TenantID:   "T1",
		RoleID:     role.ID,
		Active:     false,
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	req := newRequest()
	ok, err := New(identity.NewProvisioner(store), cfg, nil).Authenticate(ctx, req)
	if ok || err != nil {
		t.Errorf("Authenticate = %v, %v; want false, nil", ok, err)
	}
	if req.Principal() != nil {
		t.Errorf("principal attached for an inactive user: %+v", req.Principal())
	}
}

func TestLocal_Name(t *testing.T) {
	if got := New(nil, DefaultConfig(), nil).Name(); got != "local" {
		t.Errorf("Name() = %q, want %q", got, "local")
	}
}
