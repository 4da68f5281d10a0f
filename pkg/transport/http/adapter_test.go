package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/plantwise/plantwise/pkg/auth"
	"github.com/plantwise/plantwise/pkg/auth/local"
	"github.com/plantwise/plantwise/pkg/auth/verified"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage/memory"
	"github.com/plantwise/plantwise/pkg/transport"
)

// countingStrategy wraps a strategy and counts Authenticate calls.
type countingStrategy struct {
	auth.Strategy
	calls atomic.Int32
}

func (c *countingStrategy) Authenticate(ctx context.Context, req *auth.Request) (bool, error) {
	c.calls.Add(1)
	return c.Strategy.Authenticate(ctx, req)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	err := identity.Bootstrap(context.Background(), s,
		[]identity.Tenant{{ID: "T1", Name: "Tenant One"}, {ID: "T2", Name: "Tenant Two"}},
		identity.StandardRoles)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return s
}

func newHandler(t *testing.T, store identity.Store, s auth.Strategy, env string) gohttp.Handler {
	t.Helper()
	tr := transport.NewTranslator(env, transport.WithTranslatorLogger(quietLogger()))
	return NewAdapter(store, s, tr, WithAdapterLogger(quietLogger())).Handler()
}

func localStrategy(store identity.Store, tenantID string) *countingStrategy {
	cfg := local.DefaultConfig()
	cfg.TenantID = tenantID
	return &countingStrategy{Strategy: local.New(identity.NewProvisioner(store), cfg, quietLogger())}
}

func do(h gohttp.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPublicRoutesNeverCallStrategy(t *testing.T) {
	store := seededStore(t)
	s := localStrategy(store, "T1")
	h := newHandler(t, store, s, "development")

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := do(h, "GET", path)
		if rec.Code != gohttp.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
	if got := s.calls.Load(); got != 0 {
		t.Errorf("strategy calls = %d, want 0", got)
	}
	if store.UserCount() != 0 {
		t.Errorf("public routes provisioned %d users", store.UserCount())
	}
}

func TestHealthzReflectsHandlerOutput(t *testing.T) {
	store := seededStore(t)
	h := newHandler(t, store, verified.New(identity.NewProvisioner(store), nil, quietLogger()), "production")

	rec := do(h, "GET", "/healthz")
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status ok", body)
	}
}

func TestLocalStrategyEndToEnd(t *testing.T) {
	store := seededStore(t)
	s := localStrategy(store, "T1")
	h := newHandler(t, store, s, "development")

	first := do(h, "GET", "/v1/me")
	if first.Code != gohttp.StatusOK {
		t.Fatalf("first /v1/me status = %d, body %s", first.Code, first.Body)
	}
	var p1 identity.Principal
	json.NewDecoder(first.Body).Decode(&p1)
	if p1.TenantID != "T1" {
		t.Errorf("tenant = %q, want T1", p1.TenantID)
	}
	if len(p1.Roles) != 1 || p1.Roles[0] != identity.RoleAdmin {
		t.Errorf("roles = %v, want [admin]", p1.Roles)
	}

	second := do(h, "GET", "/v1/me")
	var p2 identity.Principal
	json.NewDecoder(second.Body).Decode(&p2)
	if p2.UserID != p1.UserID {
		t.Errorf("user id changed: %q then %q", p1.UserID, p2.UserID)
	}
	if store.UserCount() != 1 {
		t.Errorf("UserCount = %d, want 1", store.UserCount())
	}

	tenant := do(h, "GET", "/v1/tenant")
	var got identity.Tenant
	json.NewDecoder(tenant.Body).Decode(&got)
	if got.ID != "T1" || got.Name != "Tenant One" {
		t.Errorf("tenant = %+v, want T1", got)
	}
}

func TestVerifiedStubDeniesInProduction(t *testing.T) {
	store := seededStore(t)
	h := newHandler(t, store, verified.New(identity.NewProvisioner(store), nil, quietLogger()), "production")

	rec := do(h, "GET", "/v1/me")
	if rec.Code != gohttp.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body transport.ErrorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != transport.MessageAccessDenied {
		t.Errorf("message = %q, want %q", body.Message, transport.MessageAccessDenied)
	}
	if body.Path != "/v1/me" || body.Timestamp == "" {
		t.Errorf("body = %+v, want path and timestamp", body)
	}
}

func TestUnknownTenantIsDenialNot500(t *testing.T) {
	store := seededStore(t)
	h := newHandler(t, store, localStrategy(store, "ghost"), "development")

	rec := do(h, "GET", "/v1/me")
	if rec.Code != gohttp.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if store.UserCount() != 0 {
		t.Errorf("UserCount = %d, want 0", store.UserCount())
	}
}

type tokenVerifier map[string]identity.Claims

func (v tokenVerifier) Verify(_ context.Context, token string) (identity.Claims, error) {
	c, ok := v[token]
	if !ok {
		return identity.Claims{}, errors.New("unknown token")
	}
	return c, nil
}

func TestListUsersIsTenantIsolated(t *testing.T) {
	store := seededStore(t)
	v := tokenVerifier{
		"t1-admin": {ExternalID: "a1", TenantID: "T1"},
		"t1-other": {ExternalID: "a2", TenantID: "T1"},
		"t2-admin": {ExternalID: "b1", TenantID: "T2"},
	}
	s := verified.New(identity.NewProvisioner(store), v, quietLogger())
	h := newHandler(t, store, s, "production")

	get := func(token, path string) *httptest.ResponseRecorder {
		r := httptest.NewRequest("GET", path, nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	for token := range v {
		if rec := get(token, "/v1/me"); rec.Code != gohttp.StatusOK {
			t.Fatalf("provisioning %s: status %d", token, rec.Code)
		}
	}

	rec := get("t2-admin", "/v1/users")
	if rec.Code != gohttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list struct {
		Data []identity.User `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Data) != 1 || list.Data[0].ExternalID != "b1" {
		t.Errorf("T2 users = %+v, want only b1", list.Data)
	}
}

func TestListUsersRequiresRole(t *testing.T) {
	store := seededStore(t)
	v := tokenVerifier{"guest": {ExternalID: "g1", TenantID: "T1"}}
	p := identity.NewProvisioner(store, identity.WithDefaultRole(identity.RoleGuest))
	h := newHandler(t, store, verified.New(p, v, quietLogger()), "production")

	r := httptest.NewRequest("GET", "/v1/users", nil)
	r.Header.Set("Authorization", "Bearer guest")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != gohttp.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	store := seededStore(t)
	h := newHandler(t, store, localStrategy(store, "T1"), "development")

	rec := do(h, "GET", "/healthz")
	if rec.Header().Get(transport.RequestIDHeader) == "" {
		t.Error("missing X-Request-ID header")
	}
}

type unhealthyStore struct{ *memory.Store }

func (unhealthyStore) HealthCheck(context.Context) error { return errors.New("connection refused") }

func TestReadyzReportsStoreHealth(t *testing.T) {
	store := unhealthyStore{seededStore(t)}
	h := newHandler(t, store, localStrategy(store, "T1"), "development")

	if rec := do(h, "GET", "/readyz"); rec.Code != gohttp.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
