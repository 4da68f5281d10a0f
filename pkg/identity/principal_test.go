package identity

import (
	"context"
	"testing"
)

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if got := PrincipalFromContext(ctx); got != nil {
		t.Fatalf("empty context principal = %+v, want nil", got)
	}

	first := &Principal{UserID: "u1", TenantID: "t1", Roles: []string{RoleAdmin}}
	second := &Principal{UserID: "u2", TenantID: "t2"}

	ctx = SetPrincipal(ctx, first)
	ctx = SetPrincipal(ctx, second)

	got := PrincipalFromContext(ctx)
	if got.UserID != "u2" || got.TenantID != "t2" {
		t.Errorf("principal = %+v, want the last one set", got)
	}
	if got.HasRole(RoleAdmin) {
		t.Error("roles must not merge across SetPrincipal calls")
	}
}

func TestPrincipalClone(t *testing.T) {
	orig := &Principal{UserID: "u1", Roles: []string{RoleAdmin}}
	cp := orig.Clone()
	cp.Roles[0] = RoleGuest

	if !orig.HasRole(RoleAdmin) {
		t.Error("mutating the clone changed the original roles")
	}
	var nilP *Principal
	if nilP.Clone() != nil || nilP.HasRole(RoleAdmin) {
		t.Error("nil principal should clone to nil and have no roles")
	}
}
