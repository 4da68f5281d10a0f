package identity

import (
	"context"
	"slices"
)

// Principal is the authenticated caller summary attached to a request.
// Every strategy produces this shape.
type Principal struct {
	UserID     string   `json:"user_id"`
	ExternalID string   `json:"external_id"`
	Email      string   `json:"email"`
	TenantID   string   `json:"tenant_id"`
	Roles      []string `json:"roles"`
}

// HasRole reports whether the principal carries the named role.
func (p *Principal) HasRole(name string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, name)
}

// Clone returns a deep copy of p.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Roles = slices.Clone(p.Roles)
	return &cp
}

// principalKey is a private type for the principal context key.
type principalKey struct{}

// SetPrincipal stores the principal in the context, replacing any
// principal stored earlier.
func SetPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal.
// Returns nil on public routes and before authentication.
func PrincipalFromContext(ctx context.Context) *Principal {
	if v, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return v
	}
	return nil
}
