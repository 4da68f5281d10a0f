package storage

import "context"

// tenantKey is a private type for the tenant context key, preventing
// collisions with other packages.
type tenantKey struct{}

// SetTenant injects a tenant identifier into the context, replacing any
// tenant set earlier in the request pipeline.
func SetTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenant extracts the tenant identifier from the context.
// Returns an empty string if no tenant is set (unauthenticated request).
func GetTenant(ctx context.Context) string {
	if v, ok := ctx.Value(tenantKey{}).(string); ok {
		return v
	}
	return ""
}

// RequireTenant returns the context tenant or ErrTenantRequired.
func RequireTenant(ctx context.Context) (string, error) {
	if id := GetTenant(ctx); id != "" {
		return id, nil
	}
	return "", ErrTenantRequired
}
