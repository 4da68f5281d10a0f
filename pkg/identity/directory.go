package identity

import "context"

// Directory is the datastore collaborator for tenants, roles, and users.
//
// Lookups return storage.ErrNotFound when the record does not exist.
// CreateUser must enforce uniqueness of User.ExternalID and return
// storage.ErrConflict when it is violated; provisioning relies on this to
// resolve concurrent first-contact requests for the same identity.
type Directory interface {
	UserByExternalID(ctx context.Context, externalID string) (*User, error)
	TenantByID(ctx context.Context, id string) (*Tenant, error)
	RoleByName(ctx context.Context, name string) (*Role, error)
	RoleByID(ctx context.Context, id string) (*Role, error)
	CreateUser(ctx context.Context, user *User) error
}

// Seeder creates tenants and roles. It is used only by out-of-band
// provisioning (startup bootstrap and cmd/seed), never on the request path.
// Both methods return storage.ErrConflict when the record already exists.
type Seeder interface {
	CreateTenant(ctx context.Context, tenant *Tenant) error
	CreateRole(ctx context.Context, role *Role) error
}

// TenantReader lists records belonging to the tenant stored in the context
// with storage.SetTenant. Without a tenant it returns
// storage.ErrTenantRequired.
type TenantReader interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// Store is a complete directory backend.
type Store interface {
	Directory
	Seeder
	TenantReader
	HealthCheck(ctx context.Context) error
	Close() error
}
