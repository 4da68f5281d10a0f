package storage

import "errors"

// Sentinel errors for directory operations.
var (
	// ErrNotFound is returned when a tenant, role, or user does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a record violates a uniqueness constraint,
	// for example a second user with an already registered external id.
	ErrConflict = errors.New("record already exists")
)

// ErrTenantRequired is returned by tenant-scoped reads when the context
// carries no tenant.
var ErrTenantRequired = errors.New("tenant scope required")
