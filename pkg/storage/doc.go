// Package storage provides utilities shared across the identity directory
// implementations, including sentinel errors and tenant context helpers.
//
// Directory backends (memory, postgres, sqlite) implement the
// identity.Directory interface defined in pkg/identity. This package
// contains only shared types and helpers, not the interface itself.
package storage
