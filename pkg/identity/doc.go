// Package identity defines the tenant, role, and user records that back
// request authentication, the Directory contract implemented by the
// storage backends, and the find-or-create provisioning step that runs the
// first time an external identity reaches the service.
//
// Provisioning never creates tenants or roles. Those are seeded out of band
// (see Bootstrap and cmd/seed); the request path only reads them and
// inserts users that reference them.
package identity
