package identity

import "time"

// Standard role names seeded for every deployment.
const (
	RoleAdmin       = "admin"
	RoleManager     = "manager"
	RoleFieldWorker = "field-worker"
	RoleViewer      = "viewer"
	RoleGuest       = "guest"
)

// StandardRoles lists the roles created by Bootstrap, in seeding order.
var StandardRoles = []string{RoleAdmin, RoleManager, RoleFieldWorker, RoleViewer, RoleGuest}

// Placeholder names used when a first-contact identity carries none.
const (
	PlaceholderFirstName = "Dev"
	PlaceholderLastName  = "User"
)

// Tenant is the isolation boundary. All business data belongs to exactly
// one tenant.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is a named permission bucket.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User is a provisioned caller. ExternalID is the identity provider's
// subject and the natural key used for lookups.
type User struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Active     bool      `json:"active"`
	TenantID   string    `json:"tenant_id"`
	RoleID     string    `json:"role_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Claims is what an authentication strategy knows about a caller before
// the user record is resolved.
type Claims struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	TenantID   string
}
