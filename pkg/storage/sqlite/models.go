package sqlite

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/plantwise/plantwise/pkg/identity"
)

type tenantModel struct {
	bun.BaseModel `bun:"table:tenants,alias:t"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type roleModel struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull,unique"`
}

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         string    `bun:"id,pk"`
	ExternalID string    `bun:"external_id,notnull,unique"`
	Email      string    `bun:"email,notnull"`
	FirstName  string    `bun:"first_name,notnull"`
	LastName   string    `bun:"last_name,notnull"`
	Active     bool      `bun:"active,notnull"`
	TenantID   string    `bun:"tenant_id,notnull"`
	RoleID     string    `bun:"role_id,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

func (m *tenantModel) toIdentity() *identity.Tenant {
	return &identity.Tenant{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt.UTC()}
}

func (m *roleModel) toIdentity() *identity.Role {
	return &identity.Role{ID: m.ID, Name: m.Name}
}

func (m *userModel) toIdentity() *identity.User {
	return &identity.User{
		ID:         m.ID,
		ExternalID: m.ExternalID,
		Email:      m.Email,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Active:     m.Active,
		TenantID:   m.TenantID,
		RoleID:     m.RoleID,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func userFromIdentity(u *identity.User) *userModel {
	return &userModel{
		ID:         u.ID,
		ExternalID: u.ExternalID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Active:     u.Active,
		TenantID:   u.TenantID,
		RoleID:     u.RoleID,
		CreatedAt:  u.CreatedAt.UTC(),
	}
}
