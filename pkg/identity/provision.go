package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/plantwise/plantwise/pkg/observability"
	"github.com/plantwise/plantwise/pkg/storage"
)

// Provisioner resolves an external identity to a stored user, creating the
// user on first contact.
type Provisioner struct {
	dir         Directory
	defaultRole string
	logger      *slog.Logger
	now         func() time.Time
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithDefaultRole sets the role assigned to newly provisioned users.
// The default is RoleAdmin.
func WithDefaultRole(name string) ProvisionerOption {
	return func(p *Provisioner) {
		if name != "" {
			p.defaultRole = name
		}
	}
}

// WithProvisionLogger sets the logger used for provisioning events.
func WithProvisionLogger(logger *slog.Logger) ProvisionerOption {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvisioner creates a Provisioner backed by dir.
func NewProvisioner(dir Directory, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		dir:         dir,
		defaultRole: RoleAdmin,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultRole returns the role name assigned to new users.
func (p *Provisioner) DefaultRole() string { return p.defaultRole }

// Directory returns the underlying directory.
func (p *Provisioner) Directory() Directory { return p.dir }

// FindOrCreate returns the user whose external id matches claims.ExternalID.
// If none exists, the tenant and the default role must already exist; a
// new active user is then created under them. Missing names fall back to
// PlaceholderFirstName and PlaceholderLastName.
//
// An existing user is returned as stored, even if claims.TenantID names a
// different tenant. Callers that care compare user.TenantID themselves.
func (p *Provisioner) FindOrCreate(ctx context.Context, claims Claims) (*User, error) {
	if claims.ExternalID == "" {
		return nil, fmt.Errorf("%w: external id is required", ErrInvalidClaims)
	}

	user, err := p.dir.UserByExternalID(ctx, claims.ExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("looking up user %q: %w", claims.ExternalID, err)
	}

	if claims.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidClaims)
	}
	tenant, err := p.dir.TenantByID(ctx, claims.TenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, claims.TenantID)
		}
		return nil, fmt.Errorf("looking up tenant %q: %w", claims.TenantID, err)
	}

	role, err := p.dir.RoleByName(ctx, p.defaultRole)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, p.defaultRole)
		}
		return nil, fmt.Errorf("looking up role %q: %w", p.defaultRole, err)
	}

	user = &User{
		ID:         uuid.NewString(),
		ExternalID: claims.ExternalID,
		Email:      claims.Email,
		FirstName:  orDefault(claims.FirstName, PlaceholderFirstName),
		LastName:   orDefault(claims.LastName, PlaceholderLastName),
		Active:     true,
		TenantID:   tenant.ID,
		RoleID:     role.ID,
		CreatedAt:  p.now().UTC(),
	}

	if err := p.dir.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("creating user %q: %w", claims.ExternalID, err)
		}
		// A concurrent request inserted the same identity first.
		winner, lookupErr := p.dir.UserByExternalID(ctx, claims.ExternalID)
		if lookupErr != nil {
			return nil, fmt.Errorf("re-reading user %q after conflict: %w", claims.ExternalID, lookupErr)
		}
		return winner, nil
	}

	observability.UsersProvisionedTotal.Inc()
	p.logger.Info("provisioned user",
		"external_id", user.ExternalID,
		"tenant_id", user.TenantID,
		"role", role.Name,
	)
	return user, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
