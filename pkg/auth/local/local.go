// Package local provides the development authentication strategy. Every
// request is authenticated as one fixed, fictitious user in one fixed
// tenant; the user is provisioned on first use.
package local

import (
	"context"
	"log/slog"

	"github.com/plantwise/plantwise/pkg/auth"
	"github.com/plantwise/plantwise/pkg/identity"
)

// Name is the strategy name reported in logs and metrics.
const Name = "local"

// Config describes the fixture identity.
type Config struct {
	TenantID   string
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
}

// DefaultConfig returns the built-in development identity.
func DefaultConfig() Config {
	return Config{
		TenantID:   "dev-tenant",
		ExternalID: "dev-user",
		Email:      "dev@plantwise.local",
		FirstName:  identity.PlaceholderFirstName,
		LastName:   identity.PlaceholderLastName,
	}
}

// Strategy authenticates every request as the configured fixture user.
type Strategy struct {
	cfg         Config
	provisioner *identity.Provisioner
	logger      *slog.Logger
}

var _ auth.Strategy = (*Strategy)(nil)

// New creates the local strategy.
func New(p *identity.Provisioner, cfg Config, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategy{cfg: cfg, provisioner: p, logger: logger}
}

func (s *Strategy) Name() string { return Name }

// Authenticate resolves or creates the fixture user and attaches it with
// the admin role. Store failures, including an unseeded tenant or role, and
// a deactivated fixture user deny the request instead of returning an error.
func (s *Strategy) Authenticate(ctx context.Context, req *auth.Request) (bool, error) {
	user, err := s.provisioner.FindOrCreate(ctx, identity.Claims{
		ExternalID: s.cfg.ExternalID,
		Email:      s.cfg.Email,
		FirstName:  s.cfg.FirstName,
		LastName:   s.cfg.LastName,
		TenantID:   s.cfg.TenantID,
	})
	if err != nil {
		s.logger.Warn("local identity unavailable",
			"tenant_id", s.cfg.TenantID,
			"external_id", s.cfg.ExternalID,
			"error", err,
		)
		return false, nil
	}

	if !user.Active {
		s.logger.Warn("local identity is inactive",
			"user_id", user.ID,
			"tenant_id", user.TenantID,
		)
		return false, nil
	}

	// The fixture user may already exist under another tenant if the
	// configuration changed between runs.
	if user.TenantID != s.cfg.TenantID {
		s.logger.Warn("local identity belongs to another tenant",
			"tenant_id", s.cfg.TenantID,
			"user_tenant_id", user.TenantID,
		)
		return false, nil
	}

	req.Attach(identity.Principal{
		UserID:     user.ID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		TenantID:   user.TenantID,
		Roles:      []string{identity.RoleAdmin},
	})
	return true, nil
}
