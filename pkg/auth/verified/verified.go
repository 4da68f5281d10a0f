// Package verified provides the production authentication strategy: a
// bearer credential is verified against an external identity provider and
// its claims are mapped to a provisioned user.
//
// Verification is delegated to a TokenVerifier. Without one the strategy
// denies every request with auth.KindNotImplemented; JWKSVerifier is the
// bundled implementation for RS256-signed JWTs.
package verified

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/plantwise/plantwise/pkg/auth"
	"github.com/plantwise/plantwise/pkg/debug"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage"
)

// Name is the strategy name reported in logs and metrics.
const Name = "verified"

// TokenVerifier checks a bearer credential and returns the caller's claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (identity.Claims, error)
}

// Strategy authenticates requests carrying a verifiable bearer token.
type Strategy struct {
	verifier    TokenVerifier
	provisioner *identity.Provisioner
	logger      *slog.Logger
}

var _ auth.Strategy = (*Strategy)(nil)

// New creates the verified strategy. A nil verifier leaves verification
// unimplemented.
func New(p *identity.Provisioner, v TokenVerifier, logger *slog.Logger) *Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategy{verifier: v, provisioner: p, logger: logger}
}

func (s *Strategy) Name() string { return Name }

// Authenticate verifies the bearer token, provisions the user on first
// contact, and attaches the principal. It never returns false: every
// failure is an error so the caller sees the right status.
func (s *Strategy) Authenticate(ctx context.Context, req *auth.Request) (bool, error) {
	if s.verifier == nil {
		return false, auth.NotImplemented("identity provider verification is not configured")
	}

	token, ok := BearerToken(req.HTTP)
	if !ok {
		return false, auth.Unauthorized("missing bearer token")
	}

	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return false, auth.Failed("invalid bearer token", err)
	}
	debug.Trace("auth", "verified token claims",
		"external_id", claims.ExternalID,
		"tenant_id", claims.TenantID,
		"email", debug.Truncate(claims.Email, 64),
	)

	user, err := s.provisioner.FindOrCreate(ctx, claims)
	if err != nil {
		if errors.Is(err, identity.ErrTenantNotFound) ||
			errors.Is(err, identity.ErrRoleNotFound) ||
			errors.Is(err, identity.ErrInvalidClaims) {
			return false, auth.Failed("identity could not be provisioned", err)
		}
		return false, err
	}

	if !user.Active {
		return false, auth.Failed("user is inactive", auth.ErrForbidden)
	}
	if user.TenantID != claims.TenantID {
		s.logger.Warn("token tenant does not match user tenant",
			"user_id", user.ID,
			"token_tenant_id", claims.TenantID,
			"user_tenant_id", user.TenantID,
		)
		return false, auth.Failed("tenant mismatch", auth.ErrForbidden)
	}

	role, err := s.provisioner.Directory().RoleByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, auth.Failed("identity could not be provisioned", identity.ErrRoleNotFound)
		}
		return false, err
	}

	req.Attach(identity.Principal{
		UserID:     user.ID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		TenantID:   user.TenantID,
		Roles:      []string{role.Name},
	})
	return true, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
