package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/plantwise/plantwise/pkg/debug"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/observability"
	"github.com/plantwise/plantwise/pkg/storage"
)

// ErrorRenderer writes the client response for a failed request.
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, err error)

// Guard is the per-request enforcement point in front of every route.
type Guard struct {
	strategy Strategy
	render   ErrorRenderer
	routes   RouteResolver
	limiter  RateLimiter
	trusted  []netip.Prefix
	logger   *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRoutes sets the resolver used to look up the public marker of the
// handler a request will reach. Without it only a public next handler
// is recognized.
func WithRoutes(routes RouteResolver) GuardOption {
	return func(g *Guard) { g.routes = routes }
}

// WithLimiter enables rate limiting after successful authentication.
func WithLimiter(l RateLimiter) GuardOption {
	return func(g *Guard) { g.limiter = l }
}

// WithTrustedProxies restricts which peers may supply X-Forwarded-For.
func WithTrustedProxies(prefixes []netip.Prefix) GuardOption {
	return func(g *Guard) { g.trusted = prefixes }
}

// WithLogger sets the logger for security events.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard binds strategy for the lifetime of the Guard.
func NewGuard(strategy Strategy, render ErrorRenderer, opts ...GuardOption) *Guard {
	g := &Guard{
		strategy: strategy,
		render:   render,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns the guard as HTTP middleware.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, next)
	})
}

func (g *Guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	name := g.strategy.Name()

	if g.isPublic(r, next) {
		debug.Log("auth", "public route, skipping authentication", "method", r.Method, "path", r.URL.Path)
		observability.AuthAttemptsTotal.WithLabelValues(name, observability.OutcomePublic).Inc()
		next.ServeHTTP(w, r)
		return
	}

	g.logger.Info("authentication attempt",
		"strategy", name,
		"method", r.Method,
		"path", r.URL.Path,
	)

	req := NewRequest(r)
	ok, err := g.strategy.Authenticate(r.Context(), req)
	clientIP := ClientIP(r, g.trusted)

	if err != nil {
		g.logger.Error("authentication error",
			"strategy", name,
			"error", err.Error(),
			"client_ip", clientIP,
			"path", r.URL.Path,
		)
		observability.AuthAttemptsTotal.WithLabelValues(name, observability.OutcomeError).Inc()
		g.render(w, r, err)
		return
	}

	if !ok {
		g.logger.Warn("authentication denied",
			"strategy", name,
			"client_ip", clientIP,
			"path", r.URL.Path,
		)
		observability.AuthAttemptsTotal.WithLabelValues(name, observability.OutcomeDenied).Inc()
		g.render(w, r, Failed("authentication failed", ErrForbidden))
		return
	}

	p := req.Principal()
	if p == nil || p.TenantID == "" {
		g.logger.Error("strategy accepted request without a tenant-scoped principal",
			"strategy", name,
			"path", r.URL.Path,
		)
		observability.AuthAttemptsTotal.WithLabelValues(name, observability.OutcomeError).Inc()
		g.render(w, r, fmt.Errorf("strategy %q returned success without a principal", name))
		return
	}

	g.logger.Info("authentication succeeded",
		"strategy", name,
		"client_ip", clientIP,
		"user_id", p.UserID,
		"tenant_id", p.TenantID,
	)

	if g.limiter != nil {
		if err := g.limiter.Allow(r.Context(), p); err != nil {
			g.logger.Warn("rate limit exceeded",
				"tenant_id", p.TenantID,
				"user_id", p.UserID,
			)
			observability.AuthAttemptsTotal.WithLabelValues(name, observability.OutcomeLimited).Inc()
			observability.RateLimitRejectedTotal.Inc()
			g.render(w, r, RateLimited(err))
			return
		}
	}

	observability.AuthAttemptsTotal.WithLabelValues(name, observability.OutcomeSuccess).Inc()

	ctx := identity.SetPrincipal(r.Context(), p)
	ctx = storage.SetTenant(ctx, p.TenantID)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (g *Guard) isPublic(r *http.Request, next http.Handler) bool {
	if IsPublic(next) {
		return true
	}
	if g.routes == nil {
		return false
	}
	h, _ := g.routes.Handler(r)
	return IsPublic(h)
}
