package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plantwise/plantwise/pkg/auth"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/observability"
	"github.com/plantwise/plantwise/pkg/storage"
	"github.com/plantwise/plantwise/pkg/transport"
)

// Adapter owns the route table and the middleware chain in front of it.
type Adapter struct {
	store      identity.Store
	strategy   auth.Strategy
	translator *transport.Translator
	guardOpts  []auth.GuardOption
	logger     *slog.Logger
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithGuardOptions passes extra options (limiter, trusted proxies) to the Guard.
func WithGuardOptions(opts ...auth.GuardOption) AdapterOption {
	return func(a *Adapter) { a.guardOpts = append(a.guardOpts, opts...) }
}

// WithAdapterLogger sets the logger for access and security logs.
func WithAdapterLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter creates an adapter serving store behind strategy.
func NewAdapter(store identity.Store, strategy auth.Strategy, translator *transport.Translator, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		store:      store,
		strategy:   strategy,
		translator: translator,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully wrapped HTTP handler.
//
// Middleware order, outermost first: request ID, access log, metrics,
// panic recovery, guard. The guard sees the route table so it can skip
// handlers registered with auth.Public.
func (a *Adapter) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", auth.PublicFunc(a.handleHealthz))
	mux.Handle("GET /readyz", auth.PublicFunc(a.handleReadyz))
	mux.Handle("GET /metrics", auth.Public(promhttp.Handler()))

	mux.HandleFunc("GET /v1/me", a.handleMe)
	mux.HandleFunc("GET /v1/tenant", a.handleTenant)
	mux.HandleFunc("GET /v1/users", a.handleListUsers)

	guardOpts := append([]auth.GuardOption{
		auth.WithRoutes(mux),
		auth.WithLogger(a.logger),
	}, a.guardOpts...)
	guard := auth.NewGuard(a.strategy, a.translator.Render, guardOpts...)

	return transport.Chain(
		transport.RequestID(),
		transport.Logging(a.logger),
		observability.MetricsMiddleware,
		transport.Recovery(a.translator.Render),
		guard.Middleware,
	)(mux)
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.HealthCheck(r.Context()); err != nil {
		a.logger.Warn("readiness check failed", "error", err)
		transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *Adapter) handleMe(w http.ResponseWriter, r *http.Request) {
	p := identity.PrincipalFromContext(r.Context())
	if p == nil {
		a.translator.Render(w, r, errors.New("no principal in request context"))
		return
	}
	transport.WriteJSON(w, http.StatusOK, p)
}

func (a *Adapter) handleTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := storage.RequireTenant(r.Context())
	if err != nil {
		a.translator.Render(w, r, err)
		return
	}
	tenant, err := a.store.TenantByID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = transport.NewStatusError(http.StatusNotFound, fmt.Errorf("tenant %q: %w", tenantID, err))
		}
		a.translator.Render(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, tenant)
}

// userList is the response body for GET /v1/users.
type userList struct {
	Object string          `json:"object"`
	Data   []identity.User `json:"data"`
}

func (a *Adapter) handleListUsers(w http.ResponseWriter, r *http.Request) {
	p := identity.PrincipalFromContext(r.Context())
	if !p.HasRole(identity.RoleAdmin) && !p.HasRole(identity.RoleManager) {
		a.translator.Render(w, r, auth.Failed("listing users requires the admin or manager role", auth.ErrForbidden))
		return
	}
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		a.translator.Render(w, r, err)
		return
	}
	if users == nil {
		users = []identity.User{}
	}
	transport.WriteJSON(w, http.StatusOK, userList{Object: "list", Data: users})
}
