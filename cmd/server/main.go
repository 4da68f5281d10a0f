// Command server runs the plantwise API behind request authentication and
// tenant isolation.
//
// Configuration is read from a YAML file (-config, PLANTWISE_CONFIG,
// ./config.yaml or /etc/plantwise/config.yaml) and PLANTWISE_* environment
// variables. The most important ones:
//
//	PLANTWISE_ENVIRONMENT        - "development" binds the local strategy (default: "production")
//	PLANTWISE_SERVER_PORT        - Listen port (default: 8080)
//	PLANTWISE_STORAGE_TYPE       - "memory", "postgres" or "sqlite" (default: "memory")
//	PLANTWISE_AUTH_VERIFIED_JWKS_URL - JWKS endpoint for bearer token verification
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/plantwise/plantwise/pkg/auth"
	"github.com/plantwise/plantwise/pkg/auth/local"
	"github.com/plantwise/plantwise/pkg/auth/selector"
	"github.com/plantwise/plantwise/pkg/auth/verified"
	"github.com/plantwise/plantwise/pkg/config"
	"github.com/plantwise/plantwise/pkg/debug"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage/directory"
	"github.com/plantwise/plantwise/pkg/transport"
	transporthttp "github.com/plantwise/plantwise/pkg/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := directory.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Bootstrap.Enabled {
		if err := identity.Bootstrap(ctx, store, bootstrapTenants(cfg), cfg.Bootstrap.Roles); err != nil {
			return fmt.Errorf("bootstrapping directory: %w", err)
		}
	}

	provisioner := identity.NewProvisioner(store,
		identity.WithDefaultRole(cfg.Auth.DefaultRole),
		identity.WithProvisionLogger(logger),
	)

	// The strategy is bound once; nothing re-reads the environment later.
	strategy := selector.Select(selector.Options{
		Environment: cfg.Environment,
		Provisioner: provisioner,
		Local:       localConfig(cfg.Auth.Local),
		Verifier:    buildVerifier(cfg.Auth.Verified),
		Logger:      logger,
	})

	trusted, err := auth.ParseTrustedProxies(cfg.Security.TrustedProxies)
	if err != nil {
		return err
	}

	translator := transport.NewTranslator(cfg.Environment,
		transport.WithTranslatorLogger(logger),
		transport.WithTranslatorTrustedProxies(trusted),
	)

	guardOpts := []auth.GuardOption{auth.WithTrustedProxies(trusted)}
	if rpm := cfg.Auth.RateLimit.RequestsPerMinute; rpm > 0 {
		guardOpts = append(guardOpts, auth.WithLimiter(auth.NewInProcessLimiter(rpm)))
		logger.Info("per-tenant rate limiting enabled", "requests_per_minute", rpm)
	}

	adapter := transporthttp.NewAdapter(store, strategy, translator,
		transporthttp.WithGuardOptions(guardOpts...),
		transporthttp.WithAdapterLogger(logger),
	)

	srv := transporthttp.NewServer(adapter.Handler(),
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	logger.Info("plantwise starting",
		"environment", cfg.Environment,
		"strategy", strategy.Name(),
		"storage", cfg.Storage.Type,
		"port", cfg.Server.Port,
	)
	return srv.Run(ctx)
}

// bootstrapTenants lists the tenants to seed. In development the local
// fixture tenant is always included so the first request can provision.
func bootstrapTenants(cfg *config.Config) []identity.Tenant {
	var out []identity.Tenant
	for _, t := range cfg.Bootstrap.Tenants {
		out = append(out, identity.Tenant{ID: t.ID, Name: t.Name})
	}
	if cfg.IsDevelopment() {
		out = append(out, identity.Tenant{ID: cfg.Auth.Local.TenantID, Name: "Development"})
	}
	return out
}

func localConfig(c config.LocalConfig) local.Config {
	return local.Config{
		TenantID:   c.TenantID,
		ExternalID: c.ExternalID,
		Email:      c.Email,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
	}
}

// buildVerifier combines the configured verifiers. Static service tokens
// are tried before the JWKS verifier. Nil means no verifier is configured.
func buildVerifier(c config.VerifiedConfig) verified.TokenVerifier {
	var chain verified.Chain

	if len(c.StaticTokens) > 0 {
		tokens := make([]verified.StaticToken, 0, len(c.StaticTokens))
		for _, st := range c.StaticTokens {
			tokens = append(tokens, verified.StaticToken{
				Token: st.Token,
				Claims: identity.Claims{
					ExternalID: st.ExternalID,
					Email:      st.Email,
					TenantID:   st.TenantID,
				},
			})
		}
		chain = append(chain, verified.NewStaticVerifier(tokens))
	}

	if c.JWKSURL != "" {
		chain = append(chain, verified.NewJWKSVerifier(verified.JWKSConfig{
			JWKSURL:     c.JWKSURL,
			Issuer:      c.Issuer,
			Audience:    c.Audience,
			TenantClaim: c.TenantClaim,
			CacheTTL:    c.CacheTTL,
		}))
	}

	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	default:
		return chain
	}
}
