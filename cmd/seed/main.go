// Command seed provisions tenants and the standard roles in the configured
// identity directory. The request path never creates tenants or roles, so
// every tenant must be seeded here (or via bootstrap.tenants) before its
// users can sign in.
//
// Usage:
//
//	seed -tenant greenhouse-1 -name "Greenhouse One"
//	seed -config /etc/plantwise/config.yaml -tenant t1 -tenant t2
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/plantwise/plantwise/pkg/config"
	"github.com/plantwise/plantwise/pkg/debug"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage/directory"
)

// tenantFlags collects repeated -tenant values.
type tenantFlags []string

func (f *tenantFlags) String() string { return strings.Join(*f, ",") }

func (f *tenantFlags) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("tenant id must not be empty")
	}
	*f = append(*f, v)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	name := fs.String("name", "", "display name for a single -tenant")
	var tenants tenantFlags
	fs.Var(&tenants, "tenant", "tenant id to create (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(tenants) == 0 {
		return fmt.Errorf("at least one -tenant is required")
	}
	if *name != "" && len(tenants) > 1 {
		return fmt.Errorf("-name applies to a single -tenant")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
	store, err := directory.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return seed(ctx, store, seedTenants(tenants, *name), cfg.Bootstrap.Roles, logger)
}

func seedTenants(ids []string, name string) []identity.Tenant {
	out := make([]identity.Tenant, 0, len(ids))
	for _, id := range ids {
		out = append(out, identity.Tenant{ID: id, Name: name})
	}
	return out
}

func seed(ctx context.Context, s identity.Seeder, tenants []identity.Tenant, roles []string, logger *slog.Logger) error {
	if len(roles) == 0 {
		roles = identity.StandardRoles
	}
	if err := identity.Bootstrap(ctx, s, tenants, roles); err != nil {
		return err
	}
	for _, t := range tenants {
		logger.Info("tenant seeded", "tenant_id", t.ID)
	}
	logger.Info("roles seeded", "roles", strings.Join(roles, ","))
	return nil
}
