// Package directory opens the identity.Store selected by configuration.
package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/plantwise/plantwise/pkg/config"
	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage/cached"
	"github.com/plantwise/plantwise/pkg/storage/memory"
	"github.com/plantwise/plantwise/pkg/storage/postgres"
	"github.com/plantwise/plantwise/pkg/storage/sqlite"
)

// Open creates the backend named by cfg.Type and, when enabled, wraps it
// in the lookup cache. The caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (identity.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store identity.Store
		err   error
	)
	switch cfg.Type {
	case "memory", "":
		store = memory.New()
	case "postgres":
		store, err = postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		}, logger)
	case "sqlite":
		store, err = sqlite.Open(ctx, cfg.SQLite.Path, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s directory: %w", cfg.Type, err)
	}

	logger.Info("identity directory opened", "type", cfg.Type, "cache", cfg.Cache.Enabled)

	if cfg.Cache.Enabled {
		store = cached.New(store, cfg.Cache.Size, cfg.Cache.TTL)
	}
	return store, nil
}
