// Package sqlite provides an embedded identity.Store on SQLite, using bun
// over the pure-Go modernc.org/sqlite driver. It suits single-node
// deployments that need records to survive restarts without a database
// server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage"
)

// Store is a SQLite-backed identity directory.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

// Ensure Store implements identity.Store at compile time.
var _ identity.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the
// schema exists. Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection serializes writers and keeps an in-memory
	// database alive for the lifetime of the store.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	pragmas := []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"}
	if !isMemory(path) {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("sqlite directory opened", "path", path)
	return s, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:")
}

func (s *Store) createSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*tenantModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("tenants table: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*roleModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("roles table: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*userModel)(nil)).
		IfNotExists().
		ForeignKey(`("tenant_id") REFERENCES "tenants" ("id")`).
		ForeignKey(`("role_id") REFERENCES "roles" ("id")`).
		Exec(ctx); err != nil {
		return fmt.Errorf("users table: %w", err)
	}

	if _, err := s.db.NewCreateIndex().
		Model((*userModel)(nil)).
		Index("users_tenant_created_idx").
		Column("tenant_id", "created_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("users index: %w", err)
	}

	return nil
}

func (s *Store) UserByExternalID(ctx context.Context, externalID string) (*identity.User, error) {
	m := new(userModel)
	err := s.db.NewSelect().
		Model(m).
		Where("external_id = ?", externalID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get user by external id")
	}
	return m.toIdentity(), nil
}

func (s *Store) TenantByID(ctx context.Context, id string) (*identity.Tenant, error) {
	m := new(tenantModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get tenant")
	}
	return m.toIdentity(), nil
}

func (s *Store) RoleByName(ctx context.Context, name string) (*identity.Role, error) {
	m := new(roleModel)
	err := s.db.NewSelect().
		Model(m).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get role by name")
	}
	return m.toIdentity(), nil
}

func (s *Store) RoleByID(ctx context.Context, id string) (*identity.Role, error) {
	m := new(roleModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "get role")
	}
	return m.toIdentity(), nil
}

// CreateUser inserts a user after confirming its tenant and role exist.
// SQLite does not name the violated foreign key, so the references are
// checked inside the same transaction as the insert.
func (s *Store) CreateUser(ctx context.Context, u *identity.User) error {
	m := userFromIdentity(u)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*tenantModel)(nil)).Where("id = ?", m.TenantID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check tenant: %w", err)
		}
		if !exists {
			return identity.ErrTenantNotFound
		}

		exists, err = tx.NewSelect().Model((*roleModel)(nil)).Where("id = ?", m.RoleID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check role: %w", err)
		}
		if !exists {
			return identity.ErrRoleNotFound
		}

		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			return translateWriteError(err, "create user")
		}
		return nil
	})
}

func (s *Store) CreateTenant(ctx context.Context, t *identity.Tenant) error {
	m := &tenantModel{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt.UTC()}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return translateWriteError(err, "create tenant")
	}
	return nil
}

func (s *Store) CreateRole(ctx context.Context, r *identity.Role) error {
	m := &roleModel{ID: r.ID, Name: r.Name}
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return translateWriteError(err, "create role")
	}
	return nil
}

// ListUsers returns the users of the context tenant ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]identity.User, error) {
	tenantID, err := storage.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}

	var models []userModel
	err = s.db.NewSelect().
		Model(&models).
		Where("tenant_id = ?", tenantID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]identity.User, 0, len(models))
	for i := range models {
		out = append(out, *models[i].toIdentity())
	}
	return out, nil
}

// HealthCheck verifies the database handle is usable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// notFound maps sql.ErrNoRows to storage.ErrNotFound and wraps anything else.
func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// translateWriteError maps SQLite constraint violations to storage.ErrConflict.
func translateWriteError(err error, op string) error {
	if isUniqueViolation(err) {
		return storage.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
