// Package postgres provides a PostgreSQL implementation of identity.Store.
// It uses pgx/v5 for connection pooling; uniqueness and referential
// integrity are enforced by the schema and mapped to storage sentinels.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plantwise/plantwise/pkg/identity"
	"github.com/plantwise/plantwise/pkg/storage"
)

// PostgreSQL error codes and constraint names the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	constraintUserTenant = "users_tenant_id_fkey"
	constraintUserRole   = "users_role_id_fkey"
)

// Store is a PostgreSQL-backed identity directory.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Ensure Store implements identity.Store at compile time.
var _ identity.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, logger: logger}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const userColumns = `id, external_id, email, first_name, last_name, active, tenant_id, role_id, created_at`

func scanUser(row pgx.Row) (*identity.User, error) {
	var u identity.User
	if err := row.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName,
		&u.Active, &u.TenantID, &u.RoleID, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

func (s *Store) UserByExternalID(ctx context.Context, externalID string) (*identity.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	if err != nil {
		return nil, notFound(err, "querying user")
	}
	return u, nil
}

func (s *Store) TenantByID(ctx context.Context, id string) (*identity.Tenant, error) {
	var t identity.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err, "querying tenant")
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func (s *Store) RoleByName(ctx context.Context, name string) (*identity.Role, error) {
	var r identity.Role
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM roles WHERE name = $1`, name,
	).Scan(&r.ID, &r.Name)
	if err != nil {
		return nil, notFound(err, "querying role")
	}
	return &r, nil
}

func (s *Store) RoleByID(ctx context.Context, id string) (*identity.Role, error) {
	var r identity.Role
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM roles WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name)
	if err != nil {
		return nil, notFound(err, "querying role")
	}
	return &r, nil
}

// CreateUser inserts a user. A duplicate external id yields
// storage.ErrConflict; a dangling tenant or role reference yields
// identity.ErrTenantNotFound or identity.ErrRoleNotFound.
func (s *Store) CreateUser(ctx context.Context, u *identity.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.ExternalID, u.Email, u.FirstName, u.LastName,
		u.Active, u.TenantID, u.RoleID, createdAt,
	)
	if err != nil {
		return translateWriteError(err, "inserting user")
	}
	return nil
}

func (s *Store) CreateTenant(ctx context.Context, t *identity.Tenant) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Name, createdAt,
	)
	if err != nil {
		return translateWriteError(err, "inserting tenant")
	}
	return nil
}

func (s *Store) CreateRole(ctx context.Context, r *identity.Role) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO roles (id, name) VALUES ($1, $2)`,
		r.ID, r.Name,
	)
	if err != nil {
		return translateWriteError(err, "inserting role")
	}
	return nil
}

// ListUsers returns the users of the context tenant ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]identity.User, error) {
	tenantID, err := storage.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY created_at, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var out []identity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return out, nil
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// notFound maps pgx.ErrNoRows to storage.ErrNotFound and wraps anything else.
func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// translateWriteError maps constraint violations to the storage sentinels.
func translateWriteError(err error, op string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return storage.ErrConflict
	case codeForeignKeyViolation:
		switch pgErr.ConstraintName {
		case constraintUserTenant:
			return identity.ErrTenantNotFound
		case constraintUserRole:
			return identity.ErrRoleNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
