// Package config provides unified configuration for the plantwise server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env file (development convenience, never overrides the process environment)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (PLANTWISE_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import (
	"time"

	"github.com/plantwise/plantwise/pkg/identity"
)

// EnvPrefix is prepended to every environment variable name read by Load.
const EnvPrefix = "PLANTWISE_"

// Config holds all configuration for the plantwise server.
type Config struct {
	// Environment selects the authentication strategy: "development" binds
	// the local fixture identity, anything else binds verified tokens.
	Environment string          `yaml:"environment" env:"ENVIRONMENT"` // default: "production"
	Server      ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Logging     LoggingConfig   `yaml:"logging"`
	Storage     StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Auth        AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Security    SecurityConfig  `yaml:"security" envPrefix:"SECURITY_"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap" envPrefix:"BOOTSTRAP_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int           `yaml:"port" env:"PORT"`                                // default: 8080
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"` // default: 10s
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`       // default: 30s
}

// LoggingConfig controls the process-wide slog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // debug, info, warn, error; default: "info"
	Format string `yaml:"format" env:"LOG_FORMAT"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug" env:"DEBUG"`       // comma-separated debug categories
}

// StorageConfig selects and configures the identity directory.
type StorageConfig struct {
	Type     string         `yaml:"type" env:"TYPE"` // "memory", "postgres" or "sqlite", default: "memory"
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	SQLite   SQLiteConfig   `yaml:"sqlite" envPrefix:"SQLITE_"`
	Cache    CacheConfig    `yaml:"cache" envPrefix:"CACHE_"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn" env:"DSN"`
	DSNFile        string `yaml:"dsn_file" env:"DSN_FILE"`                 // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns" env:"MAX_CONNS"`               // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"MIGRATE_ON_START"` // default: true
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"` // default: "plantwise.db"
}

// CacheConfig wraps the directory in a read-through LRU cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"` // default: false
	Size    int           `yaml:"size" env:"SIZE"`       // default: 1024
	TTL     time.Duration `yaml:"ttl" env:"TTL"`         // default: 5m
}

// AuthConfig holds authentication settings for both strategies.
type AuthConfig struct {
	DefaultRole string          `yaml:"default_role" env:"DEFAULT_ROLE"` // role given to provisioned users, default: "admin"
	Local       LocalConfig     `yaml:"local" envPrefix:"LOCAL_"`
	Verified    VerifiedConfig  `yaml:"verified" envPrefix:"VERIFIED_"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

// LocalConfig describes the fixture identity used in development.
type LocalConfig struct {
	TenantID   string `yaml:"tenant_id" env:"TENANT_ID"`
	ExternalID string `yaml:"external_id" env:"EXTERNAL_ID"`
	Email      string `yaml:"email" env:"EMAIL"`
	FirstName  string `yaml:"first_name" env:"FIRST_NAME"`
	LastName   string `yaml:"last_name" env:"LAST_NAME"`
}

// VerifiedConfig configures token verification outside development.
type VerifiedConfig struct {
	JWKSURL      string              `yaml:"jwks_url" env:"JWKS_URL"`
	Issuer       string              `yaml:"issuer" env:"ISSUER"`
	Audience     string              `yaml:"audience" env:"AUDIENCE"`
	TenantClaim  string              `yaml:"tenant_claim" env:"TENANT_CLAIM"` // default: "tenant_id"
	CacheTTL     time.Duration       `yaml:"cache_ttl" env:"CACHE_TTL"`       // default: 1h
	StaticTokens []StaticTokenConfig `yaml:"static_tokens"`
}

// StaticTokenConfig maps one opaque service token to an identity.
type StaticTokenConfig struct {
	Token      string `yaml:"token"`
	TokenFile  string `yaml:"token_file"` // _file variant for token
	ExternalID string `yaml:"external_id"`
	Email      string `yaml:"email"`
	TenantID   string `yaml:"tenant_id"`
}

// RateLimitConfig holds per-tenant request limits.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"` // 0 disables limiting
}

// SecurityConfig holds request-origin settings.
type SecurityConfig struct {
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" envSeparator:","`
}

// BootstrapConfig controls idempotent seeding at startup.
type BootstrapConfig struct {
	Enabled bool           `yaml:"enabled" env:"ENABLED"` // default: true
	Roles   []string       `yaml:"roles" env:"ROLES" envSeparator:","`
	Tenants []TenantConfig `yaml:"tenants"`
}

// TenantConfig names a tenant to create at startup.
type TenantConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// IsDevelopment reports whether the local strategy should be bound.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Environment: "production",
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns:       25,
				MigrateOnStart: true,
			},
			SQLite: SQLiteConfig{
				Path: "plantwise.db",
			},
			Cache: CacheConfig{
				Size: 1024,
				TTL:  5 * time.Minute,
			},
		},
		Auth: AuthConfig{
			DefaultRole: identity.RoleAdmin,
			Local: LocalConfig{
				TenantID:   "dev-tenant",
				ExternalID: "dev-user",
				Email:      "dev@plantwise.local",
				FirstName:  identity.PlaceholderFirstName,
				LastName:   identity.PlaceholderLastName,
			},
			Verified: VerifiedConfig{
				TenantClaim: "tenant_id",
				CacheTTL:    time.Hour,
			},
		},
		Bootstrap: BootstrapConfig{
			Enabled: true,
			Roles:   append([]string(nil), identity.StandardRoles...),
		},
	}
}
