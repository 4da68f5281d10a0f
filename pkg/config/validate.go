package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/plantwise/plantwise/pkg/auth"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment == "" {
		errs = append(errs, fmt.Errorf("environment is required"))
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite.path is required when storage.type is \"sqlite\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\" or \"sqlite\", got %q", c.Storage.Type))
	}

	if c.Storage.Cache.Enabled && c.Storage.Cache.Size <= 0 {
		errs = append(errs, fmt.Errorf("storage.cache.size must be > 0 when the cache is enabled, got %d", c.Storage.Cache.Size))
	}

	if c.Auth.DefaultRole == "" {
		errs = append(errs, fmt.Errorf("auth.default_role is required"))
	}

	if c.IsDevelopment() {
		if c.Auth.Local.TenantID == "" {
			errs = append(errs, fmt.Errorf("auth.local.tenant_id is required in development"))
		}
		if c.Auth.Local.ExternalID == "" {
			errs = append(errs, fmt.Errorf("auth.local.external_id is required in development"))
		}
	}

	if v := c.Auth.Verified; v.JWKSURL != "" {
		if u, err := url.Parse(v.JWKSURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("auth.verified.jwks_url must be an absolute URL, got %q", v.JWKSURL))
		}
		if v.Issuer == "" {
			errs = append(errs, fmt.Errorf("auth.verified.issuer is required when auth.verified.jwks_url is set"))
		}
	}

	for i, st := range c.Auth.Verified.StaticTokens {
		if st.Token == "" && st.TokenFile == "" {
			errs = append(errs, fmt.Errorf("auth.verified.static_tokens[%d]: token or token_file is required", i))
		}
		if st.ExternalID == "" {
			errs = append(errs, fmt.Errorf("auth.verified.static_tokens[%d].external_id is required", i))
		}
		if st.TenantID == "" {
			errs = append(errs, fmt.Errorf("auth.verified.static_tokens[%d].tenant_id is required", i))
		}
	}

	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must be >= 0, got %d", c.Auth.RateLimit.RequestsPerMinute))
	}

	if _, err := auth.ParseTrustedProxies(c.Security.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("security.trusted_proxies: %w", err))
	}

	for i, t := range c.Bootstrap.Tenants {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("bootstrap.tenants[%d].id is required", i))
		}
	}

	return errors.Join(errs...)
}
